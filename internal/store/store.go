package store

import (
	"context"

	"github.com/nhle/autoreply/internal/model"
)

// ReplyFilter controls filtering and pagination for history queries.
type ReplyFilter struct {
	Status *string
	RunID  *string
	Limit  int
	Offset int
}

// Store defines the persistence interface for runs and their replies.
type Store interface {
	// === Runs ===

	CreateRun(ctx context.Context, run model.Run) error
	FinishRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// === Replies ===

	RecordReply(ctx context.Context, rec model.ReplyRecord) error
	HasReplied(ctx context.Context, messageID string) (bool, error)
	ListReplies(ctx context.Context, filter ReplyFilter) ([]model.ReplyRecord, error)

	Close() error
}
