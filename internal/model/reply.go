package model

import "time"

// Reply status values recorded in the history.
const (
	ReplyStatusSent   = "sent"
	ReplyStatusFailed = "failed"
	ReplyStatusDryRun = "dry_run"
)

// Run is one invocation of the auto-responder.
type Run struct {
	ID         string     `db:"id" json:"id"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`

	// Fetched is the number of unread messages returned by the search.
	Fetched int `db:"fetched" json:"fetched"`
	Replied int `db:"replied" json:"replied"`
	Skipped int `db:"skipped" json:"skipped"`
	Failed  int `db:"failed" json:"failed"`
}

// ReplyRecord is the outcome of handling one unread message.
type ReplyRecord struct {
	ID    string `db:"id" json:"id"`
	RunID string `db:"run_id" json:"run_id"`

	// MessageID is the original's Message-ID without angle brackets.
	// Empty when the original carried none.
	MessageID string `db:"message_id" json:"message_id"`
	UID       uint32 `db:"uid" json:"uid"`

	Sender  string `db:"sender" json:"sender"`
	Subject string `db:"subject" json:"subject"`

	Summary      string `db:"summary" json:"summary"`
	SummaryError string `db:"summary_error" json:"summary_error,omitempty"`

	Status    string    `db:"status" json:"status"`
	Error     string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
