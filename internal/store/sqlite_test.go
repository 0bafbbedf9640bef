package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/autoreply/internal/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := model.Run{ID: "run-1", StartedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, got.FinishedAt)
	assert.Zero(t, got.Fetched)

	run.Fetched, run.Replied, run.Skipped, run.Failed = 4, 2, 1, 1
	require.NoError(t, s.FinishRun(ctx, run))

	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, 4, got.Fetched)
	assert.Equal(t, 2, got.Replied)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 1, got.Failed)
}

func TestFinishRun_Unknown(t *testing.T) {
	s := testStore(t)
	require.Error(t, s.FinishRun(context.Background(), model.Run{ID: "missing"}))
}

func TestHasReplied(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, model.Run{ID: "run-1"}))

	require.NoError(t, s.RecordReply(ctx, model.ReplyRecord{
		RunID: "run-1", MessageID: "sent@example.com", Status: model.ReplyStatusSent,
	}))
	require.NoError(t, s.RecordReply(ctx, model.ReplyRecord{
		RunID: "run-1", MessageID: "failed@example.com", Status: model.ReplyStatusFailed, Error: "smtp down",
	}))
	require.NoError(t, s.RecordReply(ctx, model.ReplyRecord{
		RunID: "run-1", MessageID: "dry@example.com", Status: model.ReplyStatusDryRun,
	}))

	tests := []struct {
		messageID string
		want      bool
	}{
		{"sent@example.com", true},
		{"failed@example.com", false},
		{"dry@example.com", false},
		{"unknown@example.com", false},
		{"", false},
	}
	for _, tc := range tests {
		got, err := s.HasReplied(ctx, tc.messageID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.messageID)
	}
}

func TestListReplies(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, model.Run{ID: "run-1"}))
	require.NoError(t, s.CreateRun(ctx, model.Run{ID: "run-2"}))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []model.ReplyRecord{
		{RunID: "run-1", MessageID: "a", UID: 10, Sender: "a@example.com", Subject: "A", Summary: "sum a", Status: model.ReplyStatusSent, CreatedAt: base},
		{RunID: "run-1", MessageID: "b", UID: 11, Sender: "b@example.com", Subject: "B", Status: model.ReplyStatusFailed, Error: "boom", CreatedAt: base.Add(time.Minute)},
		{RunID: "run-2", MessageID: "c", UID: 12, Sender: "c@example.com", Subject: "C", SummaryError: "no output", Status: model.ReplyStatusSent, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		require.NoError(t, s.RecordReply(ctx, r))
	}

	all, err := s.ListReplies(ctx, ReplyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].MessageID)
	assert.Equal(t, uint32(12), all[0].UID)
	assert.Equal(t, "no output", all[0].SummaryError)
	assert.Equal(t, "a", all[2].MessageID)
	assert.Equal(t, "sum a", all[2].Summary)
	assert.NotEmpty(t, all[2].ID)

	sent := model.ReplyStatusSent
	onlySent, err := s.ListReplies(ctx, ReplyFilter{Status: &sent})
	require.NoError(t, err)
	assert.Len(t, onlySent, 2)

	run1 := "run-1"
	firstRun, err := s.ListReplies(ctx, ReplyFilter{RunID: &run1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, firstRun, 1)
	assert.Equal(t, "b", firstRun[0].MessageID)

	paged, err := s.ListReplies(ctx, ReplyFilter{Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "a", paged[0].MessageID)
}

func TestRecordReply_RequiresRun(t *testing.T) {
	s := testStore(t)
	err := s.RecordReply(context.Background(), model.ReplyRecord{
		RunID: "no-such-run", Status: model.ReplyStatusSent,
	})
	require.Error(t, err)
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(ctx, model.Run{ID: "run-1"}))
	require.NoError(t, s.RecordReply(ctx, model.ReplyRecord{
		RunID: "run-1", MessageID: "m", Status: model.ReplyStatusSent,
	}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	replied, err := reopened.HasReplied(ctx, "m")
	require.NoError(t, err)
	assert.True(t, replied)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateRun(ctx, model.Run{ID: "run-1"}))
	require.NoError(t, s.RecordReply(ctx, model.ReplyRecord{
		RunID: "run-1", MessageID: "m", Status: model.ReplyStatusSent,
	}))
	replies, err := s.ListReplies(ctx, ReplyFilter{})
	require.NoError(t, err)
	assert.Len(t, replies, 1)
}

func TestOpen_Failure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s, err := Open(filepath.Join(blocker, "history.db"))
	require.Error(t, err)
	assert.Nil(t, s)
}
