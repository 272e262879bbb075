package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func succeeded(t *testing.T, taskID, remotePath, blob string) Event {
	t.Helper()
	e, err := NewPublishSucceeded(taskID, remotePath, PublishSucceededData{
		LocalPath: "/notes/" + remotePath,
		CommitSHA: "commit-" + taskID,
		BlobSHA:   blob,
		Attempts:  1,
	})
	require.NoError(t, err)
	return e
}

func failed(t *testing.T, taskID, remotePath string) Event {
	t.Helper()
	e, err := NewPublishFailed(taskID, remotePath, PublishFailedData{Reason: "exhausted", Error: "boom", Attempts: 5})
	require.NoError(t, err)
	return e
}

func TestSQLiteStore_AppendAndGetByTaskID(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, succeeded(t, "t1", "a.md", "b1")))
	require.NoError(t, store.Append(ctx, failed(t, "t2", "b.md")))

	events, err := store.GetByTaskID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TypePublishSucceeded, events[0].Type())
	assert.Equal(t, "a.md", events[0].RemotePath())
	assert.Equal(t, "b1", events[0].BlobSHA())
	assert.NotZero(t, events[0].ID())
	assert.Contains(t, string(events[0].Payload()), `"commit_sha":"commit-t1"`)
}

func TestSQLiteStore_LastPublishedBlob(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	_, ok, err := store.LastPublishedBlob(ctx, "a.md")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Append(ctx, succeeded(t, "t1", "a.md", "b1")))
	require.NoError(t, store.Append(ctx, succeeded(t, "t2", "a.md", "b2")))
	require.NoError(t, store.Append(ctx, failed(t, "t3", "a.md")))
	require.NoError(t, store.Append(ctx, succeeded(t, "t4", "other.md", "b9")))

	sha, ok, err := store.LastPublishedBlob(ctx, "a.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b2", sha)
}

func TestSQLiteStore_RecentNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, store.Append(ctx, succeeded(t, id, "a.md", "b-"+id)))
	}
	require.NoError(t, store.Append(ctx, succeeded(t, "t4", "b.md", "x")))

	events, err := store.Recent(ctx, "a.md", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "t3", events[0].TaskID())
	assert.Equal(t, "t2", events[1].TaskID())

	all, err := store.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "t4", all[0].TaskID())
}

func TestSQLiteStore_GetRange(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	old := succeeded(t, "old", "a.md", "b0").(*BaseEvent)
	old.EventTimestamp = time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Append(ctx, old))
	require.NoError(t, store.Append(ctx, succeeded(t, "new", "a.md", "b1")))

	events, err := store.GetRange(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].TaskID())
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), succeeded(t, "t1", "a.md", "b1")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	sha, ok, err := reopened.LastPublishedBlob(t.Context(), "a.md")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b1", sha)
}

func TestPathSummaryProjection(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, succeeded(t, "t1", "a.md", "b1")))
	require.NoError(t, store.Append(ctx, failed(t, "t2", "a.md")))
	skipped, err := NewPublishSkipped("t3", "b.md", PublishSkippedData{BlobSHA: "b7"})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, skipped))

	proj := NewPathSummaryProjection(store)
	require.NoError(t, proj.Rebuild(ctx))

	a, ok := proj.Get("a.md")
	require.True(t, ok)
	assert.Equal(t, TypePublishFailed, a.LastType)
	assert.Equal(t, 1, a.Published)
	assert.Equal(t, 1, a.Failed)
	assert.Equal(t, "commit-t1", a.LastCommitSHA)
	assert.Equal(t, "boom", a.LastError)

	all := proj.All()
	require.Len(t, all, 2)
	assert.Equal(t, "b.md", all[1].RemotePath)
	assert.Equal(t, 1, all[1].Skipped)

	// Replaying the same events leaves counts unchanged.
	events, err := store.Recent(ctx, "", 10)
	require.NoError(t, err)
	for _, e := range events {
		proj.Apply(e)
	}
	a, _ = proj.Get("a.md")
	assert.Equal(t, 1, a.Published)
}
