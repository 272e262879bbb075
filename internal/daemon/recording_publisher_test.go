package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/notesync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/notify"
	"git.home.luguber.info/inful/notesync/internal/publish"
)

type stubPublisher struct {
	res publish.Result
	err error
}

func (s stubPublisher) Publish(context.Context, publish.Task) (publish.Result, error) {
	return s.res, s.err
}

type captureNotifier struct{ events []notify.Event }

func (c *captureNotifier) Notify(e notify.Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func newRecorder(t *testing.T, next stubPublisher) (*RecordingPublisher, *eventstore.SQLiteStore, *eventstore.PathSummaryProjection, *captureNotifier) {
	t.Helper()
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	proj := eventstore.NewPathSummaryProjection(store)
	n := &captureNotifier{}
	return NewRecordingPublisher(next, store, proj, n), store, proj, n
}

func TestRecordingPublisher_Success(t *testing.T) {
	rp, store, proj, n := newRecorder(t, stubPublisher{res: publish.Result{CommitSHA: "c1", BlobSHA: "b1", Attempts: 2}})
	task := publish.Task{ID: "t1", RemotePath: "a.md", SourceLocalPath: "/n/a.md"}

	res, err := rp.Publish(t.Context(), task)
	require.NoError(t, err)
	assert.Equal(t, "c1", res.CommitSHA)

	sha, ok, err := store.LastPublishedBlob(t.Context(), "a.md")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b1", sha)

	summary, ok := proj.Get("a.md")
	require.True(t, ok)
	assert.Equal(t, 1, summary.Published)

	require.Len(t, n.events, 1)
	assert.Equal(t, notify.OutcomePublished, n.events[0].Outcome)
	assert.Equal(t, 2, n.events[0].Attempts)
}

func TestRecordingPublisher_Failure(t *testing.T) {
	pubErr := ferrors.ExhaustedError("publish retries exhausted").Build()
	rp, store, _, n := newRecorder(t, stubPublisher{err: pubErr, res: publish.Result{Attempts: 5}})

	_, err := rp.Publish(t.Context(), publish.Task{ID: "t1", RemotePath: "a.md"})
	require.ErrorIs(t, err, pubErr)

	events, err := store.GetByTaskID(t.Context(), "t1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventstore.TypePublishFailed, events[0].Type())
	assert.Contains(t, string(events[0].Payload()), `"reason":"exhausted"`)

	require.Len(t, n.events, 1)
	assert.Equal(t, notify.OutcomeFailed, n.events[0].Outcome)
}

func TestRecordingPublisher_CanceledIsNotRecorded(t *testing.T) {
	rp, store, _, n := newRecorder(t, stubPublisher{err: context.Canceled})

	_, err := rp.Publish(t.Context(), publish.Task{ID: "t1", RemotePath: "a.md"})
	require.ErrorIs(t, err, context.Canceled)

	events, err := store.Recent(t.Context(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, n.events)
}

func TestRecordingPublisher_Skipped(t *testing.T) {
	rp, store, _, n := newRecorder(t, stubPublisher{res: publish.Result{BlobSHA: "b1", Skipped: true}})

	_, err := rp.Publish(t.Context(), publish.Task{ID: "t1", RemotePath: "a.md"})
	require.NoError(t, err)

	events, err := store.GetByTaskID(t.Context(), "t1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventstore.TypePublishSkipped, events[0].Type())
	assert.Equal(t, notify.OutcomeSkipped, n.events[0].Outcome)
}
