package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/notesync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/logfields"
	"git.home.luguber.info/inful/notesync/internal/notify"
	"git.home.luguber.info/inful/notesync/internal/publish"
	"git.home.luguber.info/inful/notesync/internal/syncqueue"
)

// RecordingPublisher wraps a publisher and records every finished publish in
// the history store and on the notifier. Canceled publishes are not recorded.
// Recording failures are logged and never change the publish outcome.
type RecordingPublisher struct {
	next       syncqueue.Publisher
	store      eventstore.Store
	projection *eventstore.PathSummaryProjection
	notifier   notify.Notifier
	now        func() time.Time
}

// NewRecordingPublisher creates a recording decorator. store, projection and
// notifier may each be nil.
func NewRecordingPublisher(next syncqueue.Publisher, store eventstore.Store, projection *eventstore.PathSummaryProjection, notifier notify.Notifier) *RecordingPublisher {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &RecordingPublisher{
		next:       next,
		store:      store,
		projection: projection,
		notifier:   notifier,
		now:        time.Now,
	}
}

// Publish implements syncqueue.Publisher.
func (r *RecordingPublisher) Publish(ctx context.Context, task publish.Task) (publish.Result, error) {
	start := r.now()
	res, err := r.next.Publish(ctx, task)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return res, err
	}
	r.record(context.WithoutCancel(ctx), task, res, err, r.now().Sub(start))
	return res, err
}

func (r *RecordingPublisher) record(ctx context.Context, task publish.Task, res publish.Result, pubErr error, elapsed time.Duration) {
	var (
		event eventstore.Event
		err   error
		msg   = notify.Event{
			TaskID:     task.ID,
			RemotePath: task.RemotePath,
			LocalPath:  task.SourceLocalPath,
			Attempts:   res.Attempts,
			Timestamp:  r.now().UTC(),
		}
	)

	switch {
	case pubErr != nil:
		msg.Outcome = notify.OutcomeFailed
		msg.Error = pubErr.Error()
		event, err = eventstore.NewPublishFailed(task.ID, task.RemotePath, eventstore.PublishFailedData{
			LocalPath: task.SourceLocalPath,
			Reason:    string(ferrors.GetCategory(pubErr)),
			Error:     pubErr.Error(),
			Attempts:  res.Attempts,
		})
	case res.Skipped:
		msg.Outcome = notify.OutcomeSkipped
		msg.BlobSHA = res.BlobSHA
		event, err = eventstore.NewPublishSkipped(task.ID, task.RemotePath, eventstore.PublishSkippedData{
			LocalPath: task.SourceLocalPath,
			BlobSHA:   res.BlobSHA,
		})
	default:
		msg.Outcome = notify.OutcomePublished
		msg.CommitSHA = res.CommitSHA
		msg.BlobSHA = res.BlobSHA
		event, err = eventstore.NewPublishSucceeded(task.ID, task.RemotePath, eventstore.PublishSucceededData{
			LocalPath:  task.SourceLocalPath,
			CommitSHA:  res.CommitSHA,
			BlobSHA:    res.BlobSHA,
			Attempts:   res.Attempts,
			DurationMS: elapsed.Milliseconds(),
		})
	}

	if err == nil && r.store != nil {
		if err = r.store.Append(ctx, event); err == nil && r.projection != nil {
			r.projection.Apply(event)
		}
	}
	if err != nil {
		slog.Warn("Failed to record publish outcome",
			logfields.TaskID(task.ID), logfields.RemotePath(task.RemotePath), logfields.Error(err))
	}

	if err := r.notifier.Notify(msg); err != nil {
		slog.Warn("Failed to send publish notification",
			logfields.TaskID(task.ID), logfields.RemotePath(task.RemotePath), logfields.Error(err))
	}
}
