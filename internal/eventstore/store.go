package eventstore

import (
	"context"
	"time"
)

// Store persists and queries publish events.
type Store interface {
	Append(ctx context.Context, event Event) error
	GetByTaskID(ctx context.Context, taskID string) ([]Event, error)
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)
	// Recent returns the newest events first, optionally filtered by remote path.
	Recent(ctx context.Context, remotePath string, limit int) ([]Event, error)
	// LastPublishedBlob returns the blob of the newest success or skip for remotePath.
	LastPublishedBlob(ctx context.Context, remotePath string) (string, bool, error)
	Close() error
}
