// Package eventstore records publish outcomes in SQLite so history survives restarts.
package eventstore

import "time"

// Event types.
const (
	TypePublishSucceeded = "PublishSucceeded"
	TypePublishFailed    = "PublishFailed"
	TypePublishSkipped   = "PublishSkipped"
)

// Event is one recorded publish outcome.
type Event interface {
	ID() int64
	TaskID() string
	RemotePath() string
	Type() string
	Timestamp() time.Time
	Payload() []byte
	// BlobSHA is the blob the remote path now holds; empty for failures.
	BlobSHA() string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID         int64
	EventTaskID     string
	EventRemotePath string
	EventType       string
	EventTimestamp  time.Time
	EventPayload    []byte
	EventBlobSHA    string
}

func (e *BaseEvent) ID() int64            { return e.EventID }
func (e *BaseEvent) TaskID() string       { return e.EventTaskID }
func (e *BaseEvent) RemotePath() string   { return e.EventRemotePath }
func (e *BaseEvent) Type() string         { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte      { return e.EventPayload }
func (e *BaseEvent) BlobSHA() string      { return e.EventBlobSHA }
