package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

// PublishSucceededData is the payload of a PublishSucceeded event.
type PublishSucceededData struct {
	LocalPath  string `json:"local_path"`
	CommitSHA  string `json:"commit_sha"`
	BlobSHA    string `json:"blob_sha"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
}

// PublishFailedData is the payload of a PublishFailed event.
type PublishFailedData struct {
	LocalPath string `json:"local_path"`
	Reason    string `json:"reason"`
	Error     string `json:"error"`
	Attempts  int    `json:"attempts"`
}

// PublishSkippedData is the payload of a PublishSkipped event.
type PublishSkippedData struct {
	LocalPath string `json:"local_path"`
	BlobSHA   string `json:"blob_sha"`
}

func newEvent(taskID, remotePath, eventType, blobSHA string, data any) (*BaseEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal event payload").
			WithCause(err).
			WithContext("task_id", taskID).
			WithContext("event_type", eventType).
			Build()
	}
	return &BaseEvent{
		EventTaskID:     taskID,
		EventRemotePath: remotePath,
		EventType:       eventType,
		EventTimestamp:  time.Now(),
		EventPayload:    payload,
		EventBlobSHA:    blobSHA,
	}, nil
}

// NewPublishSucceeded creates a PublishSucceeded event.
func NewPublishSucceeded(taskID, remotePath string, data PublishSucceededData) (*BaseEvent, error) {
	return newEvent(taskID, remotePath, TypePublishSucceeded, data.BlobSHA, data)
}

// NewPublishFailed creates a PublishFailed event.
func NewPublishFailed(taskID, remotePath string, data PublishFailedData) (*BaseEvent, error) {
	return newEvent(taskID, remotePath, TypePublishFailed, "", data)
}

// NewPublishSkipped creates a PublishSkipped event.
func NewPublishSkipped(taskID, remotePath string, data PublishSkippedData) (*BaseEvent, error) {
	return newEvent(taskID, remotePath, TypePublishSkipped, data.BlobSHA, data)
}
