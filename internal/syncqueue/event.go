package syncqueue

import (
	"time"

	"git.home.luguber.info/inful/notesync/internal/publish"
)

// EventKind classifies a local filesystem change.
type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeEvent reports that a local file changed.
type ChangeEvent struct {
	Kind       EventKind
	LocalPath  string
	DetectedAt time.Time
}

// FailureNotice reports a terminal failure for a remote path. Reason is the
// error category (auth, exhausted, unsupported, ...).
type FailureNotice struct {
	RemotePath string
	LocalPath  string
	Reason     string
	Err        error
	At         time.Time
}

// State is the position of a remote path in the queue's state machine.
type State int

const (
	StateIdle State = iota
	StatePending
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StatePublishing:
		return "publishing"
	default:
		return "idle"
	}
}

// entry tracks one remote path that is not idle.
type entry struct {
	state State
	task  publish.Task
	// newerSource is set when an event arrives while publishing; the path runs
	// again from it once the in-flight publish returns.
	newerSource string
}
