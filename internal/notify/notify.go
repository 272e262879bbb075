// Package notify fans publish outcomes out to NATS subscribers.
package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/notesync/internal/config"
	"git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

// Outcome values carried in Event.Outcome.
const (
	OutcomePublished = "published"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Event is the JSON message sent for every finished publish.
type Event struct {
	TaskID     string    `json:"task_id"`
	RemotePath string    `json:"remote_path"`
	LocalPath  string    `json:"local_path,omitempty"`
	Outcome    string    `json:"outcome"`
	CommitSHA  string    `json:"commit_sha,omitempty"`
	BlobSHA    string    `json:"blob_sha,omitempty"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier delivers publish outcome events.
type Notifier interface {
	Notify(event Event) error
	Close() error
}

// Noop discards every event. It is used when no NATS URL is configured.
type Noop struct{}

func (Noop) Notify(Event) error { return nil }
func (Noop) Close() error       { return nil }

// conn is the part of *nats.Conn the notifier uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSNotifier publishes events on a core NATS subject.
type NATSNotifier struct {
	conn    conn
	subject string
}

// New returns a Noop when cfg has no URL, otherwise a connected NATSNotifier.
func New(cfg config.NotifyConfig) (Notifier, error) {
	if cfg.NATSURL == "" {
		return Noop{}, nil
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("notesync"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.NATSURL).
			Build()
	}

	slog.Info("NATS notifier initialized", "url", cfg.NATSURL, "subject", cfg.Subject)
	return newNATSNotifier(nc, cfg.Subject), nil
}

func newNATSNotifier(c conn, subject string) *NATSNotifier {
	return &NATSNotifier{conn: c, subject: subject}
}

// Notify publishes one event. Delivery is best effort.
func (n *NATSNotifier) Notify(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal notification").WithCause(err).Build()
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return errors.NetworkError("failed to publish notification").
			WithCause(err).
			WithContext("subject", n.subject).
			WithContext("remote_path", event.RemotePath).
			Build()
	}
	slog.Debug("Published outcome notification", "subject", n.subject, "remote_path", event.RemotePath, "outcome", event.Outcome)
	return nil
}

// Close flushes buffered messages and closes the connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	err := n.conn.FlushTimeout(2 * time.Second)
	n.conn.Close()
	if err != nil {
		return errors.NetworkError("failed to flush NATS connection").WithCause(err).Build()
	}
	return nil
}
