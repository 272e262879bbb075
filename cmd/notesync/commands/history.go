package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/notesync/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Path  string `arg:"" optional:"" help:"Only show outcomes for this remote path"`
	Limit int    `short:"n" help:"Maximum number of entries" default:"20"`
	JSON  bool   `help:"Print JSON lines instead of a table"`
}

type historyLine struct {
	Time       time.Time       `json:"time"`
	TaskID     string          `json:"task_id"`
	RemotePath string          `json:"remote_path"`
	Type       string          `json:"type"`
	BlobSHA    string          `json:"blob_sha,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := g.loadConfig(root)
	if err != nil {
		return err
	}
	store, err := eventstore.NewSQLiteStore(cfg.State.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	events, err := store.Recent(context.Background(), h.Path, h.Limit)
	if err != nil {
		return err
	}
	return h.print(g, events)
}

func (h *HistoryCmd) print(g *Global, events []eventstore.Event) error {
	out := g.out()
	if h.JSON {
		enc := json.NewEncoder(out)
		for _, e := range events {
			if err := enc.Encode(historyLine{
				Time:       e.Timestamp().UTC(),
				TaskID:     e.TaskID(),
				RemotePath: e.RemotePath(),
				Type:       e.Type(),
				BlobSHA:    e.BlobSHA(),
				Payload:    e.Payload(),
			}); err != nil {
				return err
			}
		}
		return nil
	}

	if len(events) == 0 {
		_, _ = fmt.Fprintln(out, "no publish history")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tOUTCOME\tREMOTE PATH\tDETAIL")
	for _, e := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Timestamp().Local().Format(time.DateTime), outcome(e.Type()), e.RemotePath(), detail(e))
	}
	return tw.Flush()
}

func outcome(eventType string) string {
	switch eventType {
	case eventstore.TypePublishSucceeded:
		return "published"
	case eventstore.TypePublishSkipped:
		return "skipped"
	case eventstore.TypePublishFailed:
		return "failed"
	default:
		return eventType
	}
}

func detail(e eventstore.Event) string {
	switch e.Type() {
	case eventstore.TypePublishSucceeded:
		var d eventstore.PublishSucceededData
		if json.Unmarshal(e.Payload(), &d) == nil {
			return fmt.Sprintf("commit %s, %d attempt(s)", short(d.CommitSHA), d.Attempts)
		}
	case eventstore.TypePublishFailed:
		var d eventstore.PublishFailedData
		if json.Unmarshal(e.Payload(), &d) == nil {
			return fmt.Sprintf("%s: %s", d.Reason, d.Error)
		}
	case eventstore.TypePublishSkipped:
		return "blob " + short(e.BlobSHA())
	}
	return ""
}
