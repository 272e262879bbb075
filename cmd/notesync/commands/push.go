package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/notesync/internal/daemon"
)

// PushCmd implements the 'push' command.
type PushCmd struct {
	File   string `arg:"" type:"existingfile" help:"Local file to publish"`
	Remote string `short:"r" help:"Remote path; defaults to the path mapped from the watched directories"`
}

func (p *PushCmd) Run(g *Global, root *CLI) error {
	cfg, err := g.loadConfig(root)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dmn, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = dmn.Close() }()

	res, err := dmn.Push(ctx, p.File, p.Remote)
	if err != nil {
		return err
	}
	if res.Skipped {
		_, _ = fmt.Fprintf(g.out(), "unchanged %s (blob %s)\n", p.File, short(res.BlobSHA))
		return nil
	}
	_, _ = fmt.Fprintf(g.out(), "published %s as commit %s after %d attempt(s)\n", p.File, short(res.CommitSHA), res.Attempts)
	return nil
}

func short(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}
