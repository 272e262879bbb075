// Package commands implements the notesync command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/notesync/internal/config"
	"git.home.luguber.info/inful/notesync/internal/observability"
)

// Global is shared with every subcommand.
type Global struct {
	Out    io.Writer
	Logger *slog.Logger

	logCloser io.Closer
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"notesync.yaml" env:"NOTESYNC_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon  DaemonCmd  `cmd:"" help:"Watch local notes and publish changes continuously"`
	Push    PushCmd    `cmd:"" help:"Publish a single file now"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	History HistoryCmd `cmd:"" help:"Show recent publish outcomes"`
	Info    VersionCmd `cmd:"" name:"version" help:"Print build information"`
}

// AfterApply runs after flag parsing and installs a stderr logger until the
// configuration has been loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.Logger)
	return nil
}

// loadConfig reads the configuration and switches logging to its settings.
func (g *Global) loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	logger, closer, err := observability.NewLogger(cfg.Logging, root.Verbose)
	if err != nil {
		return nil, err
	}
	g.Close()
	g.Logger = logger
	g.logCloser = closer
	slog.SetDefault(logger)
	return cfg, nil
}

// Close releases the log file, if any.
func (g *Global) Close() {
	if g.logCloser != nil {
		_ = g.logCloser.Close()
		g.logCloser = nil
	}
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}
