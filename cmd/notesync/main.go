package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/notesync/cmd/notesync/commands"
	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Out: os.Stdout}
	parser := kong.Parse(cli,
		kong.Name("notesync"),
		kong.Description("Mirror local notes into a GitHub repository."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global, cli),
	)

	err := parser.Run()
	global.Close()

	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
