package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cadence/cmd/cadence/commands"
	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("cadence"),
		kong.Description("Makes a bounded number of scheduled commits to a local git repository."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Out: os.Stdout}
	err := parser.Run(global, cli)

	// Report before closing so fatal errors reach the log file too.
	adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
	adapter.Report(err)
	_ = global.Close()
	os.Exit(adapter.ExitCodeFor(err))
}
