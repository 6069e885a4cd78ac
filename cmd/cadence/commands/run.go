package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/cadence/internal/daemon"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Once bool `help:"Run a single tick, then exit"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := g.SetupLogging(cfg, root.Verbose)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, daemon.Options{
		ConfigPath: root.ConfigFile(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	if !r.Once {
		return d.Run(context.Background())
	}

	res, err := d.RunOnce(context.Background())
	if err != nil {
		return err
	}
	if res.Skipped {
		_, _ = fmt.Fprintf(g.out(), "Skipped: %s\n", res.Reason)
		return nil
	}
	_, _ = fmt.Fprintf(g.out(), "Committed %d of %d planned (intended %d)\n", res.Committed, res.Planned, res.Intended)
	return nil
}
