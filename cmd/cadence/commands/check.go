package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"git.home.luguber.info/inful/cadence/internal/daemon"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// CheckCmd implements the 'check' command. It takes no lock and writes nothing.
type CheckCmd struct{}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	out := g.out()
	_, _ = fmt.Fprintln(out, titleStyle.Render("Configuration"))
	_, _ = fmt.Fprintf(out, "  %s\n", cfg.String())

	report, err := daemon.CheckOnce(context.Background(), cfg, nil)
	if report != nil {
		_, _ = fmt.Fprintln(out, titleStyle.Render("Health"))
		for _, hc := range report.Checks {
			_, _ = fmt.Fprintf(out, "  %-20s %s %s\n", hc.Name, renderStatus(hc.Status), hc.Message)
		}
	}
	return err
}

func renderStatus(s daemon.HealthStatus) string {
	switch s {
	case daemon.HealthStatusHealthy:
		return okStyle.Render(string(s))
	case daemon.HealthStatusDegraded:
		return warnStyle.Render(string(s))
	default:
		return errStyle.Render(string(s))
	}
}
