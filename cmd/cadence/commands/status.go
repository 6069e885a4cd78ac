package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/cadence/internal/daemon"
	"git.home.luguber.info/inful/cadence/internal/eventstore"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	Limit int  `short:"n" help:"Number of recent ticks to show" default:"10"`
	JSON  bool `name:"json" help:"Print status as JSON"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	st, err := daemon.ReadStatus(context.Background(), cfg, time.Now(), s.Limit, nil)
	if err != nil {
		return err
	}

	out := g.out()
	if s.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	_, _ = fmt.Fprintln(out, titleStyle.Render("Quota"))
	_, _ = fmt.Fprintf(out, "  repository   %s\n", st.Repository)
	_, _ = fmt.Fprintf(out, "  today        %d of %d commits, %d remaining\n", st.CommitCount, st.DailyLimit, st.Remaining)
	if st.LastRunDate != nil {
		_, _ = fmt.Fprintf(out, "  last commit  %s\n", st.LastRunDate.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(out, "  resets in    %s\n", st.UntilReset.Round(time.Minute))
	if st.Eligible {
		_, _ = fmt.Fprintf(out, "  now          %s\n", okStyle.Render("eligible"))
	} else {
		_, _ = fmt.Fprintf(out, "  now          %s\n", warnStyle.Render("skip: "+st.SkipReason))
	}
	if st.TrackerError != "" {
		_, _ = fmt.Fprintf(out, "  tracker      %s\n", errStyle.Render(st.TrackerError))
	}

	_, _ = fmt.Fprintln(out, titleStyle.Render("Instance"))
	switch {
	case !st.LockHeld:
		_, _ = fmt.Fprintln(out, "  not running")
	case st.LockAlive:
		_, _ = fmt.Fprintf(out, "  running as pid %d\n", st.LockPID)
	default:
		_, _ = fmt.Fprintf(out, "  stale lock for pid %d\n", st.LockPID)
	}

	if !st.HistoryEnabled {
		return nil
	}
	_, _ = fmt.Fprintln(out, titleStyle.Render("Recent ticks"))
	if len(st.History) == 0 {
		_, _ = fmt.Fprintln(out, "  none")
	}
	for _, t := range st.History {
		_, _ = fmt.Fprintf(out, "  %s  %-9s %s\n", t.StartedAt.Format(time.RFC3339), t.Status, describeTick(t))
	}
	return nil
}

func describeTick(t eventstore.TickSummary) string {
	var b strings.Builder
	switch t.Status {
	case eventstore.TickStatusSkipped:
		b.WriteString(t.Reason)
	default:
		fmt.Fprintf(&b, "%d/%d commits", t.Committed, t.Planned)
		if t.Truncated {
			fmt.Fprintf(&b, " (quota cut %d)", t.Intended-t.Planned)
		}
	}
	if t.Error != "" {
		b.WriteString(": " + t.Error)
	}
	return b.String()
}
