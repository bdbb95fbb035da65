package commands

import (
	"context"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/pxbuild/internal/build"
	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
	"git.home.luguber.info/inful/pxbuild/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int           `short:"n" default:"20" help:"Number of builds to show."`
	Prune time.Duration `help:"Delete builds older than this before listing (e.g. 72h)."`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return pxerrors.ValidationFailed("history.path", "build history is not enabled")
	}
	rootDir, err := cfg.Project.AbsRoot()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg, rootDir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.Prune > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-h.Prune))
		if err != nil {
			return err
		}
		info(g.Out, "Pruned %d builds older than %s", n, h.Prune)
	}

	entries, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return err
	}
	printHistory(g, entries)
	return nil
}

func printHistory(g *Global, entries []history.Entry) {
	if len(entries) == 0 {
		info(g.Out, "No builds recorded")
		return
	}
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	info(tw, "STARTED\tMODE\tDURATION\tCODE\tMAP\tREVISION\tBUILD\tSTATUS")
	for _, e := range entries {
		status := e.Status
		if e.ErrorCategory != "" {
			status += " (" + e.Stage + ": " + e.ErrorCategory + ")"
		}
		info(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s",
			e.StartedAt.Local().Format(time.DateTime),
			e.Mode,
			e.Duration.Round(time.Millisecond),
			e.CodeBytes,
			e.MapBytes,
			shortRevision(e.Revision),
			e.BuildID,
			statusColor(build.Status(e.Status)).Sprint(status),
		)
	}
	_ = tw.Flush()
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	if rev == "" {
		return "-"
	}
	return rev
}
