package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/pxbuild/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Mode string `short:"m" help:"Build mode (development|production). Overrides build.mode."`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	mode, err := resolveMode(cfg, b.Mode)
	if err != nil {
		return err
	}
	st, err := newStack(cfg, mode)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := st.service.Run(ctx)
	if err != nil {
		return err
	}
	printResult(g, res)
	return nil
}

func printResult(g *Global, res *build.Result) {
	success(g.Out, "Built %s (%s) in %s", res.CodePath, res.Mode, res.Duration.Round(time.Millisecond))
	info(g.Out, "  code: %d bytes", res.CodeBytes)
	if res.MapPath != "" {
		info(g.Out, "  map:  %s (%d bytes)", res.MapPath, res.MapBytes)
	}
	if res.Revision != "" {
		info(g.Out, "  revision: %s", res.Revision)
	}
}
