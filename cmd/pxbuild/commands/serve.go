package commands

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"git.home.luguber.info/inful/pxbuild/internal/config"
	"git.home.luguber.info/inful/pxbuild/internal/metrics"
	"git.home.luguber.info/inful/pxbuild/internal/preview"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Mode    string `short:"m" help:"Build mode (development|production). Overrides build.mode."`
	Addr    string `short:"a" help:"Listen address. Overrides preview.addr."`
	NoWatch bool   `name:"no-watch" help:"Build once at startup and only rebuild on POST /build."`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	mode, err := resolveMode(cfg, s.Mode)
	if err != nil {
		return err
	}
	st, err := newStack(cfg, mode)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := s.options(st)
	opts.Ready = func(addr string) {
		success(g.Out, "Serving %s build", mode)
		info(g.Out, "  page:    %s", cyan.Sprintf("http://%s/", addr))
		info(g.Out, "  bundle:  %s", cyan.Sprintf("http://%s/index.js", addr))
	}
	return preview.Run(ctx, opts)
}

func (s *ServeCmd) options(st *stack) preview.Options {
	opts := preview.Options{
		Addr:      st.cfg.Preview.Addr,
		Mode:      st.mode,
		Runner:    st.service,
		Retriever: st.slot,
		Debounce:  st.cfg.Preview.DebounceDuration(),
	}
	if s.Addr != "" {
		opts.Addr = s.Addr
	}
	if st.registry != nil {
		opts.Metrics = metrics.HTTPHandler(st.registry)
	}
	if !s.NoWatch {
		opts.WatchDirs = watchDirs(st.cfg, st.root)
		opts.IgnoreDirs = []string{filepath.Dir(absUnder(st.root, st.cfg.Project.Output))}
	}
	if st.history != nil {
		opts.Pruner = st.history
		opts.Retention = st.cfg.History.RetentionDuration()
	}
	return opts
}

// watchDirs defaults to the directory holding the entry point.
func watchDirs(cfg *config.Config, root string) []string {
	if len(cfg.Preview.Watch) == 0 {
		return []string{filepath.Dir(absUnder(root, cfg.Project.Entry))}
	}
	dirs := make([]string, 0, len(cfg.Preview.Watch))
	for _, d := range cfg.Preview.Watch {
		dirs = append(dirs, absUnder(root, d))
	}
	return dirs
}

func absUnder(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
