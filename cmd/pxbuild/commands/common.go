package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pxbuild/internal/artifact"
	"git.home.luguber.info/inful/pxbuild/internal/build"
	"git.home.luguber.info/inful/pxbuild/internal/bundler"
	"git.home.luguber.info/inful/pxbuild/internal/config"
	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
	"git.home.luguber.info/inful/pxbuild/internal/events"
	"git.home.luguber.info/inful/pxbuild/internal/git"
	"git.home.luguber.info/inful/pxbuild/internal/history"
	"git.home.luguber.info/inful/pxbuild/internal/logfields"
	"git.home.luguber.info/inful/pxbuild/internal/metrics"
	"git.home.luguber.info/inful/pxbuild/internal/observability"
	"git.home.luguber.info/inful/pxbuild/internal/pipeline"
	"git.home.luguber.info/inful/pxbuild/internal/sink"
	"git.home.luguber.info/inful/pxbuild/internal/transform"
)

// Global holds process-wide dependencies handed to every command.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// NewGlobal returns a Global writing user-facing output to stdout.
func NewGlobal() *Global {
	return &Global{Logger: slog.Default(), Out: os.Stdout}
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"pxbuild.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Bundle the entry point once"`
	Serve   ServeCmd   `cmd:"" help:"Serve the bundle and rebuild on source changes"`
	History HistoryCmd `cmd:"" help:"Show recorded builds"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	setupLogging(c.Verbose, config.LoggingConfig{Format: config.LogFormatText})
	return nil
}

// setupLogging installs the default logger. --verbose wins over
// PXBUILD_LOG_LEVEL, which wins over the configuration file.
func setupLogging(verbose bool, lc config.LoggingConfig) {
	level := lc.Level.SlogLevel()
	if env := os.Getenv("PXBUILD_LOG_LEVEL"); env != "" {
		level = config.NormalizeLogLevel(env).SlogLevel()
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(observability.NewLogger(os.Stderr, level, string(lc.Format)))
}

// loadConfig reads the configuration. A missing file is only an error when
// --config points somewhere other than the default.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(root.Config, root.Config != config.DefaultPath)
	if err != nil {
		return nil, err
	}
	setupLogging(root.Verbose, cfg.Logging)
	return cfg, nil
}

// resolveMode applies a --mode override to the configured mode.
func resolveMode(cfg *config.Config, override string) (config.BuildMode, error) {
	if override == "" {
		return cfg.Build.Mode, nil
	}
	mode, err := config.ParseBuildMode(override)
	if err != nil {
		return "", pxerrors.ValidationFailed("mode", err.Error())
	}
	return mode, nil
}

// stack is the fully wired build pipeline for one process.
type stack struct {
	cfg      *config.Config
	mode     config.BuildMode
	root     string
	slot     *artifact.Slot
	service  *build.Service
	registry *prom.Registry
	history  *history.Store
	closers  []func() error
}

// newStack wires configuration into a build service. Optional backends
// (redis, nats) that cannot be reached are logged and left out.
func newStack(cfg *config.Config, mode config.BuildMode) (*stack, error) {
	root, err := cfg.Project.AbsRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	st := &stack{cfg: cfg, mode: mode, root: root, slot: artifact.NewSlot()}

	resolver := transform.NewResolver(transform.Options{
		Aliases:     cfg.Project.Aliases,
		TypeChecker: typeChecker(cfg, mode, root),
	})
	plans, err := pipeline.FromConfig(cfg, resolver)
	if err != nil {
		return nil, err
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		st.registry = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(st.registry)
	}

	st.service = build.NewService(plans, bundler.NewEsbuild(), st.slot, sink.NewFS()).
		WithMode(mode).
		WithRecorder(recorder).
		WithRevision(git.RevisionFunc(root))

	if cfg.Redis.URL != "" {
		policy, err := cfg.Redis.Retry.Policy()
		if err != nil {
			st.Close()
			return nil, pxerrors.ValidationFailed("redis.retry", err.Error())
		}
		mirror, err := artifact.NewRedisMirrorFromURL(cfg.Redis.URL, cfg.Redis.KeyPrefix)
		if err != nil {
			st.Close()
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := mirror.Ping(pingCtx); err != nil {
			slog.Warn("Redis mirror unreachable; artifacts will be mirrored once it recovers", logfields.Addr(cfg.Redis.URL), logfields.Error(err))
		}
		cancel()
		st.service.WithMirror("redis", artifact.Retrying(mirror, policy))
		st.closers = append(st.closers, mirror.Close)
	}

	if cfg.NATS.URL != "" {
		notifier, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			slog.Warn("Build notifications disabled", logfields.Addr(cfg.NATS.URL), logfields.Error(err))
		} else {
			st.service.WithNotifier(notifier)
			st.closers = append(st.closers, notifier.Close)
		}
	}

	if cfg.History.Path != "" {
		store, err := openHistory(cfg, root)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.history = store
		st.service.WithLedger(store)
		st.closers = append(st.closers, store.Close)
	}

	return st, nil
}

// Close releases backends in reverse order of creation.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Debug("Close failed", logfields.Error(err))
		}
	}
	s.closers = nil
}

func typeChecker(cfg *config.Config, mode config.BuildMode, root string) transform.TypeChecker {
	if mode != config.ModeDevelopment || cfg.Build.TypeCheck.Disabled {
		return nil
	}
	tsc, err := transform.NewTSC(cfg.Build.TypeCheck.Command, root)
	if err != nil {
		if errors.Is(err, transform.ErrCheckerUnavailable) {
			slog.Warn("Type checking skipped", logfields.Error(err))
		}
		return nil
	}
	return tsc
}

func openHistory(cfg *config.Config, root string) (*history.Store, error) {
	path := cfg.History.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return history.Open(path)
}
