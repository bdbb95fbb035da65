package preview

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/pxbuild/internal/artifact"
	"git.home.luguber.info/inful/pxbuild/internal/build"
	"git.home.luguber.info/inful/pxbuild/internal/config"
	"git.home.luguber.info/inful/pxbuild/internal/logfields"
)

// Options configures Run.
type Options struct {
	Addr      string
	Mode      config.BuildMode
	Runner    Runner
	Retriever artifact.Retriever
	Metrics   http.Handler

	Debounce   time.Duration
	WatchDirs  []string
	IgnoreDirs []string

	// Pruner, when set, removes history older than Retention every
	// PruneInterval.
	Pruner        Pruner
	Retention     time.Duration
	PruneInterval time.Duration

	// Ready, when set, receives the bound address once the server listens.
	Ready func(addr string)
}

// Run builds once, serves the artifact and rebuilds on source changes until
// ctx is canceled.
func Run(ctx context.Context, opts Options) error {
	hub := NewLiveReloadHub()
	var srv *Server
	rebuilder := NewRebuilder(opts.Runner, opts.Debounce, func(res *build.Result, err error) { srv.Record(res, err) })
	srv = NewServer(opts.Retriever, rebuilder, hub, opts.Metrics, opts.Mode)

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.Addr, err)
	}
	srv.Start(ln)
	addr := ln.Addr().String()
	slog.Info("Preview server listening", logfields.Addr(addr), slog.String("url", "http://"+addr+"/"))
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		rebuilder.Run(workerCtx)
	}()
	rebuilder.Request()

	if len(opts.WatchDirs) > 0 {
		watcher, err := NewWatcher(opts.WatchDirs, opts.IgnoreDirs, rebuilder.Trigger)
		if err != nil {
			_ = srv.Stop(context.Background())
			return err
		}
		defer func() { _ = watcher.Close() }()
		go watcher.Run(workerCtx)
		slog.Info("Watching sources", slog.Any("dirs", opts.WatchDirs))
	}

	if opts.Pruner != nil && opts.Retention > 0 {
		sched, err := NewScheduler()
		if err != nil {
			_ = srv.Stop(context.Background())
			return err
		}
		interval := opts.PruneInterval
		if interval <= 0 {
			interval = time.Hour
		}
		if _, err := sched.SchedulePrune(workerCtx, opts.Pruner, opts.Retention, interval); err != nil {
			_ = srv.Stop(context.Background())
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				slog.Warn("Scheduler shutdown error", logfields.Error(err))
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutting down preview server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", logfields.Error(err))
	}
	stopWorker()
	<-workerDone
	return nil
}
