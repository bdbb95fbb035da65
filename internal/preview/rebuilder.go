package preview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/pxbuild/internal/build"
)

// Runner runs one build. *build.Service implements it.
type Runner interface {
	Run(ctx context.Context) (*build.Result, error)
}

// Rebuilder serializes build requests onto one worker. Requests that arrive
// while a build is running collapse into a single follow-up build.
type Rebuilder struct {
	runner   Runner
	debounce time.Duration
	onResult func(*build.Result, error)

	req chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewRebuilder creates a Rebuilder. onResult is called on the worker
// goroutine after every build.
func NewRebuilder(runner Runner, debounce time.Duration, onResult func(*build.Result, error)) *Rebuilder {
	if onResult == nil {
		onResult = func(*build.Result, error) {}
	}
	return &Rebuilder{
		runner:   runner,
		debounce: debounce,
		onResult: onResult,
		req:      make(chan struct{}, 1),
	}
}

// Request asks for a build as soon as the worker is free.
func (r *Rebuilder) Request() {
	select {
	case r.req <- struct{}{}:
	default:
	}
}

// Trigger requests a build after the debounce window has passed without
// further triggers.
func (r *Rebuilder) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.Request)
}

// Run processes requests until ctx is done.
func (r *Rebuilder) Run(ctx context.Context) {
	defer r.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.req:
			res, err := r.runner.Run(ctx)
			if err != nil && ctx.Err() != nil {
				return
			}
			r.onResult(res, err)
		}
	}
}

func (r *Rebuilder) stopTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	slog.Debug("Rebuild worker stopped")
}
