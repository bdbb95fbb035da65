package artifact

import (
	"context"
	"sync/atomic"

	"git.home.luguber.info/inful/pxbuild/internal/retry"
)

// Publisher receives finished artifacts. Publish replaces any earlier artifact.
type Publisher interface {
	Publish(a *Artifact)
}

// Retriever returns the most recently published artifact, or false when no
// build has completed yet.
type Retriever interface {
	Retrieve() (*Artifact, bool)
}

// Mirror copies a published artifact to a secondary store. Mirrors are best
// effort; their failures never affect the in-process slot.
type Mirror interface {
	Mirror(ctx context.Context, a *Artifact) error
}

// Slot is the single-entry cache holding the last successful artifact.
// It starts empty, is replaced whole on every Publish and is never cleared.
// Readers never observe a partially updated artifact: publication is a single
// pointer store.
type Slot struct {
	current atomic.Pointer[Artifact]
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Publish stores a. The artifact must not be modified afterwards. A nil
// artifact is ignored so the slot cannot move back to empty.
func (s *Slot) Publish(a *Artifact) {
	if a == nil {
		return
	}
	s.current.Store(a)
}

// Retrieve returns the current artifact.
func (s *Slot) Retrieve() (*Artifact, bool) {
	a := s.current.Load()
	return a, a != nil
}

// Retrying wraps m so that failed writes are retried according to p.
func Retrying(m Mirror, p retry.Policy) Mirror {
	return retryingMirror{next: m, policy: p}
}

type retryingMirror struct {
	next   Mirror
	policy retry.Policy
}

func (r retryingMirror) Mirror(ctx context.Context, a *Artifact) error {
	return r.policy.Do(ctx, func(ctx context.Context) error {
		return r.next.Mirror(ctx, a)
	})
}
