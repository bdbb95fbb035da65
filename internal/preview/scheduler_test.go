package preview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
}

func (f *fakePruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, nil
}

func (f *fakePruner) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.cutoffs...)
}

func TestScheduler_PrunesPeriodically(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)

	p := &fakePruner{}
	id, err := s.SchedulePrune(context.Background(), p, 24*time.Hour, 50*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	s.Start()
	defer func() { require.NoError(t, s.Stop()) }()

	require.Eventually(t, func() bool { return len(p.calls()) >= 1 }, 3*time.Second, 10*time.Millisecond)
	cutoff := p.calls()[0]
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), cutoff, time.Minute)
}
