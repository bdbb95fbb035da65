package sink

import (
	"context"
	"sync"
)

// Write is one recorded WriteText call.
type Write struct {
	Path    string
	Content string
}

// Memory records writes instead of persisting them. It can be told to fail
// writes to a specific path.
type Memory struct {
	mu     sync.Mutex
	writes []Write
	fail   map[string]error
}

// NewMemory returns an empty recording sink.
func NewMemory() *Memory {
	return &Memory{fail: make(map[string]error)}
}

// FailOn makes writes to path return err.
func (m *Memory) FailOn(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[path] = err
}

func (m *Memory) WriteText(_ context.Context, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[path]; ok {
		return err
	}
	m.writes = append(m.writes, Write{Path: path, Content: content})
	return nil
}

// Writes returns a copy of the recorded writes in call order.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}
