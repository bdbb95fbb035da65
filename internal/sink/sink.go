// Package sink persists build artifacts.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
)

// Sink persists a text artifact at a path.
type Sink interface {
	WriteText(ctx context.Context, path, content string) error
}

// FS writes artifacts to the local filesystem. Each write goes to a temporary
// file in the destination directory and is renamed into place, so a reader of
// path sees either the previous or the new content.
type FS struct {
	mu sync.Mutex
}

// NewFS returns a filesystem sink.
func NewFS() *FS {
	return &FS{}
}

// WriteText writes content to path, creating parent directories.
func (s *FS) WriteText(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return pxerrors.SinkWriteFailed(path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return pxerrors.SinkWriteFailed(path, fmt.Errorf("create directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return pxerrors.SinkWriteFailed(path, fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return pxerrors.SinkWriteFailed(path, fmt.Errorf("write: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return pxerrors.SinkWriteFailed(path, fmt.Errorf("close: %w", err))
	}
	// #nosec G302 -- bundles are served to browsers and must be world-readable
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return pxerrors.SinkWriteFailed(path, fmt.Errorf("chmod: %w", err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return pxerrors.SinkWriteFailed(path, fmt.Errorf("rename: %w", err))
	}
	return nil
}
