package preview

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pxbuild/internal/artifact"
	"git.home.luguber.info/inful/pxbuild/internal/build"
	"git.home.luguber.info/inful/pxbuild/internal/bundler"
	"git.home.luguber.info/inful/pxbuild/internal/config"
	"git.home.luguber.info/inful/pxbuild/internal/pipeline"
	"git.home.luguber.info/inful/pxbuild/internal/sink"
	"git.home.luguber.info/inful/pxbuild/internal/transform"
)

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		return 0, ""
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestRun_ServesAndRebuilds(t *testing.T) {
	root := t.TempDir()
	codes := filepath.Join(root, "codes")
	require.NoError(t, os.MkdirAll(codes, 0o750))
	entry := filepath.Join(codes, "index.tsx")
	require.NoError(t, os.WriteFile(entry, []byte(`export const v = <div>first</div>;`), 0o600))

	b, err := pipeline.NewBuilder(pipeline.Paths{Root: root, Entry: "codes/index.tsx", Output: "output/index.js"}, transform.NewResolver(transform.Options{}))
	require.NoError(t, err)
	slot := artifact.NewSlot()
	svc := build.NewService(b, bundler.NewEsbuild(), slot, sink.NewFS())

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Addr:       "127.0.0.1:0",
			Mode:       config.ModeDevelopment,
			Runner:     svc,
			Retriever:  slot,
			Debounce:   50 * time.Millisecond,
			WatchDirs:  []string{codes},
			IgnoreDirs: []string{filepath.Join(root, "output")},
			Ready:      func(addr string) { addrCh <- addr },
		})
	}()

	var base string
	select {
	case addr := <-addrCh:
		base = "http://" + addr
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	require.Eventually(t, func() bool {
		code, body := fetch(t, base+"/index.js")
		return code == http.StatusOK && strings.Contains(body, "first")
	}, 10*time.Second, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(entry, []byte(`export const v = <div>second</div>;`), 0o600))
	require.Eventually(t, func() bool {
		code, body := fetch(t, base+"/index.js")
		return code == http.StatusOK && strings.Contains(body, "second")
	}, 10*time.Second, 50*time.Millisecond)

	code, body := fetch(t, base+"/index.js.map")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"version":3`)

	_, err = os.Stat(filepath.Join(root, "output", "index.js.map"))
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
