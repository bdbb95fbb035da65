package bundler

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pxbuild/internal/config"
	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
	"git.home.luguber.info/inful/pxbuild/internal/pipeline"
	"git.home.luguber.info/inful/pxbuild/internal/transform"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func passConfig(t *testing.T, root, entry string, mode config.BuildMode, opts transform.Options) pipeline.Config {
	t.Helper()
	b, err := pipeline.NewBuilder(pipeline.Paths{Root: root, Entry: entry, Output: "output/index.js"}, transform.NewResolver(opts))
	require.NoError(t, err)
	return b.Build(mode)
}

func outputNames(outs []Output) []string {
	names := make([]string, 0, len(outs))
	for _, o := range outs {
		names = append(names, filepath.Base(o.Path))
	}
	return names
}

func find(outs []Output, suffix string) *Output {
	for i := range outs {
		if strings.HasSuffix(outs[i].Path, suffix) {
			return &outs[i]
		}
	}
	return nil
}

const app = `import { greet } from "./greet";
export const view = <div class="app">{greet("px")}</div>;
export const list = <><span>a</span></>;
`

const greet = `export function greet(name: string): string {
  return "hello " + name;
}
`

func TestEsbuild_DevelopmentEmitsCodeAndMap(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"codes/index.tsx": app, "codes/greet.ts": greet})

	outs, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.tsx", config.ModeDevelopment, transform.Options{}))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index.js", "index.js.map"}, outputNames(outs))

	code := find(outs, "index.js")
	require.NotNil(t, code)
	js := string(code.Contents)
	assert.Contains(t, js, "Px.createElement")
	assert.Contains(t, js, "Px.Fragment")
	assert.Contains(t, js, "hello ")
	assert.Contains(t, js, "sourceMappingURL=index.js.map")
	assert.Equal(t, filepath.Join(root, "output", "index.js"), code.Path)
}

func TestEsbuild_ProductionEmitsCodeOnly(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"codes/index.tsx": app, "codes/greet.ts": greet})

	outs, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.tsx", config.ModeProduction, transform.Options{}))
	require.NoError(t, err)
	require.Len(t, outs, 1)
	js := string(outs[0].Contents)
	assert.Contains(t, js, "Px.createElement")
	assert.Contains(t, js, "Px.Fragment")
	assert.NotContains(t, js, "sourceMappingURL")
	assert.NotContains(t, js, "function greet(name)", "identifiers should be minified")
}

func TestEsbuild_Aliases(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"codes/index.ts":         `import { version } from "@px/runtime"; export const v = version;`,
		"codes/runtime/index.ts": `export const version = "rt-1";`,
	})

	opts := transform.Options{Aliases: map[string]string{"@px/runtime": "./codes/runtime/index.ts"}}
	outs, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.ts", config.ModeProduction, opts))
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Contains(t, string(outs[0].Contents), "rt-1")
}

func TestEsbuild_CommonJSInterop(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"codes/index.ts":                   `import leftPad from "left-pad"; export const x = leftPad("1", 3);`,
		"node_modules/left-pad/package.json": `{"name":"left-pad","main":"index.js"}`,
		"node_modules/left-pad/index.js":   `module.exports = function (s, n) { return s.padStart(n, "0"); };`,
	})

	outs, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.ts", config.ModeDevelopment, transform.Options{}))
	require.NoError(t, err)
	code := find(outs, "index.js")
	require.NotNil(t, code)
	assert.Contains(t, string(code.Contents), "padStart")
}

func TestEsbuild_UnresolvedImport(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"codes/index.ts": `import { a } from "./missing"; export const b = a;`})

	outs, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.ts", config.ModeDevelopment, transform.Options{}))
	require.Error(t, err)
	assert.Nil(t, outs)

	pe, ok := pxerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, pxerrors.CategoryResolve, pe.Category)
	assert.Equal(t, "./missing", pe.Context["import"])
	assert.Contains(t, err.Error(), "Could not resolve")
}

func TestEsbuild_SyntaxError(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"codes/index.ts": `export const a = ;`})

	for _, mode := range []config.BuildMode{config.ModeDevelopment, config.ModeProduction} {
		_, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.ts", mode, transform.Options{}))
		require.Error(t, err)
		pe, ok := pxerrors.As(err)
		require.True(t, ok)
		assert.Equal(t, pxerrors.CategoryTransform, pe.Category)
		want := "typescript"
		if mode == config.ModeProduction {
			want = "esbuild"
		}
		assert.Equal(t, want, pe.Context["unit"])
	}
}

type fakeChecker struct {
	diags []transform.Diagnostic
}

func (f fakeChecker) Check(context.Context, transform.CheckRequest) ([]transform.Diagnostic, error) {
	return f.diags, nil
}

func TestEsbuild_TypeCheckDiagnosticsFailDevelopment(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"codes/index.ts": `export const n: number = 1;`})
	checker := fakeChecker{diags: []transform.Diagnostic{{
		File: filepath.Join(root, "codes/index.ts"), Line: 1, Column: 14, Code: "TS2322",
		Message: "Type 'string' is not assignable to type 'number'.",
	}}}
	opts := transform.Options{TypeChecker: checker}

	_, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.ts", config.ModeDevelopment, opts))
	require.Error(t, err)
	pe, ok := pxerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, pxerrors.CategoryTransform, pe.Category)
	assert.Equal(t, transform.TypeCheckPluginName, pe.Context["unit"])
	assert.Contains(t, err.Error(), "TS2322")

	// Production skips the checker entirely.
	outs, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.ts", config.ModeProduction, opts))
	require.NoError(t, err)
	assert.Len(t, outs, 1)
}

// A project without tsconfig.json still type checks in development: the
// compiler is pointed at the entry file with the bundle's JSX bindings
// instead of being asked for a project it cannot find.
func TestEsbuild_DevelopmentTypeCheckWithoutTSConfig(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"codes/index.tsx": app, "codes/greet.ts": greet})
	bin := filepath.Join(root, "node_modules", ".bin")
	require.NoError(t, os.MkdirAll(bin, 0o750))
	script := `#!/bin/sh
for a in "$@"; do
  if [ "$a" = "-p" ]; then
    echo "error TS5057: Cannot find a tsconfig.json file at the specified directory: '.'."
    exit 1
  fi
done
echo "$@" > "$0.args"
exit 0
`
	require.NoError(t, os.WriteFile(filepath.Join(bin, "tsc"), []byte(script), 0o700)) // #nosec G306 -- test script must be executable

	tsc, err := transform.NewTSC(config.Default().Build.TypeCheck.Command, root)
	require.NoError(t, err)

	outs, err := NewEsbuild().Bundle(context.Background(), passConfig(t, root, "codes/index.tsx", config.ModeDevelopment, transform.Options{TypeChecker: tsc}))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index.js", "index.js.map"}, outputNames(outs))

	args, err := os.ReadFile(filepath.Join(bin, "tsc.args"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "--jsxFactory "+transform.JSXFactory)
	assert.Contains(t, string(args), "--jsxFragmentFactory "+transform.JSXFragment)
	assert.Contains(t, string(args), filepath.Join(root, "codes", "index.tsx"))
}

type blockingChecker struct{}

func (blockingChecker) Check(ctx context.Context, _ transform.CheckRequest) ([]transform.Diagnostic, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEsbuild_CancelStopsTypeCheck(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"codes/index.ts": `export const n = 1;`})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewEsbuild().Bundle(ctx, passConfig(t, root, "codes/index.ts", config.ModeDevelopment, transform.Options{TypeChecker: blockingChecker{}}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEsbuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEsbuild().Bundle(ctx, passConfig(t, t.TempDir(), "codes/index.ts", config.ModeDevelopment, transform.Options{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptions(t *testing.T) {
	root := t.TempDir()
	dev := Options(context.Background(), passConfig(t, root, "codes/index.ts", config.ModeDevelopment, transform.Options{}))
	assert.Equal(t, api.SourceMapLinked, dev.Sourcemap)
	assert.Equal(t, api.FormatESModule, dev.Format)
	assert.False(t, dev.Write)
	assert.False(t, dev.MinifyWhitespace)

	prod := Options(context.Background(), passConfig(t, root, "codes/index.ts", config.ModeProduction, transform.Options{}))
	assert.Equal(t, api.SourceMapNone, prod.Sourcemap)
	assert.True(t, prod.MinifyIdentifiers)
	assert.Equal(t, transform.JSXFactory, prod.JSXFactory)
	assert.Equal(t, dev.JSXFactory, prod.JSXFactory)
	assert.Equal(t, dev.JSXFragment, prod.JSXFragment)
}
