package transform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiagnostics(t *testing.T) {
	out := "codes/index.ts(3,7): error TS2322: Type 'string' is not assignable to type 'number'.\r\n" +
		"\n" +
		"Found 1 error.\n" +
		"codes/app.tsx(10,1): error TS2304: Cannot find name 'foo'.\n"

	diags := ParseDiagnostics(out)
	require.Len(t, diags, 2)
	assert.Equal(t, Diagnostic{
		File: "codes/index.ts", Line: 3, Column: 7, Code: "TS2322",
		Message: "Type 'string' is not assignable to type 'number'.",
	}, diags[0])
	assert.Equal(t, "codes/app.tsx(10,1): TS2304: Cannot find name 'foo'.", diags[1].String())
}

func TestDiagnostic_Message(t *testing.T) {
	msg := Diagnostic{File: "a.ts", Line: 2, Column: 5, Code: "TS1005", Message: "';' expected."}.message()
	assert.Equal(t, TypeCheckPluginName, msg.PluginName)
	assert.Equal(t, "TS1005: ';' expected.", msg.Text)
	require.NotNil(t, msg.Location)
	assert.Equal(t, 4, msg.Location.Column)
}

func writeScript(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "node_modules", ".bin")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body), 0o700)) // #nosec G306 -- test script must be executable
}

func TestTSC_Check(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	t.Run("clean project", func(t *testing.T) {
		root := t.TempDir()
		writeScript(t, root, "tsc", "exit 0\n")
		tsc, err := NewTSC([]string{"tsc", "--noEmit"}, root)
		require.NoError(t, err)

		diags, err := tsc.Check(context.Background(), CheckRequest{Dir: root, Entry: filepath.Join(root, "codes", "index.ts")})
		require.NoError(t, err)
		assert.Empty(t, diags)
	})

	t.Run("diagnostics", func(t *testing.T) {
		root := t.TempDir()
		writeScript(t, root, "tsc", "echo \"codes/index.ts(1,7): error TS2322: Type 'string' is not assignable to type 'number'.\"\nexit 2\n")
		tsc, err := NewTSC([]string{"tsc"}, root)
		require.NoError(t, err)

		diags, err := tsc.Check(context.Background(), CheckRequest{Dir: root, Entry: filepath.Join(root, "codes", "index.ts")})
		require.NoError(t, err)
		require.Len(t, diags, 1)
		assert.Equal(t, "TS2322", diags[0].Code)
	})

	t.Run("failure without diagnostics", func(t *testing.T) {
		root := t.TempDir()
		writeScript(t, root, "tsc", "echo 'error TS5058: The specified path does not exist'\nexit 1\n")
		tsc, err := NewTSC([]string{"tsc"}, root)
		require.NoError(t, err)

		_, err = tsc.Check(context.Background(), CheckRequest{Dir: root, Entry: filepath.Join(root, "codes", "index.ts")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TS5058")
	})
}

// recordArgs installs a tsc stand-in that writes its arguments, one per line,
// next to itself and exits 0.
func recordArgs(t *testing.T, root string) (argsFile string) {
	t.Helper()
	writeScript(t, root, "tsc", "for a in \"$@\"; do echo \"$a\"; done > \"$0.args\"\nexit 0\n")
	return filepath.Join(root, "node_modules", ".bin", "tsc.args")
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func TestTSC_Args(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	jsxAndTarget := []string{
		"--jsx", "react",
		"--jsxFactory", JSXFactory,
		"--jsxFragmentFactory", JSXFragment,
		"--target", "es2017",
	}

	t.Run("without tsconfig checks the entry file", func(t *testing.T) {
		root := t.TempDir()
		argsFile := recordArgs(t, root)
		entry := filepath.Join(root, "codes", "index.tsx")
		tsc, err := NewTSC([]string{"tsc", "--noEmit", "--pretty", "false"}, root)
		require.NoError(t, err)

		diags, err := tsc.Check(context.Background(), CheckRequest{Dir: root, Entry: entry})
		require.NoError(t, err)
		assert.Empty(t, diags)

		args := readArgs(t, argsFile)
		assert.Equal(t, []string{"--noEmit", "--pretty", "false"}, args[:3])
		assert.Subset(t, args, jsxAndTarget)
		assert.NotContains(t, args, "-p")
		assert.Equal(t, entry, args[len(args)-1])
	})

	t.Run("with tsconfig checks the project", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "tsconfig.json"), []byte(`{"compilerOptions":{"strict":true}}`), 0o600))
		argsFile := recordArgs(t, root)
		tsc, err := NewTSC([]string{"tsc", "--noEmit"}, root)
		require.NoError(t, err)

		_, err = tsc.Check(context.Background(), CheckRequest{Dir: root, Entry: filepath.Join(root, "codes", "index.tsx")})
		require.NoError(t, err)

		args := readArgs(t, argsFile)
		assert.Subset(t, args, jsxAndTarget)
		assert.Equal(t, []string{"-p", "."}, args[len(args)-2:])
		assert.NotContains(t, args, filepath.Join(root, "codes", "index.tsx"))
	})

	t.Run("explicit project flag is kept", func(t *testing.T) {
		tsc := &TSC{path: "tsc", args: []string{"--noEmit", "-p", "tsconfig.build.json"}}
		args := tsc.Args(CheckRequest{Dir: t.TempDir(), Entry: "/src/index.ts"})
		assert.Equal(t, []string{"--noEmit", "-p", "tsconfig.build.json"}, args[:3])
		assert.NotContains(t, args, "/src/index.ts")
		assert.Equal(t, 1, strings.Count(strings.Join(args, " "), "-p "))
	})
}

func TestTSC_CheckStopsOnCancel(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	root := t.TempDir()
	writeScript(t, root, "tsc", "exec sleep 30\n")
	tsc, err := NewTSC([]string{"tsc"}, root)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = tsc.Check(ctx, CheckRequest{Dir: root})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNewTSC_Unavailable(t *testing.T) {
	_, err := NewTSC([]string{"pxbuild-no-such-checker"}, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckerUnavailable))

	_, err = NewTSC(nil, t.TempDir())
	assert.True(t, errors.Is(err, ErrCheckerUnavailable))
}
