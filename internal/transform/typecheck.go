package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrCheckerUnavailable is returned when the type checker binary cannot be found.
var ErrCheckerUnavailable = errors.New("type checker not available")

// Diagnostic is one type-checker error.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Code    string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s(%d,%d): %s: %s", d.File, d.Line, d.Column, d.Code, d.Message)
}

func (d Diagnostic) message() api.Message {
	msg := api.Message{
		PluginName: TypeCheckPluginName,
		Text:       strings.TrimSpace(d.Code + ": " + d.Message),
	}
	if d.File != "" {
		// esbuild columns are zero-based, the compiler's are one-based.
		msg.Location = &api.Location{File: d.File, Line: d.Line, Column: max(d.Column-1, 0)}
	}
	return msg
}

// CheckRequest locates the sources a type check covers.
type CheckRequest struct {
	Dir   string // project root; tsc runs here
	Entry string // absolute entry point
}

// TypeChecker validates a project's types without emitting output.
type TypeChecker interface {
	Check(ctx context.Context, req CheckRequest) ([]Diagnostic, error)
}

// tscTarget is Target spelled the way the compiler expects it.
const tscTarget = "es2017"

// compilerArgs pin the compiler to the same JSX bindings and language level
// the bundler emits with, overriding whatever tsconfig.json says.
var compilerArgs = []string{
	"--jsx", "react",
	"--jsxFactory", JSXFactory,
	"--jsxFragmentFactory", JSXFragment,
	"--target", tscTarget,
}

// standaloneArgs stand in for a tsconfig.json when the project has none.
var standaloneArgs = []string{
	"--module", "esnext",
	"--moduleResolution", "bundler",
	"--skipLibCheck",
}

// TSC runs the TypeScript compiler as an external process.
type TSC struct {
	path string
	args []string
}

// NewTSC resolves command[0] against <root>/node_modules/.bin and then PATH.
func NewTSC(command []string, root string) (*TSC, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrCheckerUnavailable)
	}
	bin := command[0]
	if !strings.ContainsRune(bin, filepath.Separator) {
		local := filepath.Join(root, "node_modules", ".bin", bin)
		if st, err := os.Stat(local); err == nil && !st.IsDir() {
			bin = local
		} else if found, err := exec.LookPath(bin); err == nil {
			bin = found
		} else {
			return nil, fmt.Errorf("%w: %s", ErrCheckerUnavailable, command[0])
		}
	}
	return &TSC{path: bin, args: append([]string(nil), command[1:]...)}, nil
}

// Args returns the full compiler argument list for req. A project with a
// tsconfig.json is checked as a project; otherwise the entry file is checked
// directly. An explicit -p/--project in the configured command is kept.
func (t *TSC) Args(req CheckRequest) []string {
	args := append([]string(nil), t.args...)
	args = append(args, compilerArgs...)
	if hasProjectFlag(t.args) {
		return args
	}
	if st, err := os.Stat(filepath.Join(req.Dir, "tsconfig.json")); err == nil && !st.IsDir() {
		return append(args, "-p", ".")
	}
	args = append(args, standaloneArgs...)
	return append(args, req.Entry)
}

func hasProjectFlag(args []string) bool {
	for _, a := range args {
		if a == "-p" || a == "--project" || strings.HasPrefix(a, "--project=") {
			return true
		}
	}
	return false
}

// Check runs the compiler in req.Dir. Compiler diagnostics are returned as
// Diagnostics; failures to run it at all are returned as errors.
func (t *TSC) Check(ctx context.Context, req CheckRequest) ([]Diagnostic, error) {
	cmd := exec.CommandContext(ctx, t.path, t.Args(req)...) // #nosec G204 -- command comes from project configuration
	cmd.Dir = req.Dir
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("run %s: %w", filepath.Base(t.path), err)
	}
	diags := ParseDiagnostics(out.String())
	if len(diags) == 0 {
		return nil, fmt.Errorf("%s exited with code %d: %s", filepath.Base(t.path), exitErr.ExitCode(), strings.TrimSpace(out.String()))
	}
	return diags, nil
}

var diagnosticLine = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): error (TS\d+): (.*)$`)

// ParseDiagnostics extracts error lines in the compiler's non-pretty format:
//
//	codes/index.ts(3,7): error TS2322: Type 'string' is not assignable to type 'number'.
func ParseDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		m := diagnosticLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		ln, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		diags = append(diags, Diagnostic{File: m[1], Line: ln, Column: col, Code: m[4], Message: m[5]})
	}
	return diags
}
