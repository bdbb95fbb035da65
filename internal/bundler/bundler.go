// Package bundler runs one full esbuild pass for a pipeline configuration.
package bundler

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
	"git.home.luguber.info/inful/pxbuild/internal/pipeline"
)

// Output is one in-memory file produced by a pass.
type Output struct {
	Path     string
	Contents []byte
}

// Bundler runs a bundling pass. Implementations never write to disk.
type Bundler interface {
	Bundle(ctx context.Context, cfg pipeline.Config) ([]Output, error)
}

// Esbuild bundles with the esbuild Go API. Every call is a full, independent
// pass; no incremental state is kept between calls.
type Esbuild struct{}

// NewEsbuild returns an esbuild-backed Bundler.
func NewEsbuild() *Esbuild {
	return &Esbuild{}
}

// Options converts cfg into esbuild build options. Units are applied on top of
// the base options in spec order; ctx bounds the work their plugins do.
func Options(ctx context.Context, cfg pipeline.Config) api.BuildOptions {
	opts := api.BuildOptions{
		AbsWorkingDir: cfg.Root,
		EntryPoints:   []string{cfg.Input.EntryPath},
		Outfile:       cfg.Output.DestinationPath,
		Bundle:        true,
		Write:         false,
		Format:        format(cfg.Output.Format),
		Charset:       api.CharsetUTF8,
		LogLevel:      api.LogLevelSilent,
		Sourcemap:     api.SourceMapNone,
	}
	if cfg.Output.SourceMap {
		opts.Sourcemap = api.SourceMapLinked
	}
	cfg.Input.Plugins.Apply(ctx, &opts)
	return opts
}

// Bundle runs the pass. Failures are classified as resolve or transform
// errors; the first message decides the category.
func (e *Esbuild) Bundle(ctx context.Context, cfg pipeline.Config) ([]Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := api.Build(Options(ctx, cfg))
	if len(result.Errors) > 0 {
		// A plugin stopped by cancellation reports an error of its own.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, classify(cfg, result.Errors)
	}

	outputs := make([]Output, 0, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		outputs = append(outputs, Output{Path: f.Path, Contents: f.Contents})
	}
	return outputs, nil
}

func format(f pipeline.ModuleFormat) api.Format {
	switch f {
	case pipeline.FormatESM:
		return api.FormatESModule
	default:
		panic(fmt.Sprintf("bundler: unsupported module format %q", f))
	}
}

const unresolvedPrefix = "Could not resolve "

func classify(cfg pipeline.Config, msgs []api.Message) error {
	cause := &Diagnostics{Messages: msgs}
	first := msgs[0]

	if strings.HasPrefix(first.Text, unresolvedPrefix) {
		importer := cfg.Input.EntryPath
		if first.Location != nil {
			importer = first.Location.File
		}
		return pxerrors.ResolveFailed(unquote(strings.TrimPrefix(first.Text, unresolvedPrefix)), importer, cause)
	}

	unit := first.PluginName
	if unit == "" {
		if lang := cfg.Input.Plugins.Language(); lang != nil {
			unit = lang.Name()
		}
	}
	return pxerrors.TransformFailed(unit, cause)
}

func unquote(s string) string {
	if i := strings.IndexByte(s, '"'); i >= 0 {
		if j := strings.IndexByte(s[i+1:], '"'); j >= 0 {
			return s[i+1 : i+1+j]
		}
	}
	return s
}

// Diagnostics is the raw esbuild message list of a failed pass.
type Diagnostics struct {
	Messages []api.Message
}

func (d *Diagnostics) Error() string {
	lines := make([]string, 0, len(d.Messages))
	for _, m := range d.Messages {
		lines = append(lines, formatMessage(m))
	}
	return strings.Join(lines, "; ")
}

func formatMessage(m api.Message) string {
	var b strings.Builder
	if m.Location != nil {
		fmt.Fprintf(&b, "%s:%d:%d: ", m.Location.File, m.Location.Line, m.Location.Column)
	}
	if m.PluginName != "" {
		fmt.Fprintf(&b, "[%s] ", m.PluginName)
	}
	b.WriteString(m.Text)
	return b.String()
}
