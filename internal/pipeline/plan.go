// Package pipeline builds the complete input/output configuration of one
// bundling pass from a build mode.
package pipeline

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/pxbuild/internal/config"
	"git.home.luguber.info/inful/pxbuild/internal/transform"
)

// ModuleFormat is the shape of the emitted bundle. Only ES modules are produced.
type ModuleFormat string

const FormatESM ModuleFormat = "esm"

// MapSuffix is appended to the destination path to name the source map.
const MapSuffix = ".map"

// InputSpec is the input side of a pass: one entry file and the ordered units.
type InputSpec struct {
	EntryPath string
	Plugins   transform.Spec
}

// OutputSpec is the output side of a pass.
type OutputSpec struct {
	DestinationPath string
	Format          ModuleFormat
	SourceMap       bool
}

// Config is the complete configuration of one bundling pass.
type Config struct {
	Mode   config.BuildMode
	Root   string
	Input  InputSpec
	Output OutputSpec
}

// MapPath is the sibling path that receives the serialized source map.
func (c Config) MapPath() string {
	return c.Output.DestinationPath + MapSuffix
}

// PluginResolver returns the transform units for a mode.
type PluginResolver interface {
	Resolve(mode config.BuildMode) transform.Spec
}

// Paths locates the project. Entry and Output may be relative to Root.
type Paths struct {
	Root   string
	Entry  string
	Output string
}

// Builder produces pass configurations for a fixed entry and destination.
// A Builder supports exactly one entry and one output target.
type Builder struct {
	root    string
	entry   string
	output  string
	plugins PluginResolver
}

// NewBuilder resolves paths to absolute form once so Build does no I/O.
func NewBuilder(paths Paths, plugins PluginResolver) (*Builder, error) {
	if paths.Entry == "" || paths.Output == "" {
		return nil, fmt.Errorf("pipeline: entry and output paths are required")
	}
	if plugins == nil {
		return nil, fmt.Errorf("pipeline: plugin resolver is required")
	}
	root, err := filepath.Abs(paths.Root)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve root: %w", err)
	}
	return &Builder{
		root:    root,
		entry:   absUnder(root, paths.Entry),
		output:  absUnder(root, paths.Output),
		plugins: plugins,
	}, nil
}

// FromConfig creates a Builder from the project section of cfg.
func FromConfig(cfg *config.Config, plugins PluginResolver) (*Builder, error) {
	return NewBuilder(Paths{
		Root:   cfg.Project.Root,
		Entry:  cfg.Project.Entry,
		Output: cfg.Project.Output,
	}, plugins)
}

// Build returns the pass configuration for mode. It is deterministic.
func (b *Builder) Build(mode config.BuildMode) Config {
	return Config{
		Mode: mode,
		Root: b.root,
		Input: InputSpec{
			EntryPath: b.entry,
			Plugins:   b.plugins.Resolve(mode),
		},
		Output: OutputSpec{
			DestinationPath: b.output,
			Format:          FormatESM,
			SourceMap:       SourceMapEnabled(mode),
		},
	}
}

// SourceMapEnabled is the only place the source-map policy is decided.
func SourceMapEnabled(mode config.BuildMode) bool {
	switch mode {
	case config.ModeDevelopment:
		return true
	case config.ModeProduction:
		return false
	default:
		panic(fmt.Sprintf("pipeline: unknown build mode %q", mode))
	}
}

func absUnder(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
