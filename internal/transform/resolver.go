package transform

import (
	"fmt"

	"git.home.luguber.info/inful/pxbuild/internal/config"
)

// Options carries the project-level settings units are built from. They are
// fixed for the lifetime of a Resolver.
type Options struct {
	Aliases   map[string]string
	NodePaths []string
	// TypeChecker runs in development builds. Nil skips type checking.
	TypeChecker TypeChecker
}

// Resolver returns the transform spec for a build mode.
type Resolver struct {
	opts Options
}

// NewResolver creates a Resolver. The options are copied.
func NewResolver(opts Options) *Resolver {
	aliases := make(map[string]string, len(opts.Aliases))
	for k, v := range opts.Aliases {
		aliases[k] = v
	}
	opts.Aliases = aliases
	opts.NodePaths = append([]string(nil), opts.NodePaths...)
	return &Resolver{opts: opts}
}

// Resolve returns the ordered units for mode: module resolution, interop
// normalization, then the mode's language transform. It has no side effects.
func (r *Resolver) Resolve(mode config.BuildMode) Spec {
	spec := Spec{
		&resolveUnit{aliases: r.opts.Aliases, nodePaths: r.opts.NodePaths},
		&interopUnit{nodeEnv: nodeEnv(mode)},
	}
	switch mode {
	case config.ModeDevelopment:
		spec = append(spec, &typeScriptUnit{checker: r.opts.TypeChecker})
	case config.ModeProduction:
		spec = append(spec, &esbuildUnit{})
	default:
		panic(fmt.Sprintf("transform: unknown build mode %q", mode))
	}
	return spec
}

// Resolve returns the spec for mode with no aliases and no type checker.
func Resolve(mode config.BuildMode) Spec {
	return NewResolver(Options{}).Resolve(mode)
}

func nodeEnv(mode config.BuildMode) string {
	if mode == config.ModeProduction {
		return "production"
	}
	return "development"
}
