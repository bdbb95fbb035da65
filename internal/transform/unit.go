package transform

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
)

// JSX bindings used in place of the platform JSX runtime. Both modes use
// these exact values.
const (
	JSXFactory  = "Px.createElement"
	JSXFragment = "Px.Fragment"
)

// Target is the language level every mode lowers to.
const Target = api.ES2017

// Kind classifies a unit's position in a Spec.
type Kind string

const (
	KindResolve  Kind = "resolve"
	KindInterop  Kind = "interop"
	KindLanguage Kind = "language"
)

// Unit is one transform stage. Apply writes the unit's settings into opts and
// must merge, never replace, maps and slices set by earlier units. ctx bounds
// any work a unit's plugins do while the pass runs.
type Unit interface {
	Name() string
	Kind() Kind
	Apply(ctx context.Context, opts *api.BuildOptions)
}

// Spec is an ordered list of units; earlier entries run first.
type Spec []Unit

// Names returns unit names in application order.
func (s Spec) Names() []string {
	names := make([]string, len(s))
	for i, u := range s {
		names[i] = u.Name()
	}
	return names
}

// Apply applies every unit in order.
func (s Spec) Apply(ctx context.Context, opts *api.BuildOptions) {
	for _, u := range s {
		u.Apply(ctx, opts)
	}
}

// Language returns the mode-specific language unit, or nil for an empty spec.
func (s Spec) Language() Unit {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Kind() == KindLanguage {
			return s[i]
		}
	}
	return nil
}

func mergeLoaders(opts *api.BuildOptions, loaders map[string]api.Loader) {
	if opts.Loader == nil {
		opts.Loader = make(map[string]api.Loader, len(loaders))
	}
	for ext, l := range loaders {
		opts.Loader[ext] = l
	}
}

func mergeDefine(opts *api.BuildOptions, defs map[string]string) {
	if opts.Define == nil {
		opts.Define = make(map[string]string, len(defs))
	}
	for k, v := range defs {
		opts.Define[k] = v
	}
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range values {
		if !seen[v] {
			dst = append(dst, v)
			seen[v] = true
		}
	}
	return dst
}
