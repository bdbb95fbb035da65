package transform

import (
	"context"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pxbuild/internal/config"
)

type stubChecker struct{ diags []Diagnostic }

func (s stubChecker) Check(context.Context, CheckRequest) ([]Diagnostic, error) { return s.diags, nil }

func TestResolve_Order(t *testing.T) {
	tests := []struct {
		mode config.BuildMode
		want []string
	}{
		{config.ModeDevelopment, []string{"resolve", "interop", "typescript"}},
		{config.ModeProduction, []string{"resolve", "interop", "esbuild"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			spec := Resolve(tt.mode)
			assert.Equal(t, tt.want, spec.Names())
			require.Len(t, spec, 3)
			assert.Equal(t, KindResolve, spec[0].Kind())
			assert.Equal(t, KindInterop, spec[1].Kind())
			assert.Equal(t, KindLanguage, spec[2].Kind())
			assert.Equal(t, spec[2], spec.Language())
		})
	}
}

func TestResolve_IsPure(t *testing.T) {
	r := NewResolver(Options{Aliases: map[string]string{"@px/runtime": "./rt.ts"}})

	var a, b api.BuildOptions
	r.Resolve(config.ModeProduction).Apply(context.Background(), &a)
	r.Resolve(config.ModeProduction).Apply(context.Background(), &b)
	assert.Equal(t, a, b)
}

func TestResolve_JSXBindingsMatchAcrossModes(t *testing.T) {
	var dev, prod api.BuildOptions
	Resolve(config.ModeDevelopment).Apply(context.Background(), &dev)
	Resolve(config.ModeProduction).Apply(context.Background(), &prod)

	assert.Equal(t, JSXFactory, dev.JSXFactory)
	assert.Equal(t, JSXFragment, dev.JSXFragment)
	assert.Equal(t, dev.JSXFactory, prod.JSXFactory)
	assert.Equal(t, dev.JSXFragment, prod.JSXFragment)
	assert.Equal(t, api.JSXTransform, dev.JSX)
	assert.Equal(t, api.JSXTransform, prod.JSX)
	assert.Equal(t, dev.Target, prod.Target)
	assert.Equal(t, api.ES2017, prod.Target)
}

func TestResolve_ModeDifferences(t *testing.T) {
	var dev, prod api.BuildOptions
	Resolve(config.ModeDevelopment).Apply(context.Background(), &dev)
	Resolve(config.ModeProduction).Apply(context.Background(), &prod)

	assert.False(t, dev.MinifyWhitespace || dev.MinifyIdentifiers || dev.MinifySyntax)
	assert.True(t, dev.KeepNames)
	assert.Equal(t, api.SourcesContentInclude, dev.SourcesContent)
	assert.Equal(t, `"development"`, dev.Define["process.env.NODE_ENV"])

	assert.True(t, prod.MinifyWhitespace && prod.MinifyIdentifiers && prod.MinifySyntax)
	assert.Equal(t, `"production"`, prod.Define["process.env.NODE_ENV"])
}

func TestResolve_SharedUnitsConfigureResolution(t *testing.T) {
	r := NewResolver(Options{
		Aliases:   map[string]string{"@px/runtime": "./codes/runtime.ts"},
		NodePaths: []string{"/opt/shared/node_modules"},
	})
	var opts api.BuildOptions
	opts.Define = map[string]string{"VERSION": `"1"`}
	r.Resolve(config.ModeDevelopment).Apply(context.Background(), &opts)

	assert.True(t, opts.Bundle)
	assert.Equal(t, api.PlatformBrowser, opts.Platform)
	assert.Equal(t, "./codes/runtime.ts", opts.Alias["@px/runtime"])
	assert.Contains(t, opts.NodePaths, "/opt/shared/node_modules")
	assert.Contains(t, opts.ResolveExtensions, ".tsx")
	assert.Equal(t, api.LoaderJS, opts.Loader[".cjs"])
	assert.Equal(t, api.LoaderTSX, opts.Loader[".tsx"])
	// Earlier settings survive.
	assert.Equal(t, `"1"`, opts.Define["VERSION"])
}

func TestResolve_TypeCheckerOnlyInDevelopment(t *testing.T) {
	r := NewResolver(Options{TypeChecker: stubChecker{}})

	var dev, prod api.BuildOptions
	r.Resolve(config.ModeDevelopment).Apply(context.Background(), &dev)
	r.Resolve(config.ModeProduction).Apply(context.Background(), &prod)

	require.Len(t, dev.Plugins, 1)
	assert.Equal(t, TypeCheckPluginName, dev.Plugins[0].Name)
	assert.Empty(t, prod.Plugins)

	var unchecked api.BuildOptions
	Resolve(config.ModeDevelopment).Apply(context.Background(), &unchecked)
	assert.Empty(t, unchecked.Plugins)
}

func TestNewResolver_CopiesOptions(t *testing.T) {
	aliases := map[string]string{"a": "./a.ts"}
	r := NewResolver(Options{Aliases: aliases})
	aliases["a"] = "./b.ts"

	var opts api.BuildOptions
	r.Resolve(config.ModeProduction).Apply(context.Background(), &opts)
	assert.Equal(t, "./a.ts", opts.Alias["a"])
}

func TestResolve_UnknownModePanics(t *testing.T) {
	assert.Panics(t, func() { Resolve(config.BuildMode("staging")) })
}
