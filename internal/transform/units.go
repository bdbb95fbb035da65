package transform

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
)

// resolveUnit maps bare and package-style imports onto files: configured
// aliases first, then node_modules lookup by esbuild's resolver.
type resolveUnit struct {
	aliases   map[string]string
	nodePaths []string
}

var resolveExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".cjs", ".json"}

func (u *resolveUnit) Name() string { return "resolve" }
func (u *resolveUnit) Kind() Kind   { return KindResolve }

func (u *resolveUnit) Apply(_ context.Context, opts *api.BuildOptions) {
	opts.Bundle = true
	opts.ResolveExtensions = appendUnique(opts.ResolveExtensions, resolveExtensions...)
	opts.NodePaths = appendUnique(opts.NodePaths, u.nodePaths...)
	if len(u.aliases) > 0 {
		if opts.Alias == nil {
			opts.Alias = make(map[string]string, len(u.aliases))
		}
		for spec, target := range u.aliases {
			opts.Alias[spec] = target
		}
	}
}

// interopUnit lets CommonJS and ES modules be consumed uniformly from the
// bundle: browser resolution, .cjs/.mjs loaders and a NODE_ENV define that
// CommonJS packages commonly branch on.
type interopUnit struct {
	nodeEnv string
}

func (u *interopUnit) Name() string { return "interop" }
func (u *interopUnit) Kind() Kind   { return KindInterop }

func (u *interopUnit) Apply(_ context.Context, opts *api.BuildOptions) {
	opts.Platform = api.PlatformBrowser
	opts.MainFields = appendUnique(opts.MainFields, "browser", "module", "main")
	mergeLoaders(opts, map[string]api.Loader{
		".cjs": api.LoaderJS,
		".mjs": api.LoaderJS,
		".js":  api.LoaderJS,
	})
	mergeDefine(opts, map[string]string{
		"process.env.NODE_ENV": `"` + u.nodeEnv + `"`,
	})
}

// typeScriptUnit is the development language transform: type-aware, readable
// output, detailed source maps.
type typeScriptUnit struct {
	checker TypeChecker
}

func (u *typeScriptUnit) Name() string { return "typescript" }
func (u *typeScriptUnit) Kind() Kind   { return KindLanguage }

func (u *typeScriptUnit) Apply(ctx context.Context, opts *api.BuildOptions) {
	applyJSX(opts)
	mergeLoaders(opts, map[string]api.Loader{
		".ts":  api.LoaderTS,
		".tsx": api.LoaderTSX,
		".jsx": api.LoaderJSX,
	})
	opts.Target = Target
	opts.MinifyWhitespace = false
	opts.MinifyIdentifiers = false
	opts.MinifySyntax = false
	opts.KeepNames = true
	opts.SourcesContent = api.SourcesContentInclude
	if u.checker != nil {
		opts.Plugins = append(opts.Plugins, typeCheckPlugin(ctx, u.checker))
	}
}

// esbuildUnit is the production language transform: no type checking,
// minified output.
type esbuildUnit struct{}

func (u *esbuildUnit) Name() string { return "esbuild" }
func (u *esbuildUnit) Kind() Kind   { return KindLanguage }

func (u *esbuildUnit) Apply(_ context.Context, opts *api.BuildOptions) {
	applyJSX(opts)
	mergeLoaders(opts, map[string]api.Loader{
		".ts":  api.LoaderTS,
		".tsx": api.LoaderTSX,
		".jsx": api.LoaderJSX,
	})
	opts.Target = Target
	opts.MinifyWhitespace = true
	opts.MinifyIdentifiers = true
	opts.MinifySyntax = true
	opts.KeepNames = false
	opts.LegalComments = api.LegalCommentsNone
}

func applyJSX(opts *api.BuildOptions) {
	opts.JSX = api.JSXTransform
	opts.JSXFactory = JSXFactory
	opts.JSXFragment = JSXFragment
}

// TypeCheckPluginName is the plugin name carried by type-check diagnostics.
const TypeCheckPluginName = "typescript"

// typeCheckPlugin runs checker once per pass. ctx is the context of the
// pass the options were built for, so canceling it stops the compiler.
func typeCheckPlugin(ctx context.Context, checker TypeChecker) api.Plugin {
	return api.Plugin{
		Name: TypeCheckPluginName,
		Setup: func(build api.PluginBuild) {
			req := CheckRequest{Dir: build.InitialOptions.AbsWorkingDir}
			if len(build.InitialOptions.EntryPoints) > 0 {
				req.Entry = build.InitialOptions.EntryPoints[0]
			}
			build.OnStart(func() (api.OnStartResult, error) {
				diags, err := checker.Check(ctx, req)
				if err != nil {
					return api.OnStartResult{}, err
				}
				msgs := make([]api.Message, 0, len(diags))
				for _, d := range diags {
					msgs = append(msgs, d.message())
				}
				return api.OnStartResult{Errors: msgs}, nil
			})
		},
	}
}
