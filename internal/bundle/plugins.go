package bundle

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/external"
	"github.com/shinji-kodama/unrun/internal/transform"
)

const (
	// requireDataNamespace holds data files reached through require(),
	// which are materialized as CommonJS modules.
	requireDataNamespace = "unrun-data-cjs"

	dataFilter   = `\.(json|jsonc|ya?ml|toml)$`
	aliasFilter  = `\.[mc]?jsx?$`
	scriptFilter = `\.[mc]?[jt]sx?$`
)

// nested marks resolutions issued by the plugins themselves so that they
// pass straight through to esbuild's own resolver.
type nested struct{}

func isNested(data any) bool {
	_, ok := data.(nested)
	return ok
}

// plugins returns the plugin chain for one build. All plugins share one
// classifier so decisions are memoised across the whole graph.
func plugins(cfg *config.ResolvedConfig) []api.Plugin {
	var classifier *external.Classifier
	return []api.Plugin{
		{
			Name: "unrun:setup",
			Setup: func(build api.PluginBuild) {
				classifier = external.New(cfg.Path, cfg.WorkDir, engineResolve(build), cfg.Logger)
			},
		},
		dataPlugin(),
		aliasPlugin(),
		externalPlugin(func() *external.Classifier { return classifier }),
		sourcePlugin(),
	}
}

// engineResolve adapts esbuild's resolver to external.ResolveFunc.
func engineResolve(build api.PluginBuild) external.ResolveFunc {
	return func(specifier, resolveDir string) (string, error) {
		r := build.Resolve(specifier, api.ResolveOptions{
			ResolveDir: resolveDir,
			Kind:       api.ResolveJSImportStatement,
			PluginData: nested{},
		})
		if len(r.Errors) > 0 {
			return "", &EngineError{Messages: r.Errors}
		}
		return r.Path, nil
	}
}

// dataPlugin materializes data files, including those inside installed
// packages, so the artifact never imports a data file natively. Static
// imports get an ES module with named exports; require() calls get the
// CommonJS shape so that the value itself is what require returns.
func dataPlugin() api.Plugin {
	return api.Plugin{
		Name: "unrun:data",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: dataFilter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if isNested(args.PluginData) {
						return api.OnResolveResult{}, nil
					}
					r := build.Resolve(args.Path, api.ResolveOptions{
						Importer:   args.Importer,
						ResolveDir: args.ResolveDir,
						Kind:       args.Kind,
						PluginData: nested{},
					})
					if len(r.Errors) > 0 {
						return api.OnResolveResult{Errors: r.Errors}, nil
					}
					if r.External || !filepath.IsAbs(r.Path) {
						return api.OnResolveResult{}, nil
					}
					namespace := "file"
					if args.Kind == api.ResolveJSRequireCall {
						namespace = requireDataNamespace
					}
					return api.OnResolveResult{Path: r.Path, Namespace: namespace}, nil
				})

			load := func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				raw, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				code, err := transform.DataModule(args.Path, raw, args.Namespace == requireDataNamespace)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				dir := filepath.Dir(args.Path)
				return api.OnLoadResult{Contents: &code, ResolveDir: dir, Loader: api.LoaderJS}, nil
			}
			build.OnLoad(api.OnLoadOptions{Filter: dataFilter, Namespace: "file"}, load)
			build.OnLoad(api.OnLoadOptions{Filter: dataFilter, Namespace: requireDataNamespace}, load)
		},
	}
}

// aliasPlugin maps "./x.js" onto "./x.ts" when only the typed file exists.
func aliasPlugin() api.Plugin {
	return api.Plugin{
		Name: "unrun:typed-alias",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: aliasFilter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if isNested(args.PluginData) {
						return api.OnResolveResult{}, nil
					}
					if typed, ok := transform.ResolveTypedAlias(args.Path, args.ResolveDir); ok {
						return api.OnResolveResult{Path: typed}, nil
					}
					return api.OnResolveResult{}, nil
				})
		},
	}
}

// externalPlugin marks the imports the classifier keeps external.
func externalPlugin(classifier func() *external.Classifier) api.Plugin {
	return api.Plugin{
		Name: "unrun:external",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if isNested(args.PluginData) || args.Kind == api.ResolveEntryPoint {
						return api.OnResolveResult{}, nil
					}
					if classifier().Classify(args.Path, args.Importer) == external.External {
						return api.OnResolveResult{Path: args.Path, External: true}, nil
					}
					return api.OnResolveResult{}, nil
				})
		},
	}
}

// sourcePlugin applies the source transforms to every script file. esbuild
// only honours the first load callback that returns contents, so all
// source-level rewrites happen here.
func sourcePlugin() api.Plugin {
	return api.Plugin{
		Name: "unrun:source",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: scriptFilter, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					raw, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					code := transform.Source(string(raw), args.Path)
					return api.OnLoadResult{Contents: &code, Loader: loaderFor(args.Path)}, nil
				})
		},
	}
}

func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}
