package bundle

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/model"
	"github.com/shinji-kodama/unrun/internal/transform"
)

// EngineError carries the diagnostics esbuild reported for a failed build.
type EngineError struct {
	Messages []api.Message
}

// Error joins the diagnostics, one per line, with their source location
// when esbuild reported one.
func (e *EngineError) Error() string {
	lines := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		text := m.Text
		if m.PluginName != "" {
			text = fmt.Sprintf("[plugin %s] %s", m.PluginName, text)
		}
		if loc := m.Location; loc != nil {
			text = fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, text)
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// Bundle builds cfg.Path into a single ES module and returns it together
// with the local files it was built from. Engine failures are returned as a
// bundle error wrapping an *EngineError. Cancelling ctx aborts the build.
func Bundle(ctx context.Context, cfg *config.ResolvedConfig) (*model.GeneratedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.WrapBundleError("Build canceled", err)
	}

	opts, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}

	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return nil, model.WrapBundleError("Build failed", &EngineError{Messages: cerr.Errors})
	}
	defer bctx.Dispose()

	stop := context.AfterFunc(ctx, bctx.Cancel)
	result := bctx.Rebuild()
	stop()

	if err := ctx.Err(); err != nil {
		return nil, model.WrapBundleError("Build canceled", err)
	}
	if len(result.Errors) > 0 {
		return nil, model.WrapBundleError("Build failed", &EngineError{Messages: result.Errors})
	}
	for _, w := range result.Warnings {
		cfg.Logger.Debug("bundler warning", "text", w.Text)
	}
	if len(result.OutputFiles) == 0 || len(result.OutputFiles[0].Contents) == 0 {
		return nil, model.WrapBundleError("No output chunk found", nil)
	}

	deps, err := dependencies(result.Metafile, opts.AbsWorkingDir)
	if err != nil {
		return nil, model.WrapBundleError("Invalid metafile", err)
	}

	code := transform.Output(string(result.OutputFiles[0].Contents), transform.OutputOptions{
		EntryPath: cfg.Path,
		Wrapper:   cfg.WrapperStrategy,
	})
	cfg.Logger.Debug("bundled entry", "path", cfg.Path, "bytes", len(code), "dependencies", len(deps))

	return &model.GeneratedArtifact{Code: code, Dependencies: deps}, nil
}

// buildOptions assembles the esbuild options for cfg. User overrides are
// applied last, input side first.
func buildOptions(cfg *config.ResolvedConfig) (api.BuildOptions, error) {
	tsconfig, err := tsconfigRaw(cfg)
	if err != nil {
		return api.BuildOptions{}, model.WrapBundleError("Invalid tsconfig.json", err)
	}

	opts := api.BuildOptions{
		EntryPoints:   []string{cfg.Path},
		AbsWorkingDir: cfg.WorkDir,
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		Platform:      api.PlatformNode,
		Format:        api.FormatESModule,
		Target:        api.ESNext,
		KeepNames:     true,
		JSX:           api.JSXTransform,
		JSXFactory:    "React.createElement",
		JSXFragment:   "React.Fragment",
		Define:        map[string]string{"import.meta.env": "process.env"},
		TsconfigRaw:   tsconfig,
		LogLevel:      api.LogLevelSilent,
		Plugins:       plugins(cfg),
	}
	if cfg.InputOverrides != nil {
		cfg.InputOverrides(&opts)
	}
	if cfg.OutputOverrides != nil {
		cfg.OutputOverrides(&opts)
	}
	return opts, nil
}
