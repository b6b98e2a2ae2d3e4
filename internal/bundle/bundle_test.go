package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/model"
)

// writeFile creates a file under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newConfig resolves a configuration for entry inside dir without reading
// ambient settings.
func newConfig(t *testing.T, dir, entry string, mutate func(*config.Options)) *config.ResolvedConfig {
	t.Helper()
	opts := config.Options{Path: entry, WorkDir: dir, Settings: &config.Settings{}, Stderr: io.Discard}
	if mutate != nil {
		mutate(&opts)
	}
	cfg, err := config.Resolve(opts)
	require.NoError(t, err)
	return cfg
}

func quoted(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// TestBundleTypeScript verifies aliasing, data imports, context constants
// and dependency collection.
func TestBundleTypeScript(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "src/index.ts",
		"import { greet } from './util.js'\n"+
			"import data from './data.json'\n"+
			"export default { msg: greet(data.name), dir: __dirname, url: import.meta.url }\n")
	util := writeFile(t, dir, "src/util.ts", "export const greet = (n: string): string => `hi ${n}`\n")
	data := writeFile(t, dir, "src/data.json", `{"name": "unrun"}`)

	artifact, err := Bundle(context.Background(), newConfig(t, dir, entry, nil))
	require.NoError(t, err)

	assert.Contains(t, artifact.Code, quoted(filepath.Dir(entry)))
	assert.Contains(t, artifact.Code, quoted(model.FileURL(entry)))
	assert.Contains(t, artifact.Code, "__unrun_data")
	assert.NotContains(t, artifact.Code, "import.meta.url")
	assert.ElementsMatch(t, []string{entry, util, data}, artifact.Dependencies)
}

// TestBundleExternal verifies that builtins and project dependencies stay
// native imports and are not reported as dependencies.
func TestBundleExternal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "node_modules/dep/package.json", `{"name": "dep", "main": "index.js"}`)
	writeFile(t, dir, "node_modules/dep/index.js", "module.exports = 1\n")
	entry := writeFile(t, dir, "index.ts",
		"import fs from 'node:fs'\nimport dep from 'dep'\nexport default [fs, dep]\n")

	artifact, err := Bundle(context.Background(), newConfig(t, dir, entry, nil))
	require.NoError(t, err)

	assert.Contains(t, artifact.Code, `from "node:fs"`)
	assert.Contains(t, artifact.Code, `from "dep"`)
	assert.NotContains(t, artifact.Code, "module.exports = 1")
	assert.Equal(t, []string{entry}, artifact.Dependencies)
}

// TestBundleRequireData verifies that required data files get the CommonJS
// shape.
func TestBundleRequireData(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "data.yaml", "name: unrun\n")
	entry := writeFile(t, dir, "index.cjs", "module.exports = require('./data.yaml').name\n")

	artifact, err := Bundle(context.Background(), newConfig(t, dir, entry, nil))
	require.NoError(t, err)

	assert.NotContains(t, artifact.Code, "__unrun_data")
	assert.Contains(t, artifact.Code, "unrun")
	assert.ElementsMatch(t, []string{entry, data}, artifact.Dependencies)
}

// TestBundlePackageData verifies that data files inside installed packages
// are materialized instead of being left as native imports.
func TestBundlePackageData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "node_modules/top/package.json", `{"name": "top", "version": "1.2.3"}`)
	writeFile(t, dir, "node_modules/top/data.json", `{"answer": 42}`)
	entry := writeFile(t, dir, "index.ts",
		"import data from 'top/data.json'\nimport pkg from 'top/package.json'\nexport default [data.answer, pkg.version]\n")

	artifact, err := Bundle(context.Background(), newConfig(t, dir, entry, nil))
	require.NoError(t, err)

	assert.NotContains(t, artifact.Code, `from "top/data.json"`)
	assert.NotContains(t, artifact.Code, `from "top/package.json"`)
	assert.Contains(t, artifact.Code, `"answer":42`)
	assert.Contains(t, artifact.Code, `"1.2.3"`)
	assert.Equal(t, []string{entry}, artifact.Dependencies)
}

// TestBundleSyntaxError verifies engine diagnostics surface as a bundle
// error.
func TestBundleSyntaxError(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "broken.ts", "export default {\n")

	_, err := Bundle(context.Background(), newConfig(t, dir, entry, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBundle)

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.NotEmpty(t, engineErr.Messages)
	assert.Contains(t, err.Error(), "broken.ts")
}

// TestBundleOverrides verifies user overrides are applied after defaults.
func TestBundleOverrides(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "index.ts", "export default __VALUE__\n")

	cfg := newConfig(t, dir, entry, func(o *config.Options) {
		o.InputOverrides = func(b *api.BuildOptions) {
			b.Define["__VALUE__"] = "4242"
		}
		o.OutputOverrides = func(b *api.BuildOptions) {
			b.Banner = map[string]string{"js": "// overridden banner"}
		}
	})

	artifact, err := Bundle(context.Background(), cfg)
	require.NoError(t, err)
	assert.Contains(t, artifact.Code, "4242")
	assert.Contains(t, artifact.Code, "// overridden banner")
}

// TestBundleCanceled verifies a cancelled context aborts before building.
func TestBundleCanceled(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "index.ts", "export default 1\n")
	cfg := newConfig(t, dir, entry, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Bundle(ctx, cfg)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.ErrorIs(t, err, model.ErrBundle)
	assert.Contains(t, err.Error(), model.ErrorPrefix)
}

// TestDependencies verifies metafile order, prefixes and filtering.
func TestDependencies(t *testing.T) {
	wd := filepath.FromSlash("/proj")
	meta := `{"inputs": {
		"src/b.ts": {"bytes": 1},
		"src/a.ts": {"bytes": 1},
		"node_modules/x/index.js": {"bytes": 1},
		"unrun-data-cjs:/data/d.json": {"bytes": 1},
		"<stdin>": {"bytes": 1}
	}, "outputs": {}}`

	deps, err := dependencies(meta, wd)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(wd, "src", "b.ts"),
		filepath.Join(wd, "src", "a.ts"),
		filepath.FromSlash("/data/d.json"),
	}, deps)

	_, err = dependencies("{", wd)
	assert.Error(t, err)
}

// TestTsconfigRaw verifies experimental decorators are forced on only when
// reflect-metadata is imported.
func TestTsconfigRaw(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tsconfig.json", "{\n  // project settings\n  \"compilerOptions\": { \"target\": \"es2022\", },\n}\n")
	entry := writeFile(t, dir, "index.ts", "export default 1\n")

	raw, err := tsconfigRaw(newConfig(t, dir, entry, nil))
	require.NoError(t, err)
	assert.Empty(t, raw)

	writeFile(t, dir, "model.ts", "import 'reflect-metadata'\nexport class A {}\n")
	raw, err = tsconfigRaw(newConfig(t, dir, entry, nil))
	require.NoError(t, err)

	var parsed struct {
		CompilerOptions map[string]any `json:"compilerOptions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &parsed))
	assert.Equal(t, "es2022", parsed.CompilerOptions["target"])
	assert.Equal(t, true, parsed.CompilerOptions["experimentalDecorators"])
	assert.NotContains(t, parsed.CompilerOptions, "emitDecoratorMetadata")
}
