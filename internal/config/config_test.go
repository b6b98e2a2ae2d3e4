package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// TestResolveDefaults verifies the default entry file, preset and wrapper.
func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, DefaultPath, "export default 1\n")

	cfg, err := Resolve(Options{WorkDir: dir, Settings: &Settings{}})
	require.NoError(t, err)

	assert.Equal(t, entry, cfg.Path)
	assert.Equal(t, dir, cfg.WorkDir)
	assert.Equal(t, dir, cfg.EntryDir())
	assert.Equal(t, model.PresetNone, cfg.Preset)
	assert.Equal(t, model.WrapperPromote, cfg.WrapperStrategy)
	assert.Equal(t, DefaultNode, cfg.NodePath)
	assert.False(t, cfg.Debug)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Stdout)
}

// TestResolveFileURL verifies that file:// URLs are converted to paths.
func TestResolveFileURL(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "app.ts", "export {}\n")

	cfg, err := Resolve(Options{Path: "file://" + filepath.ToSlash(entry), WorkDir: dir, Settings: &Settings{}})
	require.NoError(t, err)
	assert.Equal(t, entry, cfg.Path)
}

// TestResolveErrors verifies that configuration errors name the field.
func TestResolveErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.ts", "export {}\n")

	tests := []struct {
		name    string
		opts    Options
		wantMsg string
	}{
		{
			name:    "missing file",
			opts:    Options{Path: "missing.ts"},
			wantMsg: "path: file not found",
		},
		{
			name:    "directory entry",
			opts:    Options{Path: "."},
			wantMsg: "path: file not found",
		},
		{
			name:    "unknown preset",
			opts:    Options{Path: "app.ts", Preset: "rollup"},
			wantMsg: "preset:",
		},
		{
			name:    "unknown wrapper",
			opts:    Options{Path: "app.ts", WrapperStrategy: "inline"},
			wantMsg: "wrapperStrategy:",
		},
		{
			name:    "missing env file",
			opts:    Options{Path: "app.ts", EnvFiles: []string{"nope.env"}},
			wantMsg: "envFiles:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.WorkDir = dir
			tt.opts.Settings = &Settings{}
			_, err := Resolve(tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrConfig)
			assert.Contains(t, err.Error(), "[unrun] "+tt.wantMsg)
		})
	}
}

// TestResolvePrecedence verifies that explicit options override settings.
func TestResolvePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.ts", "export {}\n")
	settings := &Settings{Debug: true, Preset: "jiti", Node: "/opt/node", Wrapper: "unwrap"}

	cfg, err := Resolve(Options{Path: "app.ts", WorkDir: dir, Settings: settings})
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, model.PresetJiti, cfg.Preset)
	assert.Equal(t, "/opt/node", cfg.NodePath)
	assert.Equal(t, model.WrapperUnwrap, cfg.WrapperStrategy)

	cfg, err = Resolve(Options{
		Path: "app.ts", WorkDir: dir, Settings: settings,
		Preset: "bundle-require", NodePath: "node22", WrapperStrategy: "promote",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PresetBundleRequire, cfg.Preset)
	assert.Equal(t, "node22", cfg.NodePath)
	assert.Equal(t, model.WrapperPromote, cfg.WrapperStrategy)
}

// TestResolveEnv verifies env files are merged and explicit Env wins.
func TestResolveEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.ts", "export {}\n")
	writeFile(t, dir, ".env", "A=1\nB=2\n")
	writeFile(t, dir, ".env.local", "B=3\n")

	cfg, err := Resolve(Options{
		Path:     "app.ts",
		WorkDir:  dir,
		Settings: &Settings{},
		EnvFiles: []string{".env", ".env.local"},
		Env:      map[string]string{"C": "4"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "3", "C": "4"}, cfg.Env)

	environ := cfg.Environ()
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, environ[len(environ)-3:])
}

// TestResolveOverridesAndLogger verifies pass-through fields.
func TestResolveOverridesAndLogger(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.ts", "export {}\n")
	var stderr bytes.Buffer
	called := false

	cfg, err := Resolve(Options{
		Path:           "app.ts",
		WorkDir:        dir,
		Settings:       &Settings{},
		Debug:          true,
		Stderr:         &stderr,
		InputOverrides: func(*api.BuildOptions) { called = true },
	})
	require.NoError(t, err)
	require.NotNil(t, cfg.InputOverrides)
	cfg.InputOverrides(&api.BuildOptions{})
	assert.True(t, called)
	assert.Contains(t, stderr.String(), "resolved configuration")
}

// TestLoadSettings verifies rc-file loading and environment precedence.
func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".unrunrc.yaml", "preset: jiti\nnode: /usr/bin/node\n")

	t.Setenv("UNRUN_NODE", "/custom/node")
	t.Setenv("UNRUN_DEBUG", "true")

	s, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "jiti", s.Preset)
	assert.Equal(t, "/custom/node", s.Node)
	assert.True(t, s.Debug)
}

// TestLoadSettingsMissingFile verifies a missing rc file is not an error.
func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, s.Preset)
}

// TestNormalizePath verifies URL-form and plain path handling.
func TestNormalizePath(t *testing.T) {
	assert.Equal(t, DefaultPath, NormalizePath(""))
	assert.Equal(t, "./a.ts", NormalizePath("./a.ts"))
	assert.Equal(t, filepath.FromSlash("/tmp/a b.ts"), NormalizePath("file:///tmp/a%20b.ts"))
}
