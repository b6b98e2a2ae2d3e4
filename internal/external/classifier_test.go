package external

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver maps specifiers to fixed paths and counts calls.
type fakeResolver struct {
	paths map[string]string
	calls int
}

func (f *fakeResolver) resolve(specifier, _ string) (string, error) {
	f.calls++
	if p, ok := f.paths[specifier]; ok {
		return p, nil
	}
	return "", errors.New("cannot resolve " + specifier)
}

// TestClassify covers every classification rule.
func TestClassify(t *testing.T) {
	project := filepath.FromSlash("/proj")
	entry := filepath.Join(project, "fixtures", "nested", "custom.config.ts")

	r := &fakeResolver{paths: map[string]string{
		"top":        filepath.Join(project, "node_modules", "top", "index.js"),
		"pnpm-dep":   filepath.Join(project, "node_modules", ".pnpm", "dep@1.0.0", "node_modules", "dep", "index.js"),
		"private":    filepath.Join(project, "fixtures", "nested", "node_modules", "private", "index.js"),
		"elsewhere":  filepath.FromSlash("/other/node_modules/elsewhere/index.js"),
		"linked-pkg": filepath.FromSlash("/workspace/packages/linked/src/index.ts"),
	}}
	c := New(entry, project, r.resolve, nil)

	tests := []struct {
		specifier string
		importer  string
		want      Decision
	}{
		{specifier: "", want: Skip},
		{specifier: "\x00virtual", want: Skip},
		{specifier: "./local", want: Inline},
		{specifier: "../up", want: Inline},
		{specifier: "/abs/file.ts", want: Inline},
		{specifier: "#internal", want: Inline},
		{specifier: "fs", want: External},
		{specifier: "node:fs", want: External},
		{specifier: "node:sqlite", want: External},
		{specifier: "fs/promises", want: External},
		{specifier: "unresolvable", want: External},
		{specifier: "top", want: External},
		{specifier: "pnpm-dep", want: External},
		{specifier: "private", want: Inline},
		{specifier: "elsewhere", want: External},
		{specifier: "linked-pkg", want: Inline},
		{specifier: "private", importer: "\x00virtual-importer", want: Inline},
	}

	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.specifier, tt.importer))
		})
	}
}

// TestClassifyReciprocalNesting verifies that an entry living inside a
// dependency directory never inlines that directory's packages.
func TestClassifyReciprocalNesting(t *testing.T) {
	root := filepath.FromSlash("/proj/node_modules")
	entry := filepath.Join(root, "tool", "config.ts")
	r := &fakeResolver{paths: map[string]string{
		"sibling": filepath.Join(root, "sibling", "index.js"),
	}}

	// workDir differs so the project node_modules rule does not apply.
	c := New(entry, filepath.FromSlash("/elsewhere"), r.resolve, nil)
	assert.Equal(t, External, c.Classify("sibling", entry))
}

// TestClassifyMemoises verifies that repeated lookups hit the cache.
func TestClassifyMemoises(t *testing.T) {
	r := &fakeResolver{paths: map[string]string{"top": "/proj/node_modules/top/index.js"}}
	c := New("/proj/a.ts", "/proj", r.resolve, nil)

	for range 3 {
		assert.Equal(t, External, c.Classify("top", "/proj/a.ts"))
	}
	assert.Equal(t, 1, r.calls)

	// A different importer directory is a different cache entry.
	c.Classify("top", "/proj/sub/b.ts")
	assert.Equal(t, 2, r.calls)
}

// TestOwnerRoot verifies the outermost node_modules directory is chosen.
func TestOwnerRoot(t *testing.T) {
	assert.Equal(t,
		filepath.FromSlash("/a/node_modules"),
		OwnerRoot(filepath.FromSlash("/a/node_modules/.pnpm/x/node_modules/x/i.js")))
	assert.Equal(t, "", OwnerRoot(filepath.FromSlash("/a/src/i.js")))
}

// TestPackageDirResolve verifies the upward node_modules walk.
func TestPackageDirResolve(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "node_modules", "@scope", "pkg")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	sub := filepath.Join(dir, "src", "deep")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	got, err := PackageDirResolve("@scope/pkg/sub/path", sub)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(pkg)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = PackageDirResolve("missing", sub)
	assert.Error(t, err)
}

// TestIsBuiltin verifies builtin detection with and without prefix.
func TestIsBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin("path"))
	assert.True(t, IsBuiltin("node:path"))
	assert.True(t, IsBuiltin("node:test"))
	assert.False(t, IsBuiltin("test"))
	assert.False(t, IsBuiltin("lodash"))
	assert.False(t, IsBuiltin(""))
}
