package transform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestInlineMetaResolve verifies literal resolve calls become file URLs and
// everything else is left alone.
func TestInlineMetaResolve(t *testing.T) {
	file := filepath.FromSlash("/proj/src/config.ts")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "relative literal",
			in:   `const u = import.meta.resolve("./data.json");`,
			want: `const u = "file:///proj/src/data.json";`,
		},
		{
			name: "non-null assertion and single quotes",
			in:   `const u = import.meta.resolve!( '../x.ts' );`,
			want: `const u = "file:///proj/x.ts";`,
		},
		{
			name: "bare specifier untouched",
			in:   `import.meta.resolve("lodash")`,
			want: `import.meta.resolve("lodash")`,
		},
		{
			name: "non-literal argument untouched",
			in:   `import.meta.resolve(name)`,
			want: `import.meta.resolve(name)`,
		},
		{
			name: "inside a string untouched",
			in:   `const s = 'import.meta.resolve("./a")';`,
			want: `const s = 'import.meta.resolve("./a")';`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InlineMetaResolve(tt.in, file))
		})
	}
}

// TestInjectContextConstants verifies the prologue and the meta rewrites.
func TestInjectContextConstants(t *testing.T) {
	file := filepath.FromSlash("/proj/src/config.ts")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "dirname reference",
			in:   "console.log(__dirname)\n",
			want: "const __dirname = \"/proj/src\";\nconsole.log(__dirname)\n",
		},
		{
			name: "both names",
			in:   "f(__filename, __dirname)",
			want: "const __filename = \"/proj/src/config.ts\";\nconst __dirname = \"/proj/src\";\nf(__filename, __dirname)",
		},
		{
			name: "meta properties",
			in:   "f(import.meta.url, import.meta.filename, import.meta.dirname)",
			want: "f(\"file:///proj/src/config.ts\", \"/proj/src/config.ts\", \"/proj/src\")",
		},
		{
			name: "declared binding kept",
			in:   "const __dirname = dirname(fileURLToPath(import.meta.url));",
			want: "const __dirname = dirname(fileURLToPath(\"file:///proj/src/config.ts\"));",
		},
		{
			name: "string key untouched",
			in:   "const m = { \"import.meta.url\": import.meta.url };",
			want: "const m = { \"import.meta.url\": \"file:///proj/src/config.ts\" };",
		},
		{
			name: "comment untouched",
			in:   "// uses __dirname\nexport default 1",
			want: "// uses __dirname\nexport default 1",
		},
		{
			name: "property access untouched",
			in:   "module.__filename = 1",
			want: "module.__filename = 1",
		},
		{
			name: "meta property at the very start",
			in:   "import.meta.url && log(__dirname)",
			want: "const __dirname = \"/proj/src\";\n\"file:///proj/src/config.ts\" && log(__dirname)",
		},
		{
			name: "meta property first after hashbang",
			in:   "#!/usr/bin/env node\nimport.meta.dirname && log(__filename)",
			want: "#!/usr/bin/env node\nconst __filename = \"/proj/src/config.ts\";\n\"/proj/src\" && log(__filename)",
		},
		{
			name: "after hashbang",
			in:   "#!/usr/bin/env node\nlog(__filename)",
			want: "#!/usr/bin/env node\nconst __filename = \"/proj/src/config.ts\";\nlog(__filename)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InjectContextConstants(tt.in, file))
		})
	}
}

// TestSource verifies the source passes compose.
func TestSource(t *testing.T) {
	file := filepath.FromSlash("/proj/a.ts")
	got := Source(`export default [import.meta.resolve("./b.ts"), __dirname]`, file)
	assert.Equal(t, "const __dirname = \"/proj\";\nexport default [\"file:///proj/b.ts\", __dirname]", got)
}
