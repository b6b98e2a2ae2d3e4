package transform

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shinji-kodama/unrun/internal/lexer"
)

// createRequireImport binds module.createRequire under a name user code
// cannot collide with.
const createRequireImport = `import { createRequire as __unrunCreateRequire } from "node:module";` + "\n"

var (
	requireHelperPattern  = regexp.MustCompile(`(?m)^var __require\s*=`)
	requireResolvePattern = regexp.MustCompile(`\b__require\s*\.\s*resolve\s*\(`)
	requireTypeofPattern  = regexp.MustCompile(`\btypeof\s+__require\b`)
)

// resolveExtensions are tried in order when fixing a relative
// __require.resolve argument.
var resolveExtensions = []string{"", ".ts", ".js", ".mts", ".mjs", ".cts", ".cjs"}

// BridgeRequire replaces the bundler's __require helper, which throws for
// every dynamic require in ESM output, with a require function created for
// entryPath. Externals reached through require() then load natively.
func BridgeRequire(code, entryPath string) string {
	if !strings.Contains(code, "__require") {
		return code
	}
	src := lexer.Scan(code)
	matches := src.FindAllCode(requireHelperPattern)
	if len(matches) == 0 {
		return code
	}
	start := matches[0][0]
	end := src.StatementEnd(start)

	ed := lexer.NewEditor(code)
	ed.Insert(prologueOffset(code), createRequireImport)
	ed.Replace(start, end, "var __require = __unrunCreateRequire("+jsString(entryPath)+");")
	return ed.Apply()
}

// FixRequireResolve rewrites __require.resolve("./rel") calls to the
// absolute path of the target relative to baseDir, trying the extensions in
// resolveExtensions. Non-relative arguments are left for the runtime.
func FixRequireResolve(code, baseDir string) string {
	if !strings.Contains(code, "__require") {
		return code
	}
	src := lexer.Scan(code)
	ed := lexer.NewEditor(code)
	for _, m := range src.FindAllCode(requireResolvePattern) {
		argStart := src.SkipSpace(m[1])
		spec, argEnd, ok := src.StringLiteralAt(argStart)
		if !ok || !(strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")) {
			continue
		}
		closeParen := src.SkipSpace(argEnd)
		if closeParen >= len(code) || code[closeParen] != ')' {
			continue
		}
		ed.Replace(m[0], closeParen+1, jsString(resolveRelative(baseDir, spec)))
	}
	return ed.Apply()
}

func resolveRelative(baseDir, spec string) string {
	base := filepath.Join(baseDir, filepath.FromSlash(spec))
	for _, ext := range resolveExtensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return base
}

// FixRequireTypeof rewrites typeof __require to typeof require, so format
// detection in user code sees the same value it would see natively in ESM.
func FixRequireTypeof(code string) string {
	if !strings.Contains(code, "__require") {
		return code
	}
	src := lexer.Scan(code)
	ed := lexer.NewEditor(code)
	for _, m := range src.FindAllCode(requireTypeofPattern) {
		ed.Replace(m[0], m[1], "typeof require")
	}
	return ed.Apply()
}
