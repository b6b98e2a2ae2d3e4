package transform

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shinji-kodama/unrun/internal/lexer"
	"github.com/shinji-kodama/unrun/internal/model"
)

var (
	metaResolvePattern = regexp.MustCompile(`\bimport\s*\.\s*meta\s*\.\s*resolve\s*!?\s*\(`)
	metaPropPattern    = regexp.MustCompile(`\bimport\s*\.\s*meta\s*\.\s*(url|filename|dirname)\b`)
	contextNamePattern = regexp.MustCompile(`\b(__filename|__dirname)\b`)
	contextDeclPattern = regexp.MustCompile(`\b(?:const|let|var|function|class)\s+(__filename|__dirname)\b`)
)

// Source applies the source passes to the module at file.
func Source(code, file string) string {
	code = InlineMetaResolve(code, file)
	return InjectContextConstants(code, file)
}

// InlineMetaResolve replaces import.meta.resolve calls whose only argument
// is a relative or absolute string literal with the file:// URL of the
// target, resolved from the directory of file.
func InlineMetaResolve(code, file string) string {
	if !strings.Contains(code, "resolve") {
		return code
	}
	src := lexer.Scan(code)
	ed := lexer.NewEditor(code)
	for _, m := range src.FindAllCode(metaResolvePattern) {
		argStart := src.SkipSpace(m[1])
		spec, argEnd, ok := src.StringLiteralAt(argStart)
		if !ok || !isPathSpecifier(spec) {
			continue
		}
		closeParen := src.SkipSpace(argEnd)
		if closeParen >= len(code) || code[closeParen] != ')' {
			continue
		}
		target := spec
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(file), filepath.FromSlash(spec))
		}
		ed.Replace(m[0], closeParen+1, jsString(model.FileURL(target)))
	}
	return ed.Apply()
}

// InjectContextConstants prepends const bindings for __filename and
// __dirname when the module references them without declaring them, and
// rewrites import.meta.url, import.meta.filename and import.meta.dirname to
// literals describing file. Occurrences inside strings, comments and
// property accesses are left alone.
func InjectContextConstants(code, file string) string {
	if !strings.Contains(code, "__filename") && !strings.Contains(code, "__dirname") &&
		!strings.Contains(code, "meta") {
		return code
	}
	src := lexer.Scan(code)
	dir := filepath.Dir(file)
	ed := lexer.NewEditor(code)

	declared := map[string]bool{}
	for _, m := range src.FindAllCode(contextDeclPattern) {
		declared[code[m[2]:m[3]]] = true
	}
	referenced := map[string]bool{}
	for _, m := range src.FindAllCode(contextNamePattern) {
		if m[0] > 0 && code[m[0]-1] == '.' {
			continue
		}
		referenced[code[m[2]:m[3]]] = true
	}

	var prologue strings.Builder
	if referenced["__filename"] && !declared["__filename"] {
		prologue.WriteString("const __filename = " + jsString(file) + ";\n")
	}
	if referenced["__dirname"] && !declared["__dirname"] {
		prologue.WriteString("const __dirname = " + jsString(dir) + ";\n")
	}
	if prologue.Len() > 0 {
		ed.Insert(prologueOffset(code), prologue.String())
	}

	for _, m := range src.FindAllCode(metaPropPattern) {
		var literal string
		switch code[m[2]:m[3]] {
		case "url":
			literal = jsString(model.FileURL(file))
		case "filename":
			literal = jsString(file)
		case "dirname":
			literal = jsString(dir)
		}
		ed.Replace(m[0], m[1], literal)
	}
	return ed.Apply()
}

// prologueOffset returns where injected statements may start: after a
// leading hashbang line, otherwise at the beginning.
func prologueOffset(code string) int {
	if !strings.HasPrefix(code, "#!") {
		return 0
	}
	nl := strings.IndexByte(code, '\n')
	if nl == -1 {
		return len(code)
	}
	return nl + 1
}

// isPathSpecifier reports whether spec is relative or absolute.
func isPathSpecifier(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") ||
		spec == "." || spec == ".." || filepath.IsAbs(spec) || strings.HasPrefix(spec, "/")
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	// Marshaling a string cannot fail.
	b, _ := json.Marshal(s)
	return string(b)
}
