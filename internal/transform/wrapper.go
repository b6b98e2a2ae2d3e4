package transform

import (
	"regexp"
	"strings"

	"github.com/shinji-kodama/unrun/internal/lexer"
)

const wrapperMarker = "__commonJS("

var wrapperDeclPattern = regexp.MustCompile(`var\s+([A-Za-z_$][\w$]*)\s*=\s*(?:/\*[^*]*\*/\s*)?$`)

// wrapper locates one CommonJS wrapper in generated code. Two shapes are
// recognised:
//
//	__commonJS({ "file.js"(exports, module) { ... } })   method factory
//	__commonJS({ "file.js": (() => { ... }) })           arrow factory
type wrapper struct {
	// marker is the offset of "__commonJS(".
	marker int
	// end is the offset just past the closing ')' of the __commonJS call.
	end int
	// asyncAt is where "async " is inserted to promote the factory.
	asyncAt int
	// isAsync reports whether the factory is already async.
	isAsync bool
	// bodyOpen and bodyClose are the braces of the factory body.
	bodyOpen, bodyClose int
}

// awaits reports whether the factory body contains an await token.
func (w wrapper) awaits(src *lexer.Source) bool {
	return src.ContainsWord(w.bodyOpen+1, w.bodyClose, "await")
}

// findWrappers returns every recognised wrapper in source order.
func findWrappers(src *lexer.Source) []wrapper {
	var out []wrapper
	code := src.Text
	for pos := 0; ; {
		at := src.IndexCode(wrapperMarker, pos)
		if at == -1 {
			return out
		}
		pos = at + len(wrapperMarker)
		if at > 0 && isIdentByte(code[at-1]) {
			continue
		}
		w, ok := parseWrapper(src, at)
		if !ok {
			continue
		}
		out = append(out, w)
		// Wrappers nested in a body are reached when their parent is
		// rewritten in a later pass; skip past this one.
		pos = w.end
	}
}

func parseWrapper(src *lexer.Source, at int) (wrapper, bool) {
	code := src.Text
	callOpen := at + len(wrapperMarker) - 1
	callClose := src.MatchBracket(callOpen)
	objOpen := src.SkipSpace(callOpen + 1)
	if callClose == -1 || objOpen >= len(code) || code[objOpen] != '{' {
		return wrapper{}, false
	}
	w := wrapper{marker: at, end: callClose + 1}

	i := src.SkipSpace(objOpen + 1)
	if hasWordAt(code, i, "async") {
		w.isAsync = true
		w.asyncAt = i
		i = src.SkipSpace(i + len("async"))
	}
	keyStart := i
	if _, end, ok := src.StringLiteralAt(i); ok {
		i = end
	} else {
		for i < len(code) && isIdentByte(code[i]) {
			i++
		}
		if i == keyStart {
			return wrapper{}, false
		}
	}
	i = src.SkipSpace(i)
	if i >= len(code) {
		return wrapper{}, false
	}

	switch code[i] {
	case '(':
		// Method factory: "key"(params) { body }
		if !w.isAsync {
			w.asyncAt = keyStart
		}
		paramsClose := src.MatchBracket(i)
		if paramsClose == -1 {
			return wrapper{}, false
		}
		w.bodyOpen = src.SkipSpace(paramsClose + 1)
	case ':':
		// Arrow factory: "key": ((params) => { body })
		i = src.SkipSpace(i + 1)
		if i < len(code) && code[i] == '(' {
			if inner := src.SkipSpace(i + 1); inner < len(code) && (code[inner] == '(' || hasWordAt(code, inner, "async")) {
				i = inner
			}
		}
		if hasWordAt(code, i, "async") {
			w.isAsync = true
			i = src.SkipSpace(i + len("async"))
		}
		if i >= len(code) || code[i] != '(' {
			return wrapper{}, false
		}
		w.asyncAt = i
		paramsClose := src.MatchBracket(i)
		if paramsClose == -1 {
			return wrapper{}, false
		}
		arrow := src.SkipSpace(paramsClose + 1)
		if !strings.HasPrefix(code[arrow:], "=>") {
			return wrapper{}, false
		}
		w.bodyOpen = src.SkipSpace(arrow + 2)
	default:
		return wrapper{}, false
	}

	if w.bodyOpen >= len(code) || code[w.bodyOpen] != '{' {
		return wrapper{}, false
	}
	w.bodyClose = src.MatchBrace(w.bodyOpen)
	if w.bodyClose == -1 || w.bodyClose > callClose {
		return wrapper{}, false
	}
	return w, true
}

// PromoteAsyncWrappers marks every CommonJS wrapper factory whose body
// awaits as async. Already-async factories are left alone, so applying the
// pass twice gives the same result as applying it once.
func PromoteAsyncWrappers(code string) string {
	if !strings.Contains(code, wrapperMarker) {
		return code
	}
	src := lexer.Scan(code)
	ed := lexer.NewEditor(code)
	for _, w := range findWrappers(src) {
		if w.isAsync || !w.awaits(src) {
			continue
		}
		ed.Insert(w.asyncAt, "async ")
	}
	return ed.Apply()
}

// UnwrapWrappers splices the body of every `var name = __commonJS(...)`
// wrapper whose body awaits in place of the declaration, and removes the
// `export default name();` tail that invoked the factory.
func UnwrapWrappers(code string) string {
	if !strings.Contains(code, wrapperMarker) {
		return code
	}
	src := lexer.Scan(code)
	ed := lexer.NewEditor(code)

	names := map[string]bool{}
	unwrapped := false
	for _, w := range findWrappers(src) {
		if !w.awaits(src) {
			continue
		}
		lineStart := strings.LastIndexByte(code[:w.marker], '\n') + 1
		m := wrapperDeclPattern.FindStringSubmatchIndex(code[lineStart:w.marker])
		if m == nil {
			continue
		}
		declStart := lineStart + m[0]
		end := w.end
		if semi := src.SkipSpace(end); semi < len(code) && code[semi] == ';' {
			end = semi + 1
		}
		ed.Replace(declStart, end, code[w.bodyOpen+1:w.bodyClose])
		names[code[lineStart+m[2]:lineStart+m[3]]] = true
		unwrapped = true
	}
	if !unwrapped {
		return code
	}

	for name := range names {
		tail := regexp.MustCompile(`export\s+default\s+` + regexp.QuoteMeta(name) + `\s*\(\s*\)\s*;?`)
		for _, m := range src.FindAllCode(tail) {
			ed.Replace(m[0], m[1], "")
		}
	}
	return ed.Apply()
}

func hasWordAt(code string, i int, word string) bool {
	if !strings.HasPrefix(code[min(i, len(code)):], word) {
		return false
	}
	after := i + len(word)
	return after >= len(code) || !isIdentByte(code[after])
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
