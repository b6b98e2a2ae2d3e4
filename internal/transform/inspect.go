package transform

import (
	"regexp"
	"strings"

	"github.com/shinji-kodama/unrun/internal/lexer"
)

// inspectHelper defines globalThis.__unrun__setInspect, which attaches a
// util.inspect formatter to an export object so console output shows the
// current export values instead of [Getter] placeholders. Live bindings are
// untouched: the formatter reads through the getters on every call.
const inspectHelper = `(function () {
  var inspectSymbol = Symbol.for("nodejs.util.inspect.custom");
  function snapshot(names, read, nullProto) {
    var out = nullProto ? Object.create(null) : {};
    for (var i = 0; i < names.length; i++) {
      try { out[names[i]] = read(names[i]); } catch (_) {}
    }
    if (names.length === 1 && names[0] === "default") {
      var shown;
      try { shown = JSON.stringify(out.default); } catch (_) {}
      if (shown === undefined) shown = String(out.default);
      return "[Module: null prototype] { default: " + shown + " }";
    }
    return out;
  }
  function setInspect(target, names, read, nullProto) {
    try {
      Object.defineProperty(target, inspectSymbol, {
        value: function () { return snapshot(names, read, nullProto); },
        enumerable: false,
        configurable: true,
      });
    } catch (_) {}
    return target;
  }
  try {
    Object.defineProperty(globalThis, "__unrun__setInspect", { value: setInspect, enumerable: false, configurable: true });
  } catch (_) {}
})();
`

// helperWrappers patches the bundler's namespace helpers (__export and
// __copyProps, plus __exportAll for rolldown output) so every namespace
// object they build gets the formatter.
const helperWrappers = `(function __unrun__wrapBundlerHelpers() {
  if (typeof __unrun__setInspect !== "function") return;
  function exportNames(map) {
    return Object.keys(map && typeof map === "object" ? map : {}).filter(function (n) { return n !== "__esModule"; });
  }
  function patchExport(original) {
    var patched = function () {
      var result = original.apply(this, arguments);
      // esbuild's __export(target, all) fills target and returns nothing;
      // rolldown's __exportAll(all) returns the object it built.
      var target = result, map = arguments[0];
      if (!result || typeof result !== "object") {
        target = arguments[0];
        map = arguments[1];
      }
      if (target && typeof target === "object" && map && typeof map === "object") {
        __unrun__setInspect(target, exportNames(map), function (n) {
          var getter = map[n];
          return typeof getter === "function" ? getter() : getter;
        }, false);
      }
      return result;
    };
    patched.__unrunPatched = true;
    return patched;
  }
  if (typeof __export === "function" && !__export.__unrunPatched) __export = patchExport(__export);
  if (typeof __exportAll === "function" && !__exportAll.__unrunPatched) __exportAll = patchExport(__exportAll);
  if (typeof __copyProps === "function" && !__copyProps.__unrunPatched) {
    var copyProps = __copyProps;
    __copyProps = function () {
      var result = copyProps.apply(this, arguments);
      if (result && typeof result === "object") {
        __unrun__setInspect(result, exportNames(result), function (n) { return result[n]; }, true);
      }
      return result;
    };
    __copyProps.__unrunPatched = true;
  }
})();
`

const (
	inspectHelperMarker  = "__unrun__setInspect"
	helperWrappersMarker = "__unrun__wrapBundlerHelpers"
	regionEndMarker      = "//#endregion"
)

// runtimeStatementPattern matches the statements the bundler emits ahead of
// module code: imports and its own __-prefixed helper declarations.
var runtimeStatementPattern = regexp.MustCompile(`^(?:import\b|var __[\w$]+\s*=)`)

// CustomizeInspect prepends the inspect helper and inserts the helper
// wrappers after the bundler's runtime region. Each snippet is inserted at
// most once.
func CustomizeInspect(code string) string {
	ed := lexer.NewEditor(code)
	if !strings.Contains(code, inspectHelperMarker) {
		ed.Insert(prologueOffset(code), inspectHelper)
	}
	if !strings.Contains(code, helperWrappersMarker) {
		at := runtimeBoundary(code)
		text := helperWrappers
		if at > 0 && code[at-1] != '\n' {
			text = "\n" + text
		}
		ed.Insert(at, text)
	}
	return ed.Apply()
}

// runtimeBoundary returns the offset just past the bundler runtime: the line
// after a "//#endregion" marker when present, otherwise the end of the
// leading run of imports and helper declarations.
func runtimeBoundary(code string) int {
	src := lexer.Scan(code)
	if at := strings.Index(code, regionEndMarker); at != -1 && src.KindAt(at) == lexer.LineComment {
		nl := strings.IndexByte(code[at:], '\n')
		if nl == -1 {
			return len(code)
		}
		return at + nl + 1
	}

	pos := prologueOffset(code)
	for {
		next := src.SkipSpace(pos)
		if next >= len(code) || !runtimeStatementPattern.MatchString(code[next:min(next+64, len(code))]) {
			return pos
		}
		pos = src.StatementEnd(next)
		if nl := strings.IndexByte(code[pos:], '\n'); nl != -1 && strings.TrimSpace(code[pos:pos+nl]) == "" {
			pos += nl + 1
		}
	}
}
