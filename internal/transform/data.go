package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/unrun/internal/lexer"
)

// dataVar holds the materialized value inside generated modules.
const dataVar = "__unrun_data"

// dataExtensions are the file extensions DataModule accepts.
var dataExtensions = []string{".json", ".jsonc", ".yaml", ".yml", ".toml"}

// reservedWords cannot be used as export binding names even though they are
// identifier-shaped.
var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true,
	"in": true, "instanceof": true, "interface": true, "let": true, "new": true,
	"null": true, "package": true, "private": true, "protected": true,
	"public": true, "return": true, "static": true, "super": true,
	"switch": true, "this": true, "throw": true, "true": true, "try": true,
	"typeof": true, "var": true, "void": true, "while": true, "with": true,
	"yield": true, "arguments": true, "eval": true,
}

// IsDataFile reports whether path has an extension DataModule handles.
func IsDataFile(path string) bool {
	return slices.Contains(dataExtensions, strings.ToLower(filepath.Ext(path)))
}

// DataModule converts the data file at path with contents raw into
// JavaScript. For static imports (asRequire false) the result is an ES
// module with a default export of the parsed value and one named export per
// top-level key that is a valid binding name. For require() (asRequire
// true) it is a plain CommonJS module whose exports are the value itself.
func DataModule(path string, raw []byte, asRequire bool) (string, error) {
	value, keys, err := parseData(path, raw)
	if err != nil {
		return "", err
	}
	literal, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	expr := jsExpression(literal)

	var b strings.Builder
	if asRequire {
		b.WriteString("module.exports = ")
		b.WriteString(expr)
		b.WriteString(";\n")
		return b.String(), nil
	}

	fmt.Fprintf(&b, "const %s = %s;\n", dataVar, expr)
	fmt.Fprintf(&b, "export default %s;\n", dataVar)
	for _, k := range keys {
		if !lexer.IsIdentifier(k) || reservedWords[k] || k == dataVar {
			continue
		}
		fmt.Fprintf(&b, "export const %s = %s[%s];\n", k, dataVar, jsString(k))
	}
	return b.String(), nil
}

// jsExpression renders JSON text as a JavaScript expression. JSON is valid
// object-literal syntax except that a "__proto__" key in a literal sets the
// prototype instead of defining an own property, so such values go through
// JSON.parse.
func jsExpression(literal []byte) string {
	if bytes.Contains(literal, []byte(`"__proto__":`)) {
		return "JSON.parse(" + jsString(string(literal)) + ")"
	}
	return string(literal)
}

// parseData decodes raw according to the extension of path and returns the
// value together with its top-level keys in document order (nil when the
// value is not an object).
func parseData(path string, raw []byte) (any, []string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		if ext == ".jsonc" {
			raw = jsonc.ToJSON(raw)
		}
		return parseJSON(path, raw)
	case ".yaml", ".yml":
		return parseYAML(path, raw)
	case ".toml":
		return parseTOML(path, raw)
	default:
		return nil, nil, fmt.Errorf("unsupported data file: %s", filepath.Base(path))
	}
}

func parseJSON(path string, raw []byte) (any, []string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		obj := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(trimmed, obj); err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return json.RawMessage(trimmed), objectKeys(obj), nil
	}
	var v json.RawMessage
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return v, nil, nil
}

func parseYAML(path string, raw []byte) (any, []string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if doc.Kind == 0 {
		// Empty document.
		return nil, nil, nil
	}
	v, err := yamlValue(&doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if obj, ok := v.(*orderedmap.OrderedMap[string, any]); ok {
		return obj, objectKeys(obj), nil
	}
	return v, nil, nil
}

// yamlValue converts a YAML node into JSON-encodable data, keeping mapping
// order through ordered maps.
func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.MappingNode:
		obj := orderedmap.New[string, any]()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if isMergeKey(k) {
				merged, err := yamlValue(v)
				if err != nil {
					return nil, err
				}
				sources := []any{merged}
				if seq, ok := merged.([]any); ok {
					sources = seq
				}
				for _, src := range sources {
					m, ok := src.(*orderedmap.OrderedMap[string, any])
					if !ok {
						continue
					}
					for p := m.Oldest(); p != nil; p = p.Next() {
						if _, exists := obj.Get(p.Key); !exists {
							obj.Set(p.Key, p.Value)
						}
					}
				}
				continue
			}
			val, err := yamlValue(v)
			if err != nil {
				return nil, err
			}
			obj.Set(k.Value, val)
		}
		return obj, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func isMergeKey(k *yaml.Node) bool {
	if k.Kind != yaml.ScalarNode || k.Value != "<<" {
		return false
	}
	return k.Tag == "" || k.Tag == "!" || k.ShortTag() == "!!merge"
}

func parseTOML(path string, raw []byte) (any, []string, error) {
	var m map[string]any
	if err := toml.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	// TOML tables decode into Go maps; keys are emitted in sorted order.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return m, keys, nil
}

func objectKeys[V any](obj *orderedmap.OrderedMap[string, V]) []string {
	keys := make([]string, 0, obj.Len())
	for p := obj.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}
