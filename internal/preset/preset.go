// Package preset reshapes an evaluated module into the value a caller of
// another loader would have received.
//
// Each preset is a row in a lookup table from module shape to a named
// transform, so every quirk can be read, tested and changed on its own.
package preset

import (
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/jsvalue"
	"github.com/shinji-kodama/unrun/internal/model"
)

// Shape classifies an evaluated value for preset lookup.
type Shape int

const (
	// ShapeEmptyNamespace is a module namespace without any export.
	ShapeEmptyNamespace Shape = iota

	// ShapeNamespaceWithDefault is a module namespace with a default export.
	ShapeNamespaceWithDefault

	// ShapeNamespace is a module namespace with named exports only.
	ShapeNamespace

	// ShapeObjectWithDefault is a plain object carrying a "default" key.
	ShapeObjectWithDefault

	// ShapeOther is any other value.
	ShapeOther
)

// String returns the shape name used in log output.
func (s Shape) String() string {
	switch s {
	case ShapeEmptyNamespace:
		return "empty-namespace"
	case ShapeNamespaceWithDefault:
		return "namespace-with-default"
	case ShapeNamespace:
		return "namespace"
	case ShapeObjectWithDefault:
		return "object-with-default"
	default:
		return "other"
	}
}

// Classify returns the shape of v.
func Classify(v jsvalue.Value) Shape {
	switch x := v.(type) {
	case *jsvalue.Namespace:
		if x.Len() == 0 {
			return ShapeEmptyNamespace
		}
		if _, ok := x.Default(); ok {
			return ShapeNamespaceWithDefault
		}
		return ShapeNamespace
	case *jsvalue.Object:
		if _, ok := x.Get("default"); ok {
			return ShapeObjectWithDefault
		}
	}
	return ShapeOther
}

// transform reshapes a value. entry is the absolute entry file path.
type transform func(entry string, v jsvalue.Value) jsvalue.Value

// identity returns the value unchanged.
func identity(_ string, v jsvalue.Value) jsvalue.Value {
	return v
}

// defaultExport returns the "default" binding of a namespace or object.
func defaultExport(_ string, v jsvalue.Value) jsvalue.Value {
	switch x := v.(type) {
	case *jsvalue.Namespace:
		d, _ := x.Default()
		return d
	case *jsvalue.Object:
		d, _ := x.Get("default")
		return d
	}
	return v
}

// emptyObjectUnlessMJS flattens an empty namespace to an empty plain
// object, except for .mjs entries, which keep the namespace.
func emptyObjectUnlessMJS(entry string, v jsvalue.Value) jsvalue.Value {
	if strings.EqualFold(filepath.Ext(entry), ".mjs") {
		return v
	}
	return jsvalue.NewObject()
}

// table maps each preset and shape to its transform.
var table = map[model.Preset]map[Shape]transform{
	model.PresetNone: {
		ShapeEmptyNamespace:       identity,
		ShapeNamespaceWithDefault: defaultExport,
		ShapeNamespace:            identity,
		ShapeObjectWithDefault:    defaultExport,
		ShapeOther:                identity,
	},
	model.PresetJiti: {
		ShapeEmptyNamespace:       emptyObjectUnlessMJS,
		ShapeNamespaceWithDefault: defaultExport,
		ShapeNamespace:            identity,
		ShapeObjectWithDefault:    defaultExport,
		ShapeOther:                identity,
	},
	model.PresetBundleRequire: {
		ShapeEmptyNamespace:       identity,
		ShapeNamespaceWithDefault: identity,
		ShapeNamespace:            identity,
		ShapeObjectWithDefault:    identity,
		ShapeOther:                identity,
	},
}

// Adapt reshapes v according to cfg.Preset. Unknown presets leave v
// unchanged.
func Adapt(cfg *config.ResolvedConfig, v jsvalue.Value) jsvalue.Value {
	shape := Classify(v)
	fn, ok := table[cfg.Preset][shape]
	if !ok {
		return v
	}
	cfg.Logger.Debug("applying preset", "preset", cfg.Preset, "shape", shape)
	return fn(cfg.Path, v)
}
