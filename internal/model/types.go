package model

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Preset names a compatibility contract the evaluated module is reshaped
// into before it is handed back to the caller.
type Preset string

const (
	// PresetNone returns the default export when present, otherwise the
	// module namespace itself.
	PresetNone Preset = "none"

	// PresetJiti mimics jiti: an ESM namespace without exports becomes an
	// empty plain object (except for .mjs entries, which keep the namespace).
	PresetJiti Preset = "jiti"

	// PresetBundleRequire mimics bundle-require: the namespace is returned
	// unchanged.
	PresetBundleRequire Preset = "bundle-require"
)

// String returns the string representation of Preset.
func (p Preset) String() string {
	return string(p)
}

// IsValid checks whether the Preset value is one of the recognized presets.
func (p Preset) IsValid() bool {
	switch p {
	case PresetNone, PresetJiti, PresetBundleRequire:
		return true
	default:
		return false
	}
}

// ParsePreset converts a string to a Preset. The empty string maps to
// PresetNone so that unset configuration values fall back to the default.
func ParsePreset(s string) (Preset, error) {
	if strings.TrimSpace(s) == "" {
		return PresetNone, nil
	}
	preset := Preset(strings.ToLower(strings.TrimSpace(s)))
	if !preset.IsValid() {
		return "", fmt.Errorf("invalid preset: %q (valid: none, jiti, bundle-require)", s)
	}
	return preset, nil
}

// WrapperStrategy selects which post-processing pass repairs CommonJS
// wrappers whose body awaits. The two strategies are mutually exclusive.
type WrapperStrategy string

const (
	// WrapperPromote marks the wrapper factory as async.
	WrapperPromote WrapperStrategy = "promote"

	// WrapperUnwrap splices the wrapper body inline and drops the factory.
	WrapperUnwrap WrapperStrategy = "unwrap"
)

// String returns the string representation of WrapperStrategy.
func (s WrapperStrategy) String() string {
	return string(s)
}

// ParseWrapperStrategy converts a string to a WrapperStrategy, defaulting
// the empty string to WrapperPromote.
func ParseWrapperStrategy(s string) (WrapperStrategy, error) {
	switch WrapperStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", WrapperPromote:
		return WrapperPromote, nil
	case WrapperUnwrap:
		return WrapperUnwrap, nil
	default:
		return "", fmt.Errorf("invalid wrapper strategy: %q (valid: promote, unwrap)", s)
	}
}

// GeneratedArtifact is the output of the bundle step: one self-contained ESM
// program plus the local files that contributed to it.
type GeneratedArtifact struct {
	// Code is the generated ESM source after all output transforms ran.
	Code string

	// Dependencies lists absolute paths of local files read while building
	// the dependency graph, in discovery order, without duplicates and
	// without anything living under a node_modules directory.
	Dependencies []string
}

// ArtifactHandle describes where a generated artifact was persisted.
type ArtifactHandle struct {
	// LocationURL is a file:// URL for file-backed artifacts or a
	// data:text/javascript;base64 URL when the filesystem was unavailable.
	LocationURL string

	// Path is the filesystem path of a file-backed artifact. Empty for
	// inline data URLs.
	Path string

	// IsTemporary reports whether the artifact must be removed after use.
	IsTemporary bool
}

// IsInline reports whether the artifact is embedded as a data URL.
func (h *ArtifactHandle) IsInline() bool {
	return strings.HasPrefix(h.LocationURL, "data:")
}

// Result is returned by the evaluate-and-return flow.
type Result struct {
	// Module is the evaluated export value after preset adaptation. Its
	// dynamic type is one of the jsvalue representations.
	Module any `json:"module"`

	// Dependencies lists the local files that contributed to the module.
	Dependencies []string `json:"dependencies"`
}

// CliResult is returned by the write-and-execute flow. A non-zero exit code
// is a normal outcome, not an error.
type CliResult struct {
	// ExitCode is the exit status of the executed program.
	ExitCode int `json:"exitCode"`
}

// FileURL converts an absolute filesystem path into a file:// URL.
func FileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		// Windows drive paths need a leading slash: file:///C:/x.
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
