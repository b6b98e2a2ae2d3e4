package bundle

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// metafile is the subset of esbuild's metafile read here. Inputs keep their
// document order, which is the order esbuild discovered them in.
type metafile struct {
	Inputs *orderedmap.OrderedMap[string, json.RawMessage] `json:"inputs"`
}

// dependencies lists the local files recorded in the metafile as absolute
// paths, in discovery order, skipping duplicates and node_modules.
func dependencies(raw, workDir string) ([]string, error) {
	var m metafile
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	deps := []string{}
	if m.Inputs == nil {
		return deps, nil
	}
	for p := m.Inputs.Oldest(); p != nil; p = p.Next() {
		path, ok := inputPath(p.Key, workDir)
		if !ok || slices.Contains(deps, path) {
			continue
		}
		deps = append(deps, path)
	}
	return deps, nil
}

// inputPath maps a metafile input key to an absolute path. Keys are
// relative to the working directory and carry a "namespace:" prefix
// outside the file namespace.
func inputPath(key, workDir string) (string, bool) {
	for _, prefix := range []string{"file:", requireDataNamespace + ":"} {
		key = strings.TrimPrefix(key, prefix)
	}
	if key == "" || strings.HasPrefix(key, "<") {
		return "", false
	}
	path := filepath.FromSlash(key)
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "node_modules") {
		return "", false
	}
	return path, true
}
