package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/shinji-kodama/unrun/internal/config"
)

// reflectMetadataPattern matches a side-effect import of reflect-metadata.
var reflectMetadataPattern = regexp.MustCompile(`import\s+["']reflect-metadata["']`)

// tsconfigRaw returns the raw tsconfig handed to esbuild. It is empty, so
// esbuild discovers tsconfig files itself, unless the project uses
// reflect-metadata. In that case the project tsconfig.json (read as JSONC)
// is returned with experimentalDecorators enabled. esbuild does not emit
// design-time type metadata, so emitDecoratorMetadata is left as the
// project set it.
func tsconfigRaw(cfg *config.ResolvedConfig) (string, error) {
	if !needsDecoratorMetadata(cfg.Path) {
		return "", nil
	}
	cfg.Logger.Debug("enabling experimental decorators for reflect-metadata")

	path := filepath.Join(cfg.WorkDir, "tsconfig.json")
	base := orderedmap.New[string, any]()
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return "", err
	default:
		if err := json.Unmarshal(jsonc.ToJSON(raw), base); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	compilerOptions := map[string]any{}
	if v, ok := base.Get("compilerOptions"); ok {
		if m, ok := v.(map[string]any); ok {
			compilerOptions = m
		}
	}
	compilerOptions["experimentalDecorators"] = true
	base.Set("compilerOptions", compilerOptions)

	out, err := json.Marshal(base)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// needsDecoratorMetadata reports whether the entry file, or any TypeScript
// file next to it, imports reflect-metadata. Unreadable files are ignored.
func needsDecoratorMetadata(entry string) bool {
	if importsReflectMetadata(entry) {
		return true
	}
	dir := filepath.Dir(entry)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".ts") || strings.HasSuffix(name, ".tsx")) {
			continue
		}
		if importsReflectMetadata(filepath.Join(dir, name)) {
			return true
		}
	}
	return false
}

func importsReflectMetadata(path string) bool {
	raw, err := os.ReadFile(path)
	return err == nil && reflectMetadataPattern.Match(raw)
}
