// Package artifact persists generated programs where the host runtime can
// import them and removes them again afterwards.
//
// Artifacts are written to the first tier that accepts them:
//
//  1. <WorkDir>/node_modules/.unrun/, so that bare imports left external
//     resolve against the project's dependencies;
//  2. <os.TempDir()>/unrun-cache/;
//  3. an inline data:text/javascript;base64 URL, which needs no filesystem.
//
// File names combine a readable hint with a random key, so concurrent
// invocations never share or clobber a file.
package artifact

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/model"
)

const (
	// ProjectDir is the artifact directory below the project's node_modules.
	ProjectDir = ".unrun"

	// TempDir is the artifact directory below the OS temp directory.
	TempDir = "unrun-cache"

	// Extension marks artifacts as ES modules regardless of package type.
	Extension = ".mjs"

	dataURLPrefix = "data:text/javascript;base64,"
)

var unsafeNameChars = regexp.MustCompile(`[^\w.-]`)

// Dirs returns the file-backed tiers for cfg in the order they are tried.
func Dirs(cfg *config.ResolvedConfig) []string {
	return []string{
		filepath.Join(cfg.WorkDir, "node_modules", ProjectDir),
		filepath.Join(os.TempDir(), TempDir),
	}
}

// FileName returns "<sanitized hint>.<random key>.mjs", or
// "<random key>.mjs" for an empty hint.
func FileName(hint string) string {
	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	if hint == "" {
		return key + Extension
	}
	return unsafeNameChars.ReplaceAllString(hint, "_") + "." + key + Extension
}

// Write persists code and returns where it went. It falls back through the
// tiers and never fails: the last tier embeds the code in a data URL.
func Write(code, hint string, cfg *config.ResolvedConfig) *model.ArtifactHandle {
	name := FileName(hint)
	for _, dir := range Dirs(cfg) {
		path, err := writeExclusive(dir, name, code)
		if err != nil {
			cfg.Logger.Debug("artifact tier unavailable", "dir", dir, "err", err)
			continue
		}
		cfg.Logger.Debug("wrote artifact", "path", path)
		return &model.ArtifactHandle{
			LocationURL: model.FileURL(path),
			Path:        path,
			IsTemporary: true,
		}
	}
	cfg.Logger.Debug("embedding artifact as data URL", "bytes", len(code))
	return &model.ArtifactHandle{
		LocationURL: dataURLPrefix + base64.StdEncoding.EncodeToString([]byte(code)),
	}
}

// writeExclusive creates dir and writes code to a new file inside it. It
// refuses to touch an existing file.
func writeExclusive(dir, name, code string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// Decode returns the code embedded in an inline handle.
func Decode(h *model.ArtifactHandle) (string, error) {
	if !h.IsInline() {
		return "", fmt.Errorf("not an inline artifact: %s", h.LocationURL)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(h.LocationURL, dataURLPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid inline artifact: %w", err)
	}
	return string(raw), nil
}

// Remove deletes a temporary file-backed artifact. In debug mode the file is
// kept for inspection. Failures are logged as cleanup warnings and never
// returned.
func Remove(h *model.ArtifactHandle, cfg *config.ResolvedConfig) {
	if h == nil || !h.IsTemporary || h.Path == "" {
		return
	}
	if cfg.Debug {
		cfg.Logger.Info("keeping artifact", "path", h.Path)
		return
	}
	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		cfg.Logger.Warn("CleanupWarning: could not remove generated artifact", "path", h.Path, "err", err)
	}
}
