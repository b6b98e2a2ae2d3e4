package config

import (
	"fmt"
	"io"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/evanw/esbuild/pkg/api"

	"github.com/shinji-kodama/unrun/internal/model"
)

const (
	// DefaultPath is the entry file loaded when no path is given.
	DefaultPath = "custom.config.ts"

	// DefaultNode is the host runtime binary looked up on PATH.
	DefaultNode = "node"
)

// Options is the caller-facing, loosely-typed configuration. Zero values
// fall back to the settings layer and then to the built-in defaults.
type Options struct {
	// Path is the entry file, as a plain path or a file:// URL. Relative
	// paths are resolved against WorkDir.
	Path string

	// Debug keeps generated artifacts on disk and enables debug logging.
	Debug bool

	// Preset names the compatibility preset (none, jiti, bundle-require).
	Preset string

	// WrapperStrategy selects how awaiting CommonJS wrappers are repaired
	// (promote or unwrap).
	WrapperStrategy string

	// WorkDir is the project root. Defaults to the current directory.
	WorkDir string

	// NodePath is the host runtime binary.
	NodePath string

	// EnvFiles are dotenv files whose variables are passed to child
	// processes.
	EnvFiles []string

	// Env holds extra variables for child processes. It takes precedence
	// over EnvFiles.
	Env map[string]string

	// InputOverrides and OutputOverrides adjust the bundler options after
	// the defaults were applied, input side first.
	InputOverrides  func(*api.BuildOptions)
	OutputOverrides func(*api.BuildOptions)

	// Stdin, Stdout and Stderr are handed to child processes. They default
	// to the standard streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger replaces the default logger.
	Logger *log.Logger

	// Settings replaces the environment and rc-file settings. When nil they
	// are loaded from WorkDir.
	Settings *Settings
}

// ResolvedConfig is the validated configuration shared by every pipeline
// stage of one invocation.
type ResolvedConfig struct {
	Path            string
	Debug           bool
	Preset          model.Preset
	WrapperStrategy model.WrapperStrategy
	WorkDir         string
	NodePath        string
	Env             map[string]string
	InputOverrides  func(*api.BuildOptions)
	OutputOverrides func(*api.BuildOptions)
	Logger          *log.Logger
	Stdin           io.Reader
	Stdout          io.Writer
	Stderr          io.Writer
}

// Resolve validates opts and fills in defaults. It fails with a
// configuration error naming the offending field when the entry file does
// not exist or an enumerated value is unknown.
func Resolve(opts Options) (*ResolvedConfig, error) {
	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, model.NewConfigError("workDir: %v", err)
		}
		workDir = wd
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, model.NewConfigError("workDir: %v", err)
	}

	settings := opts.Settings
	if settings == nil {
		settings, err = LoadSettings(workDir)
		if err != nil {
			return nil, model.NewConfigError("settings: %v", err)
		}
	}

	path := NormalizePath(opts.Path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, model.NewConfigError("path: file not found: %s", path)
	}

	preset, err := model.ParsePreset(firstNonEmpty(opts.Preset, settings.Preset))
	if err != nil {
		return nil, model.NewConfigError("preset: %v", err)
	}
	wrapper, err := model.ParseWrapperStrategy(firstNonEmpty(opts.WrapperStrategy, settings.Wrapper))
	if err != nil {
		return nil, model.NewConfigError("wrapperStrategy: %v", err)
	}

	env, err := LoadEnvFiles(workDir, opts.EnvFiles)
	if err != nil {
		return nil, model.NewConfigError("envFiles: %v", err)
	}
	maps.Copy(env, opts.Env)

	cfg := &ResolvedConfig{
		Path:            path,
		Debug:           opts.Debug || settings.Debug,
		Preset:          preset,
		WrapperStrategy: wrapper,
		WorkDir:         workDir,
		NodePath:        firstNonEmpty(opts.NodePath, settings.Node, DefaultNode),
		Env:             env,
		InputOverrides:  opts.InputOverrides,
		OutputOverrides: opts.OutputOverrides,
		Stdin:           opts.Stdin,
		Stdout:          opts.Stdout,
		Stderr:          opts.Stderr,
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	cfg.Logger = opts.Logger
	if cfg.Logger == nil {
		cfg.Logger = NewLogger(cfg.Stderr, cfg.Debug)
	}
	cfg.Logger.Debug("resolved configuration",
		"path", cfg.Path, "preset", cfg.Preset, "wrapper", cfg.WrapperStrategy, "workDir", cfg.WorkDir)

	return cfg, nil
}

// NormalizePath converts a file:// URL into a filesystem path. Other input
// is returned unchanged, and the empty string maps to DefaultPath.
func NormalizePath(p string) string {
	if p == "" {
		return DefaultPath
	}
	if !strings.HasPrefix(p, "file:") {
		return p
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "file" {
		return p
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	return filepath.FromSlash(path)
}

// EntryDir returns the directory containing the entry file.
func (c *ResolvedConfig) EntryDir() string {
	return filepath.Dir(c.Path)
}

// Environ returns the environment for child processes: the current process
// environment followed by Env in key order.
func (c *ResolvedConfig) Environ() []string {
	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(c.Env)) {
		env = append(env, fmt.Sprintf("%s=%s", k, c.Env[k]))
	}
	return env
}

// NewLogger returns the pipeline logger writing to w.
func NewLogger(w io.Writer, debug bool) *log.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "unrun",
		Level:  level,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
