// Package unrun loads TypeScript and modern JavaScript files just in time.
//
// An entry file is bundled into a single ES module, written where the host
// runtime can import it, and then either evaluated so that its exports come
// back to the caller (Load, LoadSync) or executed as a program (Exec).
package unrun

import (
	"context"
	"path/filepath"

	"github.com/shinji-kodama/unrun/internal/artifact"
	"github.com/shinji-kodama/unrun/internal/bridge"
	"github.com/shinji-kodama/unrun/internal/bundle"
	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/executor"
	"github.com/shinji-kodama/unrun/internal/model"
	"github.com/shinji-kodama/unrun/internal/preset"
	"github.com/shinji-kodama/unrun/internal/runner"
)

type (
	// Options configures one invocation. See config.Options.
	Options = config.Options

	// Result is returned by Load and LoadSync.
	Result = model.Result

	// CliResult is returned by Exec.
	CliResult = model.CliResult

	// Error is the pipeline error type.
	Error = model.Error
)

// Sentinel errors for errors.Is.
var (
	ErrConfig   = model.ErrConfig
	ErrBundle   = model.ErrBundle
	ErrLoad     = model.ErrLoad
	ErrExecutor = model.ErrExecutor
)

var defaultBridge = bridge.New(Load)

// Load bundles and evaluates the entry file and returns its exports, shaped
// by the configured preset, together with the local files it was built
// from.
func Load(ctx context.Context, opts Options) (*Result, error) {
	cfg, err := config.Resolve(opts)
	if err != nil {
		return nil, err
	}
	generated, err := bundle.Bundle(ctx, cfg)
	if err != nil {
		return nil, err
	}
	v, err := runner.Load(ctx, generated.Code, filepath.Base(cfg.Path), cfg)
	if err != nil {
		return nil, err
	}
	return &Result{
		Module:       preset.Adapt(cfg, v),
		Dependencies: generated.Dependencies,
	}, nil
}

// LoadSync is Load for callers that need a plain, blocking call. The
// result carries data only: namespaces become plain objects and a module
// value holding functions is an error.
func LoadSync(opts Options) (*Result, error) {
	return defaultBridge.LoadSync(opts)
}

// Exec bundles the entry file and runs it as a program with args, wired to
// the configured standard streams. The program's exit status is reported in
// the result; only failures to bundle or start it are errors.
func Exec(ctx context.Context, opts Options, args []string) (*CliResult, error) {
	cfg, err := config.Resolve(opts)
	if err != nil {
		return nil, err
	}
	generated, err := bundle.Bundle(ctx, cfg)
	if err != nil {
		return nil, err
	}
	h := artifact.Write(generated.Code, filepath.Base(cfg.Path), cfg)
	defer artifact.Remove(h, cfg)
	return executor.Exec(ctx, h, args, cfg)
}
