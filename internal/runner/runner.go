// Package runner evaluates generated artifacts in the host runtime and
// hands the resulting module namespace back to Go.
//
// Evaluation happens in a child process running a small harness program.
// The harness imports the artifact and reports the namespace on a dedicated
// pipe (file descriptor 3), which keeps the program's own standard output
// and error streams free for the program.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shinji-kodama/unrun/internal/artifact"
	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/executor"
	"github.com/shinji-kodama/unrun/internal/jsvalue"
	"github.com/shinji-kodama/unrun/internal/model"
)

// envelope is the message the harness writes to the result pipe.
type envelope struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value"`
	Error string          `json:"error"`
}

// Load persists code, evaluates it and removes the artifact again (unless
// cfg.Debug is set). hint names the artifact file. Every failure is
// returned as a load error carrying the length of code.
func Load(ctx context.Context, code, hint string, cfg *config.ResolvedConfig) (jsvalue.Value, error) {
	h := artifact.Write(code, hint, cfg)
	defer artifact.Remove(h, cfg)

	v, err := Evaluate(ctx, h, cfg)
	if err != nil {
		return nil, model.WrapLoadError(len(code), err)
	}
	return v, nil
}

// Evaluate imports the artifact described by h in a fresh runtime process
// and returns its module namespace as a *jsvalue.Namespace. The program's
// output goes to cfg.Stdout and cfg.Stderr; it gets no standard input.
func Evaluate(ctx context.Context, h *model.ArtifactHandle, cfg *config.ResolvedConfig) (jsvalue.Value, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create result pipe: %w", err)
	}
	defer r.Close()

	args := executor.WithPnP(cfg.WorkDir, []string{"--input-type=module", "--eval", harness})
	cmd := exec.CommandContext(ctx, cfg.NodePath, args...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = cfg.Environ()
	cmd.Stdin = strings.NewReader(h.LocationURL)
	cmd.Stdout = cfg.Stdout
	cmd.Stderr = cfg.Stderr
	cmd.ExtraFiles = []*os.File{w}
	executor.ConfigureProcess(cmd)

	if err := cmd.Start(); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to start %s: %w", cfg.NodePath, err)
	}
	// Only the child may hold the write end, so the read sees EOF on exit.
	w.Close()
	cfg.Logger.Debug("evaluating artifact", "pid", cmd.Process.Pid, "inline", h.IsInline())

	var (
		payload []byte
		waitErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		payload, err = io.ReadAll(r)
		return err
	})
	g.Go(func() error {
		waitErr = cmd.Wait()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		if waitErr != nil {
			return nil, fmt.Errorf("runtime exited without a result: %w", waitErr)
		}
		return nil, errors.New("runtime exited without a result")
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("malformed result: %w", err)
	}
	if !env.OK {
		return nil, errors.New(env.Error)
	}
	return jsvalue.Decode(env.Value)
}
