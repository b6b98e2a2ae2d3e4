// Package executor runs generated programs as child processes of the host
// runtime, the way a user would run them by hand: inherited standard
// streams, forwarded termination signals and the child's exit status
// passed back to the caller.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/shinji-kodama/unrun/internal/artifact"
	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/model"
)

// ForwardedSignals are relayed from this process to the running child.
var ForwardedSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// Exec runs the artifact described by h with args as the program's own
// arguments and waits until the child has exited and its output is closed.
// A non-zero exit status is a normal result, not an error. A child killed
// by a signal reports 128 plus the signal number. Cancelling ctx kills the
// child and returns the context error.
func Exec(ctx context.Context, h *model.ArtifactHandle, args []string, cfg *config.ResolvedConfig) (*model.CliResult, error) {
	program, err := programArgs(h)
	if err != nil {
		return nil, model.WrapExecutorError("Invalid artifact", err)
	}

	cmd := exec.CommandContext(ctx, cfg.NodePath, WithPnP(cfg.WorkDir, append(program, args...))...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = cfg.Environ()
	cmd.Stdin = cfg.Stdin
	cmd.Stdout = cfg.Stdout
	cmd.Stderr = cfg.Stderr
	ConfigureProcess(cmd)

	// Listen before starting so no signal slips through unforwarded.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, ForwardedSignals...)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return nil, model.WrapExecutorError("Failed to start child process", err)
	}
	cfg.Logger.Debug("started child process", "pid", cmd.Process.Pid, "args", len(args))

	done := make(chan struct{})
	go func() {
		for {
			select {
			case s := <-sigs:
				cfg.Logger.Debug("forwarding signal", "signal", s)
				if err := cmd.Process.Signal(s); err != nil {
					cfg.Logger.Debug("signal not delivered", "signal", s, "err", err)
				}
			case <-done:
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	if err := ctx.Err(); err != nil {
		return nil, model.WrapExecutorError("Child process canceled", err)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return nil, model.WrapExecutorError("Child process failed", waitErr)
	}

	code := ExitCode(cmd.ProcessState)
	cfg.Logger.Debug("child process exited", "code", code)
	return &model.CliResult{ExitCode: code}, nil
}

// programArgs returns the runtime arguments that run the artifact: its path
// for file-backed artifacts, or the decoded code as an ES module --eval
// program for inline ones.
func programArgs(h *model.ArtifactHandle) ([]string, error) {
	if h.IsInline() {
		code, err := artifact.Decode(h)
		if err != nil {
			return nil, err
		}
		return []string{"--input-type=module", "--eval", code}, nil
	}
	if h.Path == "" {
		return nil, fmt.Errorf("artifact has no path: %s", h.LocationURL)
	}
	return []string{h.Path}, nil
}

// ExitCode maps a finished process state to a shell-style exit status.
func ExitCode(state *os.ProcessState) int {
	if state == nil {
		return 0
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	return 0
}
