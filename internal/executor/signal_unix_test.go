//go:build unix

package executor

import (
	"bufio"
	"context"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/unrun/internal/artifact"
)

// TestExecForwardsSignals verifies a signal sent to this process reaches the
// child, whose handler decides the exit status.
func TestExecForwardsSignals(t *testing.T) {
	requireNode(t)

	pr, pw := io.Pipe()
	cfg := newConfig(t, pw, nil)
	h := artifact.Write("process.on('SIGHUP', () => process.exit(7))\nconsole.log('ready')\nsetInterval(() => {}, 1000)\n", "sig.ts", cfg)
	defer artifact.Remove(h, cfg)

	go func() {
		sc := bufio.NewScanner(pr)
		if sc.Scan() && sc.Text() == "ready" {
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGHUP)
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	res, err := Exec(context.Background(), h, nil, cfg)
	pw.Close()
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
}
