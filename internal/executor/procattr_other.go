//go:build !linux

package executor

import "os/exec"

// ConfigureProcess is a no-op on platforms without a parent-death signal.
// Forwarded signals and context cancellation still stop the child.
func ConfigureProcess(cmd *exec.Cmd) {}
