//go:build !windows

package procutil

import (
	"os/exec"
	"syscall"
)

// Detach places cmd in its own process group so terminal signals sent to the
// daemon's group (Ctrl+C, SIGHUP) do not reach it. Preserves any existing
// SysProcAttr fields.
func Detach(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
