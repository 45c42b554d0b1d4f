//go:build !windows

package query

import (
	"os/exec"
	"syscall"
)

// configureProcess runs the child in its own process group so a timeout kills
// everything it spawned, not just the direct child.
func configureProcess(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		// Negative pid targets the process group.
		if err := syscall.Kill(-c.Process.Pid, syscall.SIGKILL); err != nil {
			return c.Process.Kill()
		}
		return nil
	}
}
