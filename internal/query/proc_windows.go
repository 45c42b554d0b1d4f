//go:build windows

package query

import (
	"os/exec"
	"strconv"
	"syscall"
)

// createNoWindow keeps console windows from flashing when the dashboard
// spawns PowerShell.
const createNoWindow = 0x08000000

// configureProcess kills the whole process tree on cancellation.
func configureProcess(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(c.Process.Pid))
		kill.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow}
		if err := kill.Run(); err != nil {
			return c.Process.Kill()
		}
		return nil
	}
}
