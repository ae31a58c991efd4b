//go:build unix

package probe

import (
	"os"
	"os/exec"
	"syscall"
)

// startOwnGroup runs cmd in a new process group so that helpers it forks
// can be killed with it.
func startOwnGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup kills the process group led by p.
func killGroup(p *os.Process) error {
	err := syscall.Kill(-p.Pid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return os.ErrProcessDone
	}
	return err
}
