// Package procutil wraps the process signalling needed to supervise and
// tear down external mirror tools. Kill outcomes are deliberately soft: a
// target that is already gone is reported as ErrProcessGone, never as a
// failure, because the callers only care about registry consistency.
package procutil

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// ErrProcessGone reports that the target process no longer exists.
var ErrProcessGone = errors.New("process already gone")

// Alive reports whether pid refers to a live process.
// Signal 0 checks for existence without delivering anything.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

// Detach places cmd in its own process group so the whole tree can be
// signalled at once and the group does not receive the server's signals.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// Kill sends SIGKILL to a single pid.
func Kill(pid int) error {
	if pid <= 0 {
		return ErrProcessGone
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return ErrProcessGone
		}
		return err
	}
	return nil
}

// KillTree force-kills the process group led by pid, then pid itself.
// Either step may find its target gone; that is not a failure.
func KillTree(pid int) error {
	if pid <= 0 {
		return ErrProcessGone
	}
	groupErr := syscall.Kill(-pid, syscall.SIGKILL)
	procErr := syscall.Kill(pid, syscall.SIGKILL)

	if isGone(groupErr) && isGone(procErr) {
		return ErrProcessGone
	}
	if groupErr != nil && !isGone(groupErr) {
		return groupErr
	}
	if procErr != nil && !isGone(procErr) {
		return procErr
	}
	return nil
}

func isGone(err error) bool {
	return err != nil && errors.Is(err, syscall.ESRCH)
}
