package procutil

import (
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"
)

func TestAlive(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Fatalf("current process reported dead")
	}
	if Alive(0) || Alive(-1) {
		t.Fatalf("non-positive pids must report dead")
	}
}

func TestKill_GoneProcess(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	// The pid has been reaped; killing it must come back as "gone",
	// never as a hard failure.
	if err := Kill(pid); err != nil && !errors.Is(err, ErrProcessGone) {
		t.Fatalf("Kill(reaped pid) = %v, want ErrProcessGone or nil", err)
	}
}

func TestKillTree_TerminatesGroup(t *testing.T) {
	// A shell that spawns a child and sleeps; Detach gives it a group of
	// its own so KillTree takes out both.
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & sleep 30")
	Detach(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid

	if err := KillTree(pid); err != nil && !errors.Is(err, ErrProcessGone) {
		t.Fatalf("KillTree: %v", err)
	}
	_ = cmd.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for Alive(pid) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if Alive(pid) {
		t.Fatalf("process %d still alive after KillTree", pid)
	}
}

func TestKillTree_GonePid(t *testing.T) {
	if err := KillTree(0); !errors.Is(err, ErrProcessGone) {
		t.Fatalf("KillTree(0) = %v, want ErrProcessGone", err)
	}
}
