//go:build !windows

package process

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"strconv"
	"syscall"
)

// terminateGroup sends SIGKILL to the process group of pid. The group id is
// looked up with getpgid and falls back to pid, which is the group id of every
// child started by Spawn. The supervisor's own group is never signalled.
func terminateGroup(pid int) error {
	pgid, err := syscall.Getpgid(pid)
	if err != nil || pgid <= 0 {
		pgid = pid
	}
	if pgid == syscall.Getpgrp() {
		return mapESRCH(syscall.Kill(pid, syscall.SIGKILL))
	}
	return mapESRCH(syscall.Kill(-pgid, syscall.SIGKILL))
}

func mapESRCH(err error) error {
	if errors.Is(err, syscall.ESRCH) {
		return ErrNoProcess
	}
	return err
}

// alive uses signal 0. EPERM still means the pid exists. On Linux a zombie
// counts as dead.
func alive(pid int) bool {
	if runtime.GOOS == "linux" && isZombieLinux(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// isZombieLinux returns true if /proc/<pid>/status reports state Z.
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
