//go:build windows

package process

import (
	"os/exec"
	"strconv"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// terminateGroup kills pid and its descendants with taskkill /T. When taskkill
// fails, it kills the direct children and then the process itself.
func terminateGroup(pid int) error {
	// #nosec G204 -- fixed binary, numeric argument
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run(); err == nil {
		return nil
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return ErrNoProcess
	}
	if children, err := p.Children(); err == nil {
		for _, c := range children {
			_ = c.Kill()
		}
	}
	return p.Kill()
}

func alive(pid int) bool {
	ok, err := gopsproc.PidExists(int32(pid))
	return err == nil && ok
}
