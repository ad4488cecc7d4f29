//go:build linux

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const supportedPlatform = true

// pinPlatform sets the calling thread's CPU affinity mask to a single CPU.
func pinPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)

	// Pid 0 targets the calling thread.
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity(cpu %d) failed: %w", cpuID, err)
	}
	return nil
}
