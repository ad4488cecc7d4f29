//go:build !linux

package affinity

import "errors"

const supportedPlatform = false

// pinPlatform is a stub for platforms without thread affinity support.
func pinPlatform(cpuID int) error {
	return errors.New("affinity: not supported on this platform")
}
