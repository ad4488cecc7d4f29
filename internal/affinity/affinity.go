// Package affinity provides a platform-neutral API for pinning the calling
// OS thread to a logical CPU. Platform-specific implementations live in
// separate files guarded by build tags.
package affinity

// Pin pins the current OS thread to the given logical CPU.
// The caller must hold the thread with runtime.LockOSThread.
// On unsupported platforms an error is returned.
func Pin(cpuID int) error {
	return pinPlatform(cpuID)
}

// Supported reports whether CPU pinning is available on this platform.
func Supported() bool {
	return supportedPlatform
}
