//go:build !linux

package sandbox

import "errors"

var errUnsupported = errors.New("resident memory sampling not supported on this platform")

// Without /proc the hard ceiling cannot be applied; the wall-clock deadline
// still holds and the monitor reports zero peak memory.
func setHardMemoryLimit(pid int, limit int64) error {
	return nil
}

func residentMemory(pid int) (int64, error) {
	return 0, errUnsupported
}
