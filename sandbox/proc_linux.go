//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Headroom added to the hard allocation limit. The soft RSS ceiling is
// the operative limit; the rlimit only backstops adversarial code that
// allocates faster than the sampler can observe. The headroom covers the
// Go runtime's own heap metadata and goroutine stacks in the worker.
const hardLimitHeadroom = 256 << 20

// setHardMemoryLimit caps the worker's heap with an OS-enforced rlimit,
// independent of the language runtime. RLIMIT_DATA counts brk plus private
// writable anonymous mappings (kernel 4.7+), so it tracks what the worker
// actually allocates; RLIMIT_AS would trip on the runtime's large virtual
// reservations, which are never resident.
func setHardMemoryLimit(pid int, limit int64) error {
	ceiling := uint64(limit) + hardLimitHeadroom
	rl := &unix.Rlimit{Cur: ceiling, Max: ceiling}
	return unix.Prlimit(pid, unix.RLIMIT_DATA, rl, nil)
}

// residentMemory returns the worker's resident set size in bytes.
func residentMemory(pid int) (int64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed statm for pid %d", pid)
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, err
	}
	return pages * int64(os.Getpagesize()), nil
}
