package sandbox

import (
	"os"
	"sync"
	"time"
)

// monitor is the resource supervisor for one execution. It samples the
// worker's resident memory at a fixed interval for the duration of the call
// and kills the worker if a sample exceeds the ceiling. Its lifetime is
// strictly scoped to the call: start before the request is sent, stop before
// control returns to the caller, on every exit path.
type monitor struct {
	proc     *os.Process
	limit    int64
	interval time.Duration

	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	peak     int64
	exceeded bool
}

func newMonitor(proc *os.Process, limit int64, interval time.Duration) *monitor {
	return &monitor{
		proc:     proc,
		limit:    limit,
		interval: interval,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (m *monitor) start() {
	go m.loop()
}

func (m *monitor) loop() {
	defer close(m.finished)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Sample immediately so short-lived workers still report peak memory.
	if m.sample() {
		return
	}
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if m.sample() {
				return
			}
		}
	}
}

// sample reads the worker's RSS once. Returns true when the worker breached
// the ceiling and has been killed, ending the loop.
func (m *monitor) sample() bool {
	rss, err := residentMemory(m.proc.Pid)
	if err != nil {
		// Worker already gone; keep waiting for stop so peak stays stable.
		return false
	}

	m.mu.Lock()
	if rss > m.peak {
		m.peak = rss
	}
	over := m.limit > 0 && rss > m.limit
	if over {
		m.exceeded = true
	}
	m.mu.Unlock()

	if over {
		m.proc.Kill()
		return true
	}
	return false
}

// stop tears the supervisor down and reports the peak resident memory
// observed and whether the ceiling was breached. Safe to call exactly once
// per execution; the loop is guaranteed finished when it returns.
func (m *monitor) stop() (peak int64, exceeded bool) {
	m.stopOnce.Do(func() { close(m.done) })
	<-m.finished

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak, m.exceeded
}
