// Package sandbox executes validated function source under strict time and
// memory budgets. Each execution gets a dedicated worker process so a hung
// or hostile call can be forcibly reclaimed; the host and worker exchange
// parameters and results over a serialized stdin/stdout protocol and share
// no state.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"fnbox/fault"
)

// Status classifies the outcome of one execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// Result is the outcome of one sandboxed execution. Exactly one of Value
// and ErrorKind is meaningful; Duration and PeakMemory are reported on
// every path, including failures.
type Result struct {
	Value      any
	Status     Status
	ErrorKind  fault.Kind
	ErrorMsg   string
	Duration   time.Duration
	PeakMemory int64
}

// Runner executes function source in worker processes. A Runner is safe for
// concurrent use; executions are independent and do not block one another.
type Runner struct {
	cfg config
}

// NewRunner builds a Runner with the given options.
func NewRunner(opts ...Option) *Runner {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{cfg: cfg}
}

// Timeout reports the configured wall-clock budget.
func (r *Runner) Timeout() time.Duration { return r.cfg.timeout }

// Run executes the entry point of already-validated source against the
// given parameters. The deadline is armed before the worker starts and
// disarmed unconditionally on every exit path; the resource monitor is
// started and stopped within the call; the worker is reaped exactly once.
func (r *Runner) Run(ctx context.Context, code string, params map[string]any) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()

	workerPath := r.cfg.workerPath
	if workerPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return r.execFailure(start, 0, "locate worker executable: %v", err)
		}
		workerPath = exe
	}

	cmd := exec.CommandContext(ctx, workerPath, r.cfg.workerArgs...)
	cmd.Env = append(os.Environ(), workerEnv+"=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return r.execFailure(start, 0, "worker stdin: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return r.execFailure(start, 0, "start worker: %v", err)
	}

	// Hard OS ceiling goes on before any input is sent; the sampler alone
	// cannot catch code that allocates everything between two samples.
	if r.cfg.memoryLimit > 0 {
		_ = setHardMemoryLimit(cmd.Process.Pid, r.cfg.memoryLimit)
	}

	mon := newMonitor(cmd.Process, r.cfg.memoryLimit, r.cfg.sampleInterval)
	mon.start()

	// A write error means the worker died before reading; the cause
	// surfaces through Wait below.
	_ = writeMessage(stdin, request{Code: code, Parameters: params})
	stdin.Close()

	waitErr := cmd.Wait()
	peak, exceeded := mon.stop()

	res := Result{
		Duration:   time.Since(start),
		PeakMemory: peak,
	}

	var resp response
	decodeErr := readMessage(&stdout, &resp)

	// A memory kill takes precedence over everything; after that a complete
	// response settles the outcome even when the deadline expired while the
	// worker was being reaped. Timeout applies only when no result arrived.
	switch {
	case exceeded:
		res.Status = StatusError
		res.ErrorKind = fault.MemoryExceeded
		res.ErrorMsg = fmt.Sprintf("memory limit of %d bytes exceeded", r.cfg.memoryLimit)

	case decodeErr == nil && resp.OK:
		res.Status = StatusSuccess
		res.Value = resp.Result

	case decodeErr == nil:
		res.Status = StatusError
		res.ErrorKind = fault.ExecutionError
		res.ErrorMsg = resp.Error

	case ctx.Err() == context.DeadlineExceeded:
		res.Status = StatusTimeout
		res.ErrorKind = fault.Timeout
		res.ErrorMsg = fmt.Sprintf("timeout after %v", r.cfg.timeout)

	case r.cfg.memoryLimit > 0 && oomKilled(stderr.String()):
		res.Status = StatusError
		res.ErrorKind = fault.MemoryExceeded
		res.ErrorMsg = fmt.Sprintf("memory limit of %d bytes exceeded (hard ceiling)", r.cfg.memoryLimit)

	default:
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && waitErr != nil {
			msg = waitErr.Error()
		}
		res.Status = StatusError
		res.ErrorKind = fault.ExecutionError
		res.ErrorMsg = fmt.Sprintf("worker produced no result: %s", msg)
	}

	return res
}

// oomKilled reports whether stderr shows the worker runtime dying on the
// hard allocation ceiling rather than on its own fault.
func oomKilled(stderr string) bool {
	return strings.Contains(stderr, "out of memory") ||
		strings.Contains(stderr, "cannot allocate memory")
}

func (r *Runner) execFailure(start time.Time, peak int64, format string, args ...any) Result {
	return Result{
		Status:     StatusError,
		ErrorKind:  fault.ExecutionError,
		ErrorMsg:   fmt.Sprintf(format, args...),
		Duration:   time.Since(start),
		PeakMemory: peak,
	}
}
