package sandbox_test

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"fnbox/fault"
	"fnbox/sandbox"
)

// The Runner re-executes the current binary as its worker, so the test
// binary doubles as the worker when the sandbox env var is set.
func TestMain(m *testing.M) {
	if sandbox.IsWorker() {
		os.Exit(sandbox.WorkerMain())
	}
	os.Exit(m.Run())
}

func TestRunSuccess(t *testing.T) {
	r := sandbox.NewRunner()
	code := "def process(parameters):\n    return parameters[\"x\"] + 1\n"

	res := r.Run(context.Background(), code, map[string]any{"x": 5})
	if res.Status != sandbox.StatusSuccess {
		t.Fatalf("expected success, got %s (%s: %s)", res.Status, res.ErrorKind, res.ErrorMsg)
	}
	if n, ok := res.Value.(json.Number); !ok || n.String() != "6" {
		t.Errorf("expected result 6, got %#v", res.Value)
	}
	if res.Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestRunHardCeilingAllowsWorkerStartup(t *testing.T) {
	// The hard rlimit must leave room for the worker runtime itself; with
	// the default 100MB ceiling a trivial run has to come back clean.
	r := sandbox.NewRunner(sandbox.WithMemoryLimit(sandbox.DefaultMemoryLimit))
	code := "def process(parameters):\n    return parameters[\"x\"] + 1\n"

	res := r.Run(context.Background(), code, map[string]any{"x": 5})
	if res.Status != sandbox.StatusSuccess {
		t.Fatalf("expected success under the default ceiling, got %s (%s: %s)", res.Status, res.ErrorKind, res.ErrorMsg)
	}
	if n, ok := res.Value.(json.Number); !ok || n.String() != "6" {
		t.Errorf("expected result 6, got %#v", res.Value)
	}
}

func TestRunLateExitAfterResponseIsNotTimeout(t *testing.T) {
	// A worker that delivers its response and then lingers past the
	// deadline already produced a result; the outcome must not flip to
	// timeout while it is being reaped.
	r := sandbox.NewRunner(
		sandbox.WithTimeout(300*time.Millisecond),
		sandbox.WithWorkerCommand("/bin/sh", "-c", `cat >/dev/null; echo '{"ok":true,"result":6}'; sleep 2`),
	)

	res := r.Run(context.Background(), "ignored", nil)
	if res.Status != sandbox.StatusSuccess {
		t.Fatalf("expected success, got %s (%s: %s)", res.Status, res.ErrorKind, res.ErrorMsg)
	}
	if n, ok := res.Value.(json.Number); !ok || n.String() != "6" {
		t.Errorf("expected result 6, got %#v", res.Value)
	}
}

func TestRunTimeout(t *testing.T) {
	r := sandbox.NewRunner(sandbox.WithTimeout(500 * time.Millisecond))
	code := "def process(parameters):\n    while True:\n        pass\n"

	res := r.Run(context.Background(), code, nil)
	if res.Status != sandbox.StatusTimeout {
		t.Fatalf("expected timeout, got %s (%s)", res.Status, res.ErrorMsg)
	}
	if res.ErrorKind != fault.Timeout {
		t.Errorf("expected Timeout kind, got %s", res.ErrorKind)
	}
	if res.Value != nil {
		t.Errorf("timeout must carry no result, got %#v", res.Value)
	}
	if res.Duration < 500*time.Millisecond {
		t.Errorf("terminated before the deadline: %v", res.Duration)
	}
}

func TestRunMemoryExceeded(t *testing.T) {
	r := sandbox.NewRunner(
		sandbox.WithMemoryLimit(32<<20),
		sandbox.WithSampleInterval(20*time.Millisecond),
		sandbox.WithTimeout(30*time.Second),
	)
	code := `def process(parameters):
    data = []
    for i in range(1000000):
        data.append("x" * 1048576)
    return len(data)
`

	res := r.Run(context.Background(), code, nil)
	if res.Status != sandbox.StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if res.ErrorKind != fault.MemoryExceeded {
		t.Fatalf("expected MemoryExceeded, got %s (%s)", res.ErrorKind, res.ErrorMsg)
	}
	if res.PeakMemory <= 0 {
		t.Error("expected peak memory to be reported on the failure path")
	}
}

func TestRunExecutionError(t *testing.T) {
	r := sandbox.NewRunner()
	code := "def process(parameters):\n    return parameters[\"missing\"]\n"

	res := r.Run(context.Background(), code, map[string]any{})
	if res.Status != sandbox.StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if res.ErrorKind != fault.ExecutionError {
		t.Errorf("expected ExecutionError, got %s", res.ErrorKind)
	}
	if res.ErrorMsg == "" {
		t.Error("expected the fault's message to be carried")
	}
}

func TestRunMissingEntryPoint(t *testing.T) {
	// The validator prevents this at registration; the worker still has to
	// fail it cleanly.
	r := sandbox.NewRunner()
	res := r.Run(context.Background(), "def other(parameters):\n    return 1\n", nil)
	if res.ErrorKind != fault.ExecutionError {
		t.Fatalf("expected ExecutionError, got %s", res.ErrorKind)
	}
	if !strings.Contains(res.ErrorMsg, "process") {
		t.Errorf("error should name the entry point, got %q", res.ErrorMsg)
	}
}

func TestRunConcurrentExecutions(t *testing.T) {
	r := sandbox.NewRunner()
	code := "def process(parameters):\n    return parameters[\"n\"] * 2\n"

	var wg sync.WaitGroup
	results := make([]sandbox.Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Run(context.Background(), code, map[string]any{"n": i})
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if res.Status != sandbox.StatusSuccess {
			t.Fatalf("run %d: %s (%s)", i, res.Status, res.ErrorMsg)
		}
		want := json.Number(strconv.Itoa(i * 2))
		if got, ok := res.Value.(json.Number); !ok || got != want {
			t.Errorf("run %d: expected %s, got %#v", i, want, res.Value)
		}
	}
}
