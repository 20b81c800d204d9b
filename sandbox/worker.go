package sandbox

import (
	"fmt"
	"io"
	"os"

	"go.starlark.net/starlark"

	"fnbox/safety"
)

// workerEnv selects worker mode when the binary re-executes itself.
const workerEnv = "FNBOX_SANDBOX_WORKER"

// IsWorker reports whether this process was spawned as a sandbox worker.
// Callers must check this before any other startup work and hand control to
// WorkerMain.
func IsWorker() bool {
	return os.Getenv(workerEnv) == "1"
}

// WorkerMain is the worker process entry point: read one request, interpret
// the code, call the entry point, write one response. Returns the process
// exit code.
func WorkerMain() int {
	return workerMain(os.Stdin, os.Stdout, os.Stderr)
}

func workerMain(stdin io.Reader, stdout, stderr io.Writer) int {
	var req request
	if err := readMessage(stdin, &req); err != nil {
		writeMessage(stdout, response{Error: fmt.Sprintf("read request: %v", err)})
		return 1
	}

	value, err := evalProcess(req.Code, req.Parameters, stderr)
	if err != nil {
		writeMessage(stdout, response{Error: err.Error()})
		return 0
	}

	if err := writeMessage(stdout, response{OK: true, Result: value}); err != nil {
		return 1
	}
	return 0
}

// evalProcess interprets the source and invokes process(parameters).
func evalProcess(code string, params map[string]any, stderr io.Writer) (any, error) {
	thread := &starlark.Thread{
		Name: "sandbox-worker",
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(stderr, msg)
		},
	}

	globals, err := starlark.ExecFileOptions(safety.FileOptions, thread, "function.star", code, nil)
	if err != nil {
		return nil, fmt.Errorf("load function: %s", evalMessage(err))
	}

	fn, ok := globals[safety.EntryPoint]
	if !ok {
		return nil, fmt.Errorf("function %q not found in the code", safety.EntryPoint)
	}

	arg, err := toStarlark(params)
	if err != nil {
		return nil, fmt.Errorf("convert parameters: %w", err)
	}

	out, err := starlark.Call(thread, fn, starlark.Tuple{arg}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s", evalMessage(err))
	}

	return fromStarlark(out)
}

// evalMessage extracts the interpreter's message without the backtrace.
func evalMessage(err error) string {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return evalErr.Msg
	}
	return err.Error()
}
