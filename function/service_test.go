package function_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fnbox/fault"
	"fnbox/function"
	"fnbox/sandbox"
	"fnbox/store"
)

func TestMain(m *testing.M) {
	if sandbox.IsWorker() {
		os.Exit(sandbox.WorkerMain())
	}
	os.Exit(m.Run())
}

const (
	codeAddOne = "def process(parameters):\n    return parameters[\"x\"] + 1\n"
	codeV2     = "def process(parameters):\n    return \"v2\"\n"
	codeV3     = "def process(parameters):\n    return \"v3\"\n"
	codeLoop   = "def process(parameters):\n    while True:\n        pass\n"
)

func newService(t *testing.T, opts ...sandbox.Option) (*function.Service, *store.Store) {
	t.Helper()
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "fnbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return function.NewService(st, sandbox.NewRunner(opts...), nil), st
}

func intSchema() map[string]any {
	return map[string]any{
		"x": map[string]any{"type": "integer", "required": true},
	}
}

func TestRegisterAndReadBack(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	def, err := svc.Register(ctx, "adder", codeAddOne, "adds one", intSchema())
	require.NoError(t, err)
	require.NotZero(t, def.ID)

	got, err := svc.Get(ctx, "adder")
	require.NoError(t, err)
	assert.Equal(t, "adder", got.Name)
	assert.Equal(t, "adds one", got.Description)
	assert.Equal(t, store.StatusActive, got.Status)

	spec, ok := got.Schema["x"].(map[string]any)
	require.True(t, ok, "schema should survive the round trip: %#v", got.Schema)
	assert.Equal(t, "integer", spec["type"])
	assert.Equal(t, true, spec["required"])

	versions, err := svc.ListVersions(ctx, "adder")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, codeAddOne, versions[0].Code)
}

func TestRegisterRejectedCodePersistsNothing(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "sneaky", "import os\ndef process(parameters):\n    return 1\n", "", nil)
	require.Error(t, err)
	assert.Equal(t, fault.UnsafeConstruct, fault.KindOf(err))

	_, err = svc.Get(ctx, "sneaky")
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

func TestRegisterInvalidSchemaRejected(t *testing.T) {
	svc, _ := newService(t)

	bad := map[string]any{"x": map[string]any{"type": "quaternion", "required": true}}
	_, err := svc.Register(context.Background(), "f", codeAddOne, "", bad)
	require.Error(t, err)
	assert.Equal(t, fault.SchemaInvalid, fault.KindOf(err))
}

func TestRegisterConflict(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dup", codeAddOne, "", nil)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "dup", codeAddOne, "", nil)
	require.Error(t, err)
	assert.Equal(t, fault.Conflict, fault.KindOf(err))
}

func TestUpdateAppendsVersionsAndExecuteResolvesLatest(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "f", codeAddOne, "", nil)
	require.NoError(t, err)

	v2 := codeV2
	_, err = svc.Update(ctx, "f", function.UpdateRequest{Code: &v2})
	require.NoError(t, err)
	v3 := codeV3
	_, err = svc.Update(ctx, "f", function.UpdateRequest{Code: &v3})
	require.NoError(t, err)

	versions, err := svc.ListVersions(ctx, "f")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, want := range []int{3, 2, 1} {
		assert.Equal(t, want, versions[i].VersionNumber, "versions must be newest-first")
	}

	exec, err := svc.Execute(ctx, "f", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, exec.VersionNumber)
	require.NotNil(t, exec.Result)
	assert.JSONEq(t, `"v3"`, *exec.Result)
}

func TestUpdateDescriptionWithoutCodeChange(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "f", codeAddOne, "old", nil)
	require.NoError(t, err)

	desc := "new"
	def, err := svc.Update(ctx, "f", function.UpdateRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "new", def.Description)

	versions, err := svc.ListVersions(ctx, "f")
	require.NoError(t, err)
	assert.Len(t, versions, 1, "description edits must not append versions")
}

func TestExecuteSuccessAppendsLedgerRow(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "adder", codeAddOne, "", intSchema())
	require.NoError(t, err)

	exec, err := svc.Execute(ctx, "adder", map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, store.ExecSuccess, exec.Status)
	require.NotNil(t, exec.Result)
	assert.JSONEq(t, "6", *exec.Result)
	assert.Greater(t, exec.DurationMs, int64(0))
	assert.Empty(t, exec.ErrorKind)

	rows, err := svc.ListExecutions(ctx, "adder")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].VersionNumber)
	assert.Equal(t, store.ExecSuccess, rows[0].Status)
}

func TestExecuteTimeoutRecorded(t *testing.T) {
	svc, _ := newService(t, sandbox.WithTimeout(400*time.Millisecond))
	ctx := context.Background()

	_, err := svc.Register(ctx, "spin", codeLoop, "", nil)
	require.NoError(t, err)

	exec, err := svc.Execute(ctx, "spin", nil)
	require.NoError(t, err)
	assert.Equal(t, store.ExecTimeout, exec.Status)
	assert.Nil(t, exec.Result)
	assert.Equal(t, string(fault.Timeout), exec.ErrorKind)

	rows, err := svc.ListExecutions(ctx, "spin")
	require.NoError(t, err)
	require.Len(t, rows, 1, "exactly one ledger row per invocation")
	assert.Nil(t, rows[0].Result)
}

func TestExecuteMemoryExceededRecorded(t *testing.T) {
	svc, _ := newService(t,
		sandbox.WithMemoryLimit(32<<20),
		sandbox.WithSampleInterval(20*time.Millisecond),
		sandbox.WithTimeout(30*time.Second),
	)
	ctx := context.Background()

	hog := "def process(parameters):\n    data = []\n    for i in range(1000000):\n        data.append(\"x\" * 1048576)\n    return 0\n"
	_, err := svc.Register(ctx, "hog", hog, "", nil)
	require.NoError(t, err)

	exec, err := svc.Execute(ctx, "hog", nil)
	require.NoError(t, err)
	assert.Equal(t, store.ExecError, exec.Status)
	assert.Equal(t, string(fault.MemoryExceeded), exec.ErrorKind)

	rows, err := svc.ListExecutions(ctx, "hog")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExecuteParameterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	declared := map[string]any{
		"x": map[string]any{
			"type": "integer", "required": true,
			"range": map[string]any{"min": 0, "max": 10},
		},
	}
	_, err := svc.Register(ctx, "bounded", codeAddOne, "", declared)
	require.NoError(t, err)

	_, err = svc.Execute(ctx, "bounded", map[string]any{"x": 15})
	require.Error(t, err)
	assert.Equal(t, fault.ParameterValidationFailed, fault.KindOf(err))

	rows, err := svc.ListExecutions(ctx, "bounded")
	require.NoError(t, err)
	assert.Empty(t, rows, "rejected calls must not reach the ledger")

	exec, err := svc.Execute(ctx, "bounded", map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, store.ExecSuccess, exec.Status)
}

func TestExecuteFaultRecordedAsError(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	boom := "def process(parameters):\n    fail(\"kaput\")\n"
	_, err := svc.Register(ctx, "boom", boom, "", nil)
	require.NoError(t, err)

	exec, err := svc.Execute(ctx, "boom", nil)
	require.NoError(t, err)
	assert.Equal(t, store.ExecError, exec.Status)
	assert.Equal(t, string(fault.ExecutionError), exec.ErrorKind)
	assert.Contains(t, exec.ErrorMessage, "kaput")
	assert.Nil(t, exec.Result)
}

func TestDeactivate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "gone", codeAddOne, "", intSchema())
	require.NoError(t, err)
	_, err = svc.Execute(ctx, "gone", map[string]any{"x": 1})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, "gone"))

	_, err = svc.Execute(ctx, "gone", map[string]any{"x": 1})
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
	_, err = svc.Get(ctx, "gone")
	assert.Equal(t, fault.NotFound, fault.KindOf(err))

	// History outlives deactivation.
	versions, err := svc.ListVersions(ctx, "gone")
	require.NoError(t, err)
	assert.NotEmpty(t, versions)
	rows, err := svc.ListExecutions(ctx, "gone")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMarkErrorBlocksExecution(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "flaky", codeAddOne, "", nil)
	require.NoError(t, err)
	require.NoError(t, svc.MarkError(ctx, "flaky"))

	_, err = svc.Execute(ctx, "flaky", map[string]any{"x": 1})
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}
