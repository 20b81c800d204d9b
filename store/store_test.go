package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fnbox/fault"
	"fnbox/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := store.Open("oracle", "dsn")
	require.Error(t, err)
}

func TestCreateDefinitionWithFirstVersion(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	def := &store.FunctionDefinition{Name: "f", Description: "d"}
	v, err := st.CreateDefinition(ctx, def, "def process(parameters):\n    return 1\n")
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
	assert.Equal(t, def.ID, v.DefinitionID)

	versions, err := st.Versions(ctx, def.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "no definition without a version")
}

func TestConflictOnlyAmongActiveDefinitions(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	def := &store.FunctionDefinition{Name: "f"}
	_, err := st.CreateDefinition(ctx, def, "code")
	require.NoError(t, err)

	_, err = st.CreateDefinition(ctx, &store.FunctionDefinition{Name: "f"}, "code")
	assert.Equal(t, fault.Conflict, fault.KindOf(err))

	def.Status = store.StatusDisabled
	require.NoError(t, st.SaveDefinition(ctx, def))

	// The name is free again once the holder is disabled.
	second := &store.FunctionDefinition{Name: "f"}
	_, err = st.CreateDefinition(ctx, second, "code")
	assert.NoError(t, err)

	// Retired holders accumulate without colliding with one another: the
	// uniqueness mirror is NULL for anything not active.
	second.Status = store.StatusDisabled
	require.NoError(t, st.SaveDefinition(ctx, second))
	_, err = st.CreateDefinition(ctx, &store.FunctionDefinition{Name: "f"}, "code")
	assert.NoError(t, err)
}

func TestErrorStatusFreesName(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	def := &store.FunctionDefinition{Name: "f"}
	_, err := st.CreateDefinition(ctx, def, "code")
	require.NoError(t, err)

	def.Status = store.StatusError
	require.NoError(t, st.SaveDefinition(ctx, def))

	_, err = st.CreateDefinition(ctx, &store.FunctionDefinition{Name: "f"}, "code")
	assert.NoError(t, err)
}

func TestAppendVersionIsStrictlyIncreasing(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	def := &store.FunctionDefinition{Name: "f"}
	_, err := st.CreateDefinition(ctx, def, "v1")
	require.NoError(t, err)

	for want := 2; want <= 5; want++ {
		v, err := st.AppendVersion(ctx, def.ID, "code")
		require.NoError(t, err)
		assert.Equal(t, want, v.VersionNumber)
	}

	latest, err := st.LatestVersion(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, latest.VersionNumber)
}

func TestActiveByNameSkipsDisabled(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	def := &store.FunctionDefinition{Name: "f"}
	_, err := st.CreateDefinition(ctx, def, "code")
	require.NoError(t, err)
	def.Status = store.StatusDisabled
	require.NoError(t, st.SaveDefinition(ctx, def))

	_, err = st.ActiveByName(ctx, "f")
	assert.Equal(t, fault.NotFound, fault.KindOf(err))

	// ByName still resolves it for history queries.
	got, err := st.ByName(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, store.StatusDisabled, got.Status)
}

func TestExecutionLedgerNewestFirst(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	def := &store.FunctionDefinition{Name: "f"}
	_, err := st.CreateDefinition(ctx, def, "code")
	require.NoError(t, err)

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.AppendExecution(ctx, &store.FunctionExecution{
			ID:            id,
			DefinitionID:  def.ID,
			VersionNumber: 1,
			Status:        store.ExecSuccess,
			StartedAt:     base.Add(time.Duration(i) * time.Second),
			FinishedAt:    base.Add(time.Duration(i) * time.Second),
		}))
	}

	rows, err := st.Executions(ctx, def.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "c", rows[0].ID)
	assert.Equal(t, "a", rows[2].ID)
}

func TestItemCRUD(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	item := &store.Item{Title: "first", Description: "d"}
	require.NoError(t, st.CreateItem(ctx, item))
	require.NotZero(t, item.ID)

	got, err := st.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	got.Title = "renamed"
	require.NoError(t, st.SaveItem(ctx, got))

	items, err := st.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "renamed", items[0].Title)

	require.NoError(t, st.DeleteItem(ctx, item.ID))
	_, err = st.GetItem(ctx, item.ID)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
	assert.Equal(t, fault.NotFound, fault.KindOf(st.DeleteItem(ctx, item.ID)))
}

func TestExpiredMedia(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &store.MediaFile{
		SenderName: "cam-1", DataType: "image", FilePath: "uploads/a.jpg",
		ContentType: "image/jpeg", Timestamp: now, DeletionTime: now.Add(-time.Minute),
	}
	fresh := &store.MediaFile{
		SenderName: "cam-2", DataType: "image", FilePath: "uploads/b.jpg",
		ContentType: "image/jpeg", Timestamp: now, DeletionTime: now.Add(time.Hour),
	}
	require.NoError(t, st.CreateMedia(ctx, stale))
	require.NoError(t, st.CreateMedia(ctx, fresh))

	expired, err := st.ExpiredMedia(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)

	require.NoError(t, st.DeleteMedia(ctx, stale.ID))
	expired, err = st.ExpiredMedia(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestMediaQueries(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, dt := range []string{"image", "video", "image"} {
		require.NoError(t, st.CreateMedia(ctx, &store.MediaFile{
			SenderName: "cam", DataType: dt, FilePath: "uploads/x",
			ContentType:  "application/octet-stream",
			Timestamp:    now.Add(time.Duration(i) * time.Hour),
			DeletionTime: now.Add(24 * time.Hour),
		}))
	}

	images, err := st.MediaByType(ctx, "image")
	require.NoError(t, err)
	assert.Len(t, images, 2)

	window, err := st.MediaByTimespan(ctx, now.Add(30*time.Minute), now.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Len(t, window, 1)
}
