package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/modus/internal/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestRecordAndListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	first := engine.Execution{
		ID:         "a",
		Mode:       "gaming",
		Trigger:    "voice",
		Status:     engine.StatusPartial,
		StartedAt:  base,
		FinishedAt: base.Add(1500 * time.Millisecond),
		Total:      3,
		Completed:  2,
		Failed:     1,
		Failures:   []string{"kill action 2 failed: action: target not found: \"ghost\""},
	}
	second := engine.Execution{
		ID:         "b",
		Mode:       "heavy",
		Trigger:    "cli",
		Status:     engine.StatusRejected,
		Reason:     "requirement min_ram_gb not met",
		StartedAt:  base.Add(time.Minute),
		FinishedAt: base.Add(time.Minute),
		Total:      1,
		Skipped:    1,
	}
	require.NoError(t, store.Record(ctx, first))
	require.NoError(t, store.Record(ctx, second))

	records, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []engine.Execution{second, first}, records)

	records, err = store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "b", records[0].ID)
}

func TestRecordValidation(t *testing.T) {
	store := openTestStore(t)

	require.ErrorContains(t, store.Record(context.Background(), engine.Execution{}), "execution id is required")

	exec := engine.Execution{ID: "dup", Mode: "m", Trigger: "cli", Status: engine.StatusCompleted}
	require.NoError(t, store.Record(context.Background(), exec))
	require.ErrorContains(t, store.Record(context.Background(), exec), "record execution")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, store.Record(ctx, engine.Execution{ID: "x"}), context.Canceled)
}

func TestListValidation(t *testing.T) {
	store := openTestStore(t)
	_, err := store.List(context.Background(), 0)
	require.ErrorContains(t, err, "limit must be greater than zero")

	var nilStore *Store
	_, err = nilStore.List(context.Background(), 1)
	require.ErrorContains(t, err, "not configured")
	require.NoError(t, nilStore.Close())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), engine.Execution{ID: "keep", Mode: "m", Trigger: "cli", Status: engine.StatusCompleted}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	records, err := store.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
