package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, Entry{
			ID:          fmt.Sprintf("run-%d", i),
			Trigger:     "interval",
			Mode:        "silent",
			Outcome:     "upToDate",
			Fingerprint: "fp",
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			Duration:    1500 * time.Millisecond,
		}))
	}

	got, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "run-4", got[0].ID, "newest run should be first")
	assert.Equal(t, "run-2", got[2].ID)
	assert.Equal(t, 1500*time.Millisecond, got[0].Duration)
	assert.Equal(t, base.Add(4*time.Minute), got[0].StartedAt)
	assert.Empty(t, got[0].Kind)
}

func TestStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	e := Entry{ID: "same", Trigger: "manual", Mode: "interactive", Outcome: "installed", StartedAt: time.Now()}
	require.NoError(t, s.Record(ctx, e))
	assert.Error(t, s.Record(ctx, e))
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Entry{ID: "a", Trigger: "startup", Mode: "silent", Outcome: "skippedPolicy", StartedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1, "history should persist across opens")
}
