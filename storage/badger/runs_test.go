package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/hnindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRepository_NoRunYet(t *testing.T) {
	_, runs, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	run, err := runs.LoadLastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRunRepository_SaveReplaces(t *testing.T) {
	_, runs, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, runs.SaveRun(ctx, &core.RunRecord{RunID: "first", StartedAt: start, FinishedAt: start}))
	require.NoError(t, runs.SaveRun(ctx, &core.RunRecord{
		RunID:      "second",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Attempted:  2,
		Succeeded:  1,
		Vectors:    2,
		Success:    true,
	}))

	run, err := runs.LoadLastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "second", run.RunID)
	assert.Equal(t, 2, run.Attempted)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 2, run.Vectors)
	assert.True(t, run.Success)
	assert.True(t, run.FinishedAt.Equal(start.Add(time.Second)))
}
