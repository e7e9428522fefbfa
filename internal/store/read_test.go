package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_OldestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs, "empty slice, not nil")
	assert.Empty(t, runs)

	first := recordHotCold(t, s)
	second := recordHotCold(t, s)

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)
	assert.Equal(t, runs[0].TraceHash, runs[1].TraceHash, "identical runs hash identically")

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestReadSelections_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, RunMeta{Program: "p", Strategy: "priority"})
	require.NoError(t, err)

	selections, err := s.ReadSelections(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, selections)

	seq, err := s.GetLastSeq(ctx, run.ID)
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestReadRecording(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := recordHotCold(t, s)

	rec, err := s.ReadRecording(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, rec.Run.ID)
	assert.Len(t, rec.Triggers, 1)
	assert.Len(t, rec.Selections, 5)

	last, err := s.GetLastSeq(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Selections[4].Seq, last)
}

func TestLatestRun_CustomIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha"} {
		_, err := s.CreateRun(ctx, RunMeta{ID: id, Program: "p", Strategy: "priority"})
		require.NoError(t, err)
	}

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", latest.ID, "insertion order, not id order")

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "zeta", runs[0].ID)
}
