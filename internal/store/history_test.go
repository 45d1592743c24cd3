package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyline/internal/engine"
)

var t0 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func batchResult(started time.Time) *engine.BatchResult {
	return &engine.BatchResult{
		Started:  started,
		Duration: 1500 * time.Millisecond,
		Stories: []engine.StoryResult{
			{Path: "a.story", Status: engine.StatusSuccessful, Duration: 200 * time.Millisecond},
			{Path: "b.story", Status: engine.StatusFailed, Duration: 300 * time.Millisecond, Failure: errors.New("boom")},
			{Path: "c.story", Status: engine.StatusTimedOut, Duration: time.Second},
		},
	}
}

func TestFromResult(t *testing.T) {
	b := FromResult("batch-1", "-skip", batchResult(t0), errors.New("stopped"))

	assert.Equal(t, "batch-1", b.ID)
	assert.Equal(t, StatusFailed, b.Status)
	assert.Equal(t, "-skip", b.Filter)
	assert.Equal(t, 3, b.Total)
	assert.Equal(t, 2, b.Failed)
	require.Len(t, b.Stories, 3)
	assert.Equal(t, "boom", b.Stories[1].Failure)
	assert.Equal(t, "TIMED_OUT", b.Stories[2].Status)

	passed := FromResult("batch-2", "", &engine.BatchResult{Started: t0}, nil)
	assert.Equal(t, StatusPassed, passed.Status)
}

func TestFromResult_CollectedFailuresFailTheBatch(t *testing.T) {
	res := batchResult(t0)
	res.Failures = map[string]error{"b.story": errors.New("boom")}

	assert.Equal(t, StatusFailed, FromResult("batch-1", "", res, nil).Status)
}

func TestWriteAndReadBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b := FromResult("batch-1", "-skip", batchResult(t0), nil)
	require.NoError(t, s.WriteBatch(ctx, b))

	got, err := s.ReadBatch(ctx, "batch-1")
	require.NoError(t, err)

	assert.Equal(t, "batch-1", got.ID)
	assert.True(t, t0.Equal(got.Started))
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.Failed)
	assert.Equal(t, "-skip", got.Filter)
	require.Len(t, got.Stories, 3)
	assert.Equal(t, StoryOutcome{BatchID: "batch-1", Path: "a.story", Status: "SUCCESSFUL", Duration: 200 * time.Millisecond}, got.Stories[0])
	assert.Equal(t, "boom", got.Stories[1].Failure)
}

func TestWriteBatch_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b := FromResult("batch-1", "", batchResult(t0), nil)
	require.NoError(t, s.WriteBatch(ctx, b))

	b.Stories = b.Stories[:1]
	b.Total = 1
	require.NoError(t, s.WriteBatch(ctx, b))

	got, err := s.ReadBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Len(t, got.Stories, 1)
	assert.Equal(t, 1, got.Total)
}

func TestReadBatch_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadBatch(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestListBatches_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"batch-1", "batch-2", "batch-3"} {
		b := FromResult(id, "", batchResult(t0.Add(time.Duration(i)*time.Hour)), nil)
		require.NoError(t, s.WriteBatch(ctx, b))
	}

	all, err := s.ListBatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "batch-3", all[0].ID)
	assert.Equal(t, "batch-1", all[2].ID)
	assert.Nil(t, all[0].Stories)

	limited, err := s.ListBatches(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListBatches_Empty(t *testing.T) {
	s := createTestStore(t)

	batches, err := s.ListBatches(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, batches)
	assert.Empty(t, batches)
}

func TestStoryHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"batch-1", "batch-2"} {
		require.NoError(t, s.WriteBatch(ctx, FromResult(id, "", batchResult(t0.Add(time.Duration(i)*time.Hour)), nil)))
	}

	history, err := s.StoryHistory(ctx, "b.story", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "batch-2", history[0].BatchID)
	assert.Equal(t, "FAILED", history[0].Status)

	one, err := s.StoryHistory(ctx, "b.story", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestNewBatchID(t *testing.T) {
	a, b := NewBatchID(), NewBatchID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
