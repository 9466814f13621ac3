package runstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildpipe/internal/result"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuildNumbersMonotonicPerPipeline(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n1, err := s.BeginRun(ctx, "run-1", "svc", time.Now())
	require.NoError(t, err)
	n2, err := s.BeginRun(ctx, "run-2", "svc", time.Now())
	require.NoError(t, err)
	other, err := s.BeginRun(ctx, "run-3", "other", time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(2), n2)
	assert.Equal(t, int64(1), other, "build numbers are per pipeline identity")
}

func TestFinishAndLastResult(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LastResult(ctx, "svc", "none")
	assert.True(t, errors.Is(err, ErrNoRuns))

	_, err = s.BeginRun(ctx, "run-1", "svc", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, "run-1", result.Unstable, "stage test failed", time.Now()))

	_, err = s.BeginRun(ctx, "run-2", "svc", time.Now())
	require.NoError(t, err)

	// run-2 is in flight: LastResult must see run-1, not run-2.
	prev, err := s.LastResult(ctx, "svc", "run-2")
	require.NoError(t, err)
	assert.Equal(t, result.Unstable, prev)

	r, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "unstable", r.Result)
	assert.Equal(t, "stage test failed", r.Cause)
	assert.False(t, r.FinishedAt.IsZero())
}

func TestFinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun(context.Background(), "ghost", result.Success, "", time.Now())
	assert.Error(t, err)
}

func TestEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.BeginRun(ctx, "run-1", "svc", time.Now())
	require.NoError(t, err)

	require.NoError(t, s.AppendEvent(ctx, "run-1", "stage.finished", []byte(`{"stage":"build"}`)))
	require.NoError(t, s.AppendEvent(ctx, "run-1", "run.finished", nil))

	events, err := s.EventsByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "stage.finished", events[0].Type)
	assert.Equal(t, "run.finished", events[1].Type)
	assert.JSONEq(t, `{"stage":"build"}`, string(events[0].Payload))
}
