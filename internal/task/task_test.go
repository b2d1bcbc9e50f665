package task

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicehouse/internal/store"
	"slicehouse/pkg/errors"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counting(calls *int) Func {
	return func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) {
		*calls++
		return *calls, nil
	}
}

func failing(msg string) Func {
	return func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) {
		return 0, errors.New(errors.ErrCodeRefreshFailed, msg)
	}
}

func TestParseSchedule(t *testing.T) {
	s, err := parseSchedule("EVERY 24h")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, s.every)
	assert.False(t, s.chained())

	s, err = parseSchedule("AFTER daily_summary")
	require.NoError(t, err)
	assert.Equal(t, "daily_summary", s.after)
	assert.True(t, s.chained())

	for _, bad := range []string{"", "EVERY", "EVERY soon", "EVERY -1h", "WHENEVER 5m", "AFTER a b"} {
		_, err := parseSchedule(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	wh := store.NewWarehouse()
	noop := func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error) { return 0, nil }

	_, err := NewRunner(clock, wh, []Task{
		{Name: "a", Schedule: "EVERY 1h", Run: noop},
		{Name: "b", Schedule: "AFTER missing", Run: noop},
	})
	assert.Equal(t, errors.ErrCodePipelineUnknownInput, errors.GetErrorCode(err))

	_, err = NewRunner(clock, wh, []Task{
		{Name: "a", Schedule: "AFTER b", Run: noop},
		{Name: "b", Schedule: "AFTER a", Run: noop},
	})
	assert.Equal(t, errors.ErrCodePipelineCycle, errors.GetErrorCode(err))

	_, err = NewRunner(clock, wh, []Task{
		{Name: "a", Schedule: "EVERY 1h", Run: noop},
		{Name: "a", Schedule: "EVERY 2h", Run: noop},
	})
	assert.Equal(t, errors.ErrCodePipelineDuplicate, errors.GetErrorCode(err))
}

func TestRunDueCascades(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	wh := store.NewWarehouse()
	var parent, child, grandchild int

	r, err := NewRunner(clock, wh, []Task{
		{Name: "summary", Schedule: "EVERY 24h", Run: counting(&parent)},
		{Name: "loyalty", Schedule: "AFTER summary", Run: counting(&child)},
		{Name: "rfm", Schedule: "AFTER loyalty", Run: counting(&grandchild)},
	}, WithLogger(quietLogger()))
	require.NoError(t, err)

	records, err := r.RunDue(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"summary", "loyalty", "rfm"},
		[]string{records[0].Task, records[1].Task, records[2].Task})
	assert.Equal(t, 1, parent)
	assert.Equal(t, 1, grandchild)

	// Not due again until the interval elapses.
	records, err = r.RunDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	clock.Advance(24 * time.Hour)
	records, err = r.RunDue(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 2, parent)
}

func TestRunDueFailureStopsChain(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	wh := store.NewWarehouse()
	var child int

	r, err := NewRunner(clock, wh, []Task{
		{Name: "summary", Schedule: "EVERY 1h", Run: failing("merge blew up")},
		{Name: "loyalty", Schedule: "AFTER summary", Run: counting(&child)},
	}, WithLogger(quietLogger()))
	require.NoError(t, err)

	records, err := r.RunDue(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Failed())
	assert.Zero(t, child)
}

func TestRunTaskAndDisabled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	wh := store.NewWarehouse()
	var parent, child int

	r, err := NewRunner(clock, wh, []Task{
		{Name: "summary", Schedule: "EVERY 24h", Run: counting(&parent)},
		{Name: "loyalty", Schedule: "AFTER summary", Run: counting(&child)},
	}, WithLogger(quietLogger()), WithDisabled([]string{"loyalty"}))
	require.NoError(t, err)

	records, err := r.RunTask(context.Background(), "summary")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, parent)
	assert.Zero(t, child)

	_, err = r.RunTask(context.Background(), "nonsense")
	assert.Error(t, err)
}

func TestHistoryBounded(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	wh := store.NewWarehouse()
	var n int

	r, err := NewRunner(clock, wh, []Task{
		{Name: "tick", Schedule: "EVERY 1m", Run: counting(&n)},
	}, WithLogger(quietLogger()), WithHistorySize(3))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := r.RunDue(context.Background())
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	hist := r.History()
	require.Len(t, hist, 3)
	// Newest first.
	assert.Equal(t, 5, hist[0].Rows)
	assert.Equal(t, 3, hist[2].Rows)
}

func TestLoop(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	wh := store.NewWarehouse()
	var n int

	r, err := NewRunner(clock, wh, []Task{
		{Name: "tick", Schedule: "EVERY 1m", Run: counting(&n)},
	}, WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Loop(ctx, time.Minute) }()

	clock.BlockUntil(1)
	assert.Eventually(t, func() bool { return len(r.History()) >= 1 },
		time.Second, 5*time.Millisecond)

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return len(r.History()) >= 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
