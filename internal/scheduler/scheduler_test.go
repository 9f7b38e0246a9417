package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

type countingRunner struct {
	runs atomic.Int32
}

func (r *countingRunner) RunAll(_ context.Context) (*domain.RunReport, error) {
	r.runs.Add(1)
	return &domain.RunReport{Message: "ingestion completed"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStart_RunsImmediately(t *testing.T) {
	runner := &countingRunner{}
	sched := New(runner, "0 * * * *", time.Minute, testLogger())
	defer sched.Stop()

	require.NoError(t, sched.Start(context.Background()))

	assert.Equal(t, int32(1), runner.runs.Load())
}

func TestStart_SecondCallIsNoOp(t *testing.T) {
	runner := &countingRunner{}
	sched := New(runner, "0 * * * *", time.Minute, testLogger())
	defer sched.Stop()

	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Start(context.Background()))

	// Only the first Start runs and registers; restarts-in-place cannot
	// stack duplicate timers.
	assert.Equal(t, int32(1), runner.runs.Load())
}

func TestStart_InvalidScheduleErrors(t *testing.T) {
	runner := &countingRunner{}
	sched := New(runner, "not a cron expression", time.Minute, testLogger())

	err := sched.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "register schedule")
}

func TestScheduledRunsFire(t *testing.T) {
	runner := &countingRunner{}
	// Every-second cadence keeps the test fast; robfig/cron standard parser
	// supports @every.
	sched := New(runner, "@every 100ms", time.Minute, testLogger())
	defer sched.Stop()

	require.NoError(t, sched.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return runner.runs.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond)
}
