package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerStartRepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := newBlockingSweeper()
	close(sweeper.release)

	w := NewWorker(ctx, NewSweepRunner(ctx, sweeper), 10*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start()
	}()

	<-sweeper.started
	<-sweeper.started
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.GreaterOrEqual(t, sweeper.runs.Load(), int32(2))
}

func TestWorkerSkipsWhileSweepRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := newBlockingSweeper()
	runner := NewSweepRunner(ctx, sweeper)

	_, err := runner.Start()
	require.NoError(t, err)
	<-sweeper.started

	w := NewWorker(ctx, runner, 5*time.Millisecond)
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start()
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), sweeper.runs.Load())

	close(sweeper.release)
	cancel()
	require.NoError(t, <-errCh)
	runner.Wait()
}

func TestWorkerWithoutIntervalWaitsForContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := newBlockingSweeper()
	w := NewWorker(ctx, NewSweepRunner(ctx, sweeper), 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start()
	}()

	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(0), sweeper.runs.Load())
}
