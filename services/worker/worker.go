package worker

import (
	"context"
	stderrors "errors"
	"time"

	"sjsage522/pricewatch/logger"
)

// Worker triggers sweeps on a fixed interval
type Worker struct {
	ctx      context.Context
	runner   *SweepRunner
	interval time.Duration
}

// NewWorker creates a new scheduled worker
func NewWorker(ctx context.Context, runner *SweepRunner, interval time.Duration) *Worker {
	return &Worker{
		ctx:      ctx,
		runner:   runner,
		interval: interval,
	}
}

// Start runs a sweep, waits for the interval and repeats until ctx is done.
// A sweep already started through the API is skipped, not queued.
func (w *Worker) Start() error {
	log := logger.ForWorker()
	if w.interval <= 0 {
		log.Info().Msg("Scheduled sweeps disabled")
		<-w.ctx.Done()
		return nil
	}

	for {
		start := time.Now()
		_, err := w.runner.Run(w.ctx)
		switch {
		case stderrors.Is(err, ErrSweepRunning):
			log.Info().Msg("Sweep already running, skipping scheduled run")
		case err != nil && w.ctx.Err() == nil:
			log.Error().Err(err).Msg("Scheduled sweep failed")
		default:
			log.Debug().Dur("elapsed", time.Since(start)).Msg("Scheduled sweep done")
		}

		select {
		case <-w.ctx.Done():
			return nil
		case <-time.After(w.interval):
		}
	}
}
