package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/rs/xid"

	"sjsage522/pricewatch/logger"
)

// ErrSweepRunning is returned when a sweep is triggered while one is in flight
var ErrSweepRunning = stderrors.New("scrape sweep already running")

// SweepState is the lifecycle state of the sweep job
type SweepState string

const (
	SweepIdle    SweepState = "idle"
	SweepRunning SweepState = "running"
)

// Sweeper runs one full sweep
type Sweeper interface {
	RunFullScrapeSweep(ctx context.Context) (SweepResult, error)
}

// SweepStatus is a point-in-time copy of the job record
type SweepStatus struct {
	JobID      string       `json:"jobId,omitempty"`
	State      SweepState   `json:"state"`
	StartedAt  *time.Time   `json:"startedAt,omitempty"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
	LastResult *SweepResult `json:"lastResult,omitempty"`
	LastError  string       `json:"lastError,omitempty"`
}

// SweepRunner allows at most one sweep at a time and keeps the record of
// the current or last one
type SweepRunner struct {
	ctx     context.Context
	sweeper Sweeper

	mu     sync.Mutex
	status SweepStatus
	wg     sync.WaitGroup
}

// NewSweepRunner creates a runner. Background sweeps run under ctx.
func NewSweepRunner(ctx context.Context, sweeper Sweeper) *SweepRunner {
	return &SweepRunner{
		ctx:     ctx,
		sweeper: sweeper,
		status:  SweepStatus{State: SweepIdle},
	}
}

// Start launches a sweep in the background and returns immediately. A
// concurrent trigger gets the running job's status and ErrSweepRunning.
func (r *SweepRunner) Start() (SweepStatus, error) {
	status, err := r.begin()
	if err != nil {
		return status, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(r.ctx)
	}()
	return status, nil
}

// Run performs a sweep synchronously under the same single-flight rule
func (r *SweepRunner) Run(ctx context.Context) (SweepResult, error) {
	if _, err := r.begin(); err != nil {
		return SweepResult{}, err
	}
	return r.execute(ctx)
}

// Status returns a copy of the job record
func (r *SweepRunner) Status() SweepStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotStatus()
}

// Wait blocks until background sweeps have finished
func (r *SweepRunner) Wait() {
	r.wg.Wait()
}

func (r *SweepRunner) begin() (SweepStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.State == SweepRunning {
		return r.snapshotStatus(), ErrSweepRunning
	}

	now := time.Now()
	r.status.JobID = xid.New().String()
	r.status.State = SweepRunning
	r.status.StartedAt = &now
	r.status.FinishedAt = nil
	sweepRunning.Set(1)

	logger.ForWorker().Info().Str("job_id", r.status.JobID).Msg("Sweep job started")
	return r.snapshotStatus(), nil
}

func (r *SweepRunner) execute(ctx context.Context) (SweepResult, error) {
	result, err := r.sweeper.RunFullScrapeSweep(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.status.State = SweepIdle
	r.status.FinishedAt = &now
	r.status.LastResult = &result
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
	}
	sweepRunning.Set(0)

	logger.ForWorker().Info().
		Str("job_id", r.status.JobID).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		AnErr("sweep_error", err).
		Msg("Sweep job finished")
	return result, err
}

// snapshotStatus copies the record; the caller holds mu
func (r *SweepRunner) snapshotStatus() SweepStatus {
	cp := r.status
	if cp.LastResult != nil {
		result := *cp.LastResult
		result.Errors = append([]SweepError(nil), result.Errors...)
		cp.LastResult = &result
	}
	return cp
}
