// Package worker runs the retention sweep in the background. On every tick
// it scrubs the reports that have outlived the retention window and keeps a
// short in-memory history of its runs for the worker status endpoints.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"appfeedback/internal/config"
	"appfeedback/internal/observability"
	"appfeedback/internal/services"
	contextutils "appfeedback/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Run outcomes recorded in RunRecord.Status.
const (
	RunStatusSuccess = "Success"
	RunStatusFailure = "Failure"
	RunStatusSkipped = "Skipped"
)

// Status represents the current state of the worker
type Status struct {
	IsRunning       bool      `json:"is_running"`
	IsPaused        bool      `json:"is_paused"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	LastRunStart    time.Time `json:"last_run_start"`
	LastRunFinish   time.Time `json:"last_run_finish"`
	LastRunError    string    `json:"last_run_error,omitempty"`
	NextRun         time.Time `json:"next_run"`
}

// RunRecord tracks individual sweep runs
type RunRecord struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Scrubbed  int           `json:"scrubbed"`
	Details   string        `json:"details"`
}

// Worker periodically scrubs expired reports.
type Worker struct {
	scrubService  services.ScrubServiceInterface
	instance      string
	status        Status
	history       []RunRecord
	mu            sync.RWMutex
	manualTrigger chan bool
	cfg           *config.Config
	logger        *observability.Logger

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a sweep worker. Sweeps run as cfg.Reports.ScrubberBotID.
func NewWorker(scrubService services.ScrubServiceInterface, instance string, cfg *config.Config, logger *observability.Logger) *Worker {
	if scrubService == nil {
		panic("NewWorker: scrubService is nil")
	}
	if instance == "" {
		instance = "default"
	}
	return &Worker{
		scrubService:  scrubService,
		instance:      instance,
		status:        Status{CurrentActivity: "Initialized"},
		history:       make([]RunRecord, 0, cfg.Server.MaxHistory),
		manualTrigger: make(chan bool, 1),
		cfg:           cfg,
		logger:        logger,
		timeNow:       time.Now,
		done:          make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled or Shutdown is called.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer close(w.done)

	interval := w.cfg.Reports.SweepInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.mu.Lock()
	w.cancel = cancel
	w.status.IsRunning = true
	w.status.CurrentActivity = "Idle"
	w.status.NextRun = w.timeNow().Add(interval)
	w.mu.Unlock()

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance":       w.instance,
		"sweep_interval": interval.String(),
		"retention_days": w.cfg.Reports.RetentionDays,
	})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Worker shutting down", map[string]interface{}{
				"instance": w.instance,
			})
			w.mu.Lock()
			w.status.IsRunning = false
			w.status.CurrentActivity = "Stopped"
			w.mu.Unlock()
			return

		case <-ticker.C:
			w.run(ctx)
			w.setNextRun(w.timeNow().Add(interval))

		case <-w.manualTrigger:
			w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
				"instance": w.instance,
			})
			w.run(ctx)
		}
	}
}

func (w *Worker) setNextRun(next time.Time) {
	w.mu.Lock()
	w.status.NextRun = next
	w.mu.Unlock()
}

// run performs one sweep unless the worker is paused.
func (w *Worker) run(ctx context.Context) {
	ctx, span := observability.TraceWorkerFunction(ctx, "run",
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, nil)

	w.mu.Lock()
	if w.status.IsPaused {
		w.status.CurrentActivity = "Worker instance paused"
		w.mu.Unlock()
		span.SetAttributes(attribute.String("pause_reason", "Worker instance paused"))
		return
	}
	w.status.LastRunStart = w.timeNow()
	w.status.CurrentActivity = "Sweeping expired reports"
	w.mu.Unlock()

	scrubbed, err := w.scrubService.SweepExpiring(ctx, w.cfg.Reports.ScrubberBotID)
	span.SetAttributes(observability.AttributeCount(scrubbed))

	record := RunRecord{Scrubbed: scrubbed}
	switch {
	case errors.Is(err, contextutils.ErrSweepInProgress):
		// Another instance holds the lock and is doing the same work.
		record.Status = RunStatusSkipped
		record.Details = "sweep already in progress elsewhere"
		w.logger.Info(ctx, "Sweep skipped, lock held elsewhere", map[string]interface{}{
			"instance": w.instance,
		})
		err = nil
	case err != nil:
		record.Status = RunStatusFailure
		record.Details = fmt.Sprintf("scrubbed %d reports before failing", scrubbed)
		w.logger.Error(ctx, "Worker run failed", err, map[string]interface{}{
			"instance": w.instance,
			"scrubbed": scrubbed,
		})
	default:
		record.Status = RunStatusSuccess
		record.Details = fmt.Sprintf("scrubbed %d reports", scrubbed)
		w.logger.Info(ctx, "Retention sweep finished", map[string]interface{}{
			"instance": w.instance,
			"scrubbed": scrubbed,
		})
	}

	w.mu.Lock()
	w.status.LastRunFinish = w.timeNow()
	w.status.CurrentActivity = "Idle"
	if err != nil {
		w.status.LastRunError = err.Error()
	} else {
		w.status.LastRunError = ""
	}
	record.StartTime = w.status.LastRunStart
	record.EndTime = w.status.LastRunFinish
	record.Duration = record.EndTime.Sub(record.StartTime)
	w.mu.Unlock()

	w.recordRunHistory(record)
}

// recordRunHistory records the run in history and trims the slice
func (w *Worker) recordRunHistory(record RunRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, record)
	if max := w.cfg.Server.MaxHistory; max > 0 && len(w.history) > max {
		w.history = w.history[len(w.history)-max:]
	}
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns the worker's run history
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

// GetInstance returns the worker instance name
func (w *Worker) GetInstance() string {
	return w.instance
}

// TriggerManualRun asks the loop for an immediate sweep. A trigger that is
// already pending absorbs this one.
func (w *Worker) TriggerManualRun() {
	ctx := context.Background()
	select {
	case w.manualTrigger <- true:
		w.logger.Info(ctx, "Manual trigger sent to worker", map[string]interface{}{
			"instance": w.instance,
		})
	default:
		w.logger.Info(ctx, "Manual trigger already pending for worker", map[string]interface{}{
			"instance": w.instance,
		})
	}
}

// Pause stops sweeps until Resume is called. Ticks keep arriving and are
// recorded as paused activity.
func (w *Worker) Pause(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = true
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker paused", map[string]interface{}{
		"instance": w.instance,
	})
}

// Resume resumes the worker
func (w *Worker) Resume(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = false
	w.status.CurrentActivity = "Idle"
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker resumed", map[string]interface{}{
		"instance": w.instance,
	})
}

// Shutdown stops the loop and waits for an in-flight sweep to finish or for
// ctx to expire.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.logger.Info(ctx, "Worker starting shutdown", map[string]interface{}{
		"instance": w.instance,
	})

	w.mu.RLock()
	cancel := w.cancel
	w.mu.RUnlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-w.done:
	case <-ctx.Done():
		return contextutils.WrapError(ctx.Err(), "worker shutdown timed out")
	}

	w.logger.Info(ctx, "Worker shutdown completed", map[string]interface{}{
		"instance": w.instance,
	})
	return nil
}
