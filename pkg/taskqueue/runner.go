package taskqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

// Store is the queue persistence surface the runner needs.
type Store interface {
	ClaimNext(ctx context.Context, queue string) (*Task, error)
	Complete(ctx context.Context, id uuid.UUID, status string, result map[string]interface{}) error
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time, errMsg string) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Outcome is a successful processing result. Skipped marks duplicate
// short-circuits, which are successes, not failures.
type Outcome struct {
	Skipped bool
	Result  map[string]interface{}
}

type ProcessFunc func(ctx context.Context, task *Task) (*Outcome, error)

// Report is returned to the triggering caller; an empty claim is a clean
// no-op, never an error.
type Report struct {
	Success    bool                   `json:"success"`
	Claimed    bool                   `json:"claimed"`
	TaskID     string                 `json:"task_id,omitempty"`
	Status     string                 `json:"status,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
	Metrics    map[string]interface{} `json:"metrics,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

type Runner struct {
	store Store
	now   func() time.Time
}

func NewRunner(store Store) *Runner {
	return &Runner{store: store, now: time.Now}
}

// SetClock injects the time source for tests.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// RunOnce claims at most one task from the queue and drives it to a terminal
// or rescheduled state. A task failure is classified, written onto its own
// row and absorbed; it never propagates to the caller.
func (r *Runner) RunOnce(ctx context.Context, queue string, process ProcessFunc) Report {
	start := r.now()

	task, err := r.store.ClaimNext(ctx, queue)
	if err != nil {
		logger.Log.WithError(err).WithField("queue", queue).Error("Failed to claim task")
		return Report{Success: false, DurationMs: r.sinceMs(start), Error: "claim failed"}
	}
	if task == nil {
		return Report{Success: true, Claimed: false, DurationMs: r.sinceMs(start)}
	}

	metrics.TaskClaimed()
	log := logger.Log.WithFields(map[string]interface{}{
		"queue":    queue,
		"task_id":  task.ID.String(),
		"attempts": task.Attempts,
	})

	outcome, procErr := r.runProtected(ctx, task, process)
	if procErr != nil {
		return r.handleFailure(ctx, task, procErr, start, log)
	}

	status := StatusCompleted
	if outcome != nil && outcome.Skipped {
		status = StatusSkipped
	}

	var result map[string]interface{}
	if outcome != nil {
		result = outcome.Result
	}

	if err := r.store.Complete(ctx, task.ID, status, result); err != nil {
		log.WithError(err).Error("Failed to mark task complete")
		return Report{Success: false, Claimed: true, TaskID: task.ID.String(), DurationMs: r.sinceMs(start), Error: "persist outcome failed"}
	}

	if status == StatusSkipped {
		metrics.TaskSkipped()
	} else {
		metrics.TaskCompleted()
	}
	log.WithField("status", status).Info("Task finished")

	return Report{
		Success:    true,
		Claimed:    true,
		TaskID:     task.ID.String(),
		Status:     status,
		DurationMs: r.sinceMs(start),
		Metrics:    result,
	}
}

// runProtected converts a processor panic into an ordinary error so one bad
// task cannot take down the invocation.
func (r *Runner) runProtected(ctx context.Context, task *Task, process ProcessFunc) (outcome *Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processor panic: %v", rec)
		}
	}()
	return process(ctx, task)
}

func (r *Runner) handleFailure(ctx context.Context, task *Task, procErr error, start time.Time, log *logrus.Entry) Report {
	kind := faults.KindOf(procErr)

	if faults.Retryable(kind) && task.Attempts < task.MaxAttempts {
		delay := Backoff(task.Queue, kind, task.Attempts)
		at := r.now().UTC().Add(delay)
		if err := r.store.Reschedule(ctx, task.ID, at, procErr.Error()); err != nil {
			log.WithError(err).Error("Failed to reschedule task")
		}
		metrics.TaskRetried()
		log.WithFields(map[string]interface{}{
			"kind":     string(kind),
			"retry_at": at,
		}).Warn("Task failed, rescheduled")
		return Report{Success: true, Claimed: true, TaskID: task.ID.String(), Status: StatusPending, DurationMs: r.sinceMs(start), Error: procErr.Error()}
	}

	if err := r.store.Fail(ctx, task.ID, procErr.Error()); err != nil {
		log.WithError(err).Error("Failed to mark task failed")
	}
	metrics.TaskFailed()

	if kind == faults.AuthFatal || kind == faults.QuotaExhausted {
		// Operator-action failures are flagged distinctly from retry exhaustion.
		log = log.WithField("needs_operator", true)
	}
	log.WithField("kind", string(kind)).Error("Task terminally failed")

	return Report{Success: true, Claimed: true, TaskID: task.ID.String(), Status: StatusFailed, DurationMs: r.sinceMs(start), Error: procErr.Error()}
}

func (r *Runner) sinceMs(start time.Time) int64 {
	return r.now().Sub(start).Milliseconds()
}
