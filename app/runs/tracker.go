package runs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/newsdesk/app/database"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// DeriveStatus maps item counts to a run status. A run that attempted nothing is a successful no-op.
func DeriveStatus(processed, failed int) Status {
	switch {
	case failed == 0:
		return StatusSuccess
	case processed == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Bookkeeping writes outlive the job context so that a timed-out or cancelled job still closes
// its run and updates health.
const bookkeepingTimeout = 10 * time.Second

type Store interface {
	CreateRun(ctx context.Context, run database.PipelineRun) error
	FinishRun(ctx context.Context, run database.PipelineRun) error
	RecordSuccess(ctx context.Context, jobName string, at time.Time) error
	RecordFailure(ctx context.Context, jobName string, message string, at time.Time) error
}

type Stats struct {
	ItemsIn  int
	ItemsOut int
	Errors   int
	Details  map[string]any
}

// Tracker keeps pipeline run rows and job health up to date. Its bookkeeping failures are logged
// and never reach the job.
type Tracker struct {
	store Store
	now   func() time.Time
	newID func() string
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now, newID: uuid.NewString}
}

type Run struct {
	tracker *Tracker
	record  database.PipelineRun
}

func (t *Tracker) Start(ctx context.Context, jobName string) *Run {
	run := &Run{
		tracker: t,
		record: database.PipelineRun{
			ID:        t.newID(),
			JobName:   jobName,
			StartedAt: t.now(),
			Status:    string(StatusRunning),
		},
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if err := t.store.CreateRun(ctx, run.record); err != nil {
		slog.Error("Failed to create pipeline run", "job", jobName, "run", run.record.ID, "error", err)
	}

	return run
}

func (r *Run) ID() string {
	return r.record.ID
}

func (r *Run) StartedAt() time.Time {
	return r.record.StartedAt
}

// Finish closes the run with a status derived from stats. Health is reset on success or partial
// success and extended on failure.
func (r *Run) Finish(ctx context.Context, stats Stats) Status {
	status := DeriveStatus(stats.ItemsOut, stats.Errors)

	message := ""
	if status == StatusFailed {
		message = fmt.Sprintf("all %d items failed", stats.Errors)
	}

	r.finish(ctx, status, stats, message)
	return status
}

// Fail closes a run that was aborted by a fatal error.
func (r *Run) Fail(ctx context.Context, cause error, stats Stats) Status {
	if stats.Details == nil {
		stats.Details = map[string]any{}
	}
	stats.Details["error"] = cause.Error()

	r.finish(ctx, StatusFailed, stats, cause.Error())
	return StatusFailed
}

func (r *Run) finish(ctx context.Context, status Status, stats Stats, message string) {
	t := r.tracker
	finished := t.now()

	r.record.FinishedAt = &finished
	r.record.Status = string(status)
	r.record.ItemsIn = stats.ItemsIn
	r.record.ItemsOut = stats.ItemsOut
	r.record.ErrorCount = stats.Errors
	r.record.Details = stats.Details

	ctx, cancel := detach(ctx)
	defer cancel()

	if err := t.store.FinishRun(ctx, r.record); err != nil {
		slog.Error("Failed to finish pipeline run", "job", r.record.JobName, "run", r.record.ID, "error", err)
	}

	var err error
	if status == StatusFailed {
		err = t.store.RecordFailure(ctx, r.record.JobName, message, finished)
	} else {
		err = t.store.RecordSuccess(ctx, r.record.JobName, finished)
	}
	if err != nil {
		slog.Error("Failed to update job health", "job", r.record.JobName, "error", err)
	}

	slog.Info("Pipeline run finished",
		"job", r.record.JobName,
		"run", r.record.ID,
		"status", status,
		"duration", finished.Sub(r.record.StartedAt),
		"items_in", stats.ItemsIn,
		"items_out", stats.ItemsOut,
		"errors", stats.Errors)
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}
