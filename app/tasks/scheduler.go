package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrJobRunning = errors.New("job is already running")

type TaskFactory interface {
	New(taskType TaskType, mode Mode) (TaskInterface, error)
}

type SchedulerOptions struct {
	FetchSchedule    string
	ClassifySchedule string
	WorkerCount      int
	TaskTimeout      time.Duration
}

// Scheduler executes jobs from cron entries and explicit requests. At most one task per job type
// runs at a time.
type Scheduler struct {
	factory   TaskFactory
	options   SchedulerOptions
	cron      *cron.Cron
	busyMu    sync.Mutex
	busy      map[TaskType]bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
	stopOnce  sync.Once
}

func NewScheduler(factory TaskFactory, options SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if options.WorkerCount <= 0 {
		options.WorkerCount = 1
	}
	if options.TaskTimeout <= 0 {
		options.TaskTimeout = 10 * time.Minute
	}

	return &Scheduler{
		factory:   factory,
		options:   options,
		cron:      cron.New(),
		busy:      make(map[TaskType]bool),
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 16),
	}
}

func (s *Scheduler) Start() error {
	entries := map[TaskType]string{
		TaskTypeFetchNews:    s.options.FetchSchedule,
		TaskTypeClassifyNews: s.options.ClassifySchedule,
	}
	for taskType, spec := range entries {
		if spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(spec, func() { s.enqueueScheduled(taskType) }); err != nil {
			return fmt.Errorf("failed to schedule %s with %q: %w", taskType, spec, err)
		}
		slog.Info("Job scheduled", "type", string(taskType), "schedule", spec)
	}

	for i := 0; i < s.options.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RunTask executes task on the caller's goroutine and returns its report. It fails with
// ErrJobRunning when a task of the same type is in progress.
func (s *Scheduler) RunTask(ctx context.Context, task TaskInterface) (*Report, error) {
	if !s.acquire(task.GetType()) {
		return nil, ErrJobRunning
	}
	defer s.release(task.GetType())

	return s.execute(ctx, task)
}

func (s *Scheduler) enqueueScheduled(taskType TaskType) {
	task, err := s.factory.New(taskType, ModeFull)
	if err != nil {
		slog.Error("Failed to create scheduled task", "type", string(taskType), "error", err)
		return
	}
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue scheduled task", "type", string(taskType), "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			if !s.acquire(task.GetType()) {
				slog.Warn("Job still running, skipping scheduled task", "worker_id", id, "type", string(task.GetType()), "id", task.GetID())
				continue
			}
			if _, err := s.execute(s.ctx, task); err != nil {
				slog.Error("Worker task execution failed", "worker_id", id, "type", string(task.GetType()), "id", task.GetID(), "error", err)
			}
			s.release(task.GetType())

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, task TaskInterface) (*Report, error) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(ctx, s.options.TaskTimeout)
	defer cancel()

	report, err := task.Execute(taskCtx)
	if err != nil {
		return report, err
	}

	slog.Debug("Task finished", "type", string(task.GetType()), "id", task.GetID(), "duration", task.GetDuration(), "status", report.Status)
	return report, nil
}

func (s *Scheduler) acquire(taskType TaskType) bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()

	if s.busy[taskType] {
		return false
	}
	s.busy[taskType] = true
	return true
}

func (s *Scheduler) release(taskType TaskType) {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()

	delete(s.busy, taskType)
}
