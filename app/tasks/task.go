package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/newsdesk/app/runs"
)

type TaskType string

// storeTimeout bounds writes that persist finished work after the job context has ended.
const storeTimeout = 10 * time.Second

const (
	TaskTypeFetchNews    TaskType = "fetch-news"
	TaskTypeClassifyNews TaskType = "classify-news"
)

func ParseTaskType(s string) (TaskType, bool) {
	switch TaskType(s) {
	case TaskTypeFetchNews, TaskTypeClassifyNews:
		return TaskType(s), true
	}
	return "", false
}

type TaskInterface interface {
	Execute(ctx context.Context) (*Report, error)
	GetID() string
	GetType() TaskType
	Start()
	GetDuration() time.Duration
}

// Report is the outcome of one job invocation. Counts holds job-specific numbers.
type Report struct {
	Job       TaskType       `json:"job"`
	RunID     string         `json:"run_id"`
	Status    runs.Status    `json:"status"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Counts    map[string]int `json:"counts"`
}

type Task struct {
	ID        string
	Type      TaskType
	StartedAt *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType) Task {
	return Task{
		ID:   uuid.NewString(),
		Type: taskType,
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
}
