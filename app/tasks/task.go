package tasks

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeList     TaskType = "list"
	TaskTypeDetail   TaskType = "detail"
	TaskTypeDownload TaskType = "download"
	TaskTypeUpload   TaskType = "upload"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	Start()
	GetDuration() time.Duration
	Summary() Summary
}

// Task carries what every stage shares. RunID is stamped on every result record the stage
// writes.
type Task struct {
	ID        string
	Type      TaskType
	RunID     string
	StartedAt *time.Time
	Delay     time.Duration
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

// pause waits between two portal requests. A quarter of the delay is randomised so requests
// do not arrive on a fixed beat.
func (t *Task) pause(ctx context.Context) error {
	if t.Delay <= 0 {
		return ctx.Err()
	}

	d := t.Delay
	if jitter := int64(t.Delay / 4); jitter > 0 {
		d += time.Duration(rand.Int63n(jitter))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func NewTask(taskType TaskType, runID string) Task {
	if runID == "" {
		runID = NewRunID()
	}
	return Task{
		ID:    uuid.NewString(),
		Type:  taskType,
		RunID: runID,
	}
}

func NewRunID() string {
	return uuid.NewString()
}
