package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrRunning    = errors.New("scheduler already running")
	ErrNotRunning = errors.New("scheduler not running")
)

// JobError describes a failure tied to one job.
type JobError struct {
	Job     string
	Op      string
	Message string
	Err     error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job %s: %s: %s: %v", e.Job, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("job %s: %s: %s", e.Job, e.Op, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
