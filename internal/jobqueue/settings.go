// Package jobqueue implements the asynchronous job manager at the core of
// queuefs: a client-side handle backed by a supervisor process that
// schedules retrying, bounded-concurrency shell commands.
package jobqueue

import (
	"time"

	"github.com/mpartel/queuefs/internal/validator"
)

// Settings configures a job queue at creation time. CmdTemplate is copied
// into the supervisor process verbatim; the supervisor owns its own copy
// from then on.
type Settings struct {
	// CmdTemplate may contain zero or more occurrences of the literal
	// token "{}", replaced at dispatch time with the shell-quoted
	// absolute path of the file being processed.
	CmdTemplate string
	// MaxWorkers is the maximum number of worker processes running
	// concurrently.
	MaxWorkers int
	// RetryWait is the delay inserted before re-enqueuing a failed job.
	RetryWait time.Duration
}

// Validate reports whether s is usable to create a queue.
func (s Settings) Validate() error {
	v := validator.New()
	v.Assert(s.CmdTemplate != "", "cmd template must not be empty")
	v.Assert(s.MaxWorkers >= 1, "max workers must be at least 1")
	v.Assert(s.RetryWait >= 0, "retry wait must not be negative")
	return v.Err()
}
