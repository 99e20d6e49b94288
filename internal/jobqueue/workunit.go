package jobqueue

import (
	"time"

	"github.com/google/uuid"
)

// noExitCode is the sentinel last-exit-code value for a work unit that has
// never completed an attempt.
const noExitCode = 0

// workUnit is the in-memory record of a single pending or running job.
// It lives in exactly one of the pending queue or the active table at any
// time; moving between the two is a transfer of ownership of the same
// record, never a share.
type workUnit struct {
	// id identifies this unit across log lines for its whole lifetime
	// (queued, dispatched, retried), even though nothing outside the
	// supervisor ever reads it back.
	id uuid.UUID

	path string

	attempts     int
	lastExitCode int
	hasExited    bool

	nextExecutionTime time.Time

	workerPID int

	// seq is a per-unit monotonic id, used only to break ties between
	// equal nextExecutionTime values in the pending queue ordering. It
	// stands in for the source implementation's use of worker_pid as a
	// tiebreak, which is unavailable before a unit has been dispatched.
	seq int

	// index is maintained by container/heap so Swap can keep each
	// unit's position current.
	index int
}

func newWorkUnit(path string) *workUnit {
	return &workUnit{id: uuid.New(), path: path}
}
