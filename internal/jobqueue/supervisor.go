package jobqueue

import (
	"errors"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/mpartel/queuefs/internal/log"
)

// workerResult is delivered on the finished channel once a worker process
// has been waited on.
type workerResult struct {
	pid int
	err error
}

// supervisor is the scheduler owned by the re-exec'd supervisor process.
// It replaces the source implementation's child-exit-signal-driven event
// loop with a single-threaded select over three channels: commands read
// from the pipe, worker completions, and a retry timer. Because the loop
// body only ever executes on one goroutine, there is no concurrent
// mutator of the pending queue, active table, or counters to race with —
// the signal-masking discipline in the source collapses to nothing.
type supervisor struct {
	settings Settings
	input    io.Reader
	output   io.Writer
	logger   *log.Logger

	pending *pendingQueue
	active  map[int]*workUnit

	workersStartedEver int
	workersWaitedEver  int
}

func newSupervisor(settings Settings, input io.Reader, output io.Writer, logger *log.Logger) *supervisor {
	return &supervisor{
		settings: settings,
		input:    input,
		output:   output,
		logger:   logger,
		pending:  newPendingQueue(),
		active:   make(map[int]*workUnit),
	}
}

// run is the supervisor main loop. It returns when the command pipe is
// closed or returns an error, mirroring the source's "read command;
// dispatch command" loop exiting on EOF. On return, live worker children
// are left running, reparented to init — the supervisor never signals or
// waits for them.
func (s *supervisor) run() {
	cmdCh := make(chan command)
	readErrCh := make(chan error, 1)
	go func() {
		fr := newFrameReader(s.input.Read)
		for {
			cmd, err := fr.next()
			if err != nil {
				readErrCh <- err
				return
			}
			cmdCh <- cmd
		}
	}()

	finished := make(chan workerResult)

	for {
		timerC, timer := s.computeTimer()

		select {
		case cmd := <-cmdCh:
			s.handleCommand(cmd, finished)
		case res := <-finished:
			s.reapWorker(res)
		case <-timerC:
			// Wake up solely to re-evaluate dispatch eligibility below.
		case <-readErrCh:
			stopTimer(timer)
			s.logger.Infof("command pipe closed, supervisor exiting")
			return
		}

		stopTimer(timer)
		s.dispatchDue(finished)
	}
}

func (s *supervisor) handleCommand(cmd command, finished chan workerResult) {
	switch cmd.kind {
	case commandExec:
		u := newWorkUnit(cmd.path)
		u.nextExecutionTime = time.Now()
		s.pending.push(u)
		s.logger.Infof("queued %s path=%q", u.id, u.path)
	case commandFlush:
		s.doFlush(finished)
	default:
		s.logger.Warnf("unrecognized command on queue pipe: %v", cmd.kind)
	}
}

// doFlush blocks until every unit queued at the moment FLUSH was received
// has been attempted at least once, then writes the single acknowledgement
// byte. It does not read further commands while waiting — the client
// handle's mutex guarantees none will arrive until the ack is read.
func (s *supervisor) doFlush(finished chan workerResult) {
	target := s.workersStartedEver + s.pending.len()

	for s.workersWaitedEver < target {
		s.dispatchDue(finished)

		if len(s.active) == 0 {
			u := s.pending.peek()
			if u == nil {
				break
			}
			wait := time.Until(u.nextExecutionTime)
			if wait < 0 {
				wait = 0
			}
			t := time.NewTimer(wait)
			select {
			case res := <-finished:
				t.Stop()
				s.reapWorker(res)
			case <-t.C:
			}
			continue
		}

		res := <-finished
		s.reapWorker(res)
	}

	s.ack()
}

// ack writes the single flush-acknowledgement byte, retrying indefinitely
// on a partial or failed write. This mirrors the source supervisor's
// unconditional `while (true) { if (write(...) == 1) break; }` loop; a
// short sleep between retries is added so a permanently broken pipe
// degrades into a slow spin rather than a hot one.
func (s *supervisor) ack() {
	for {
		n, err := s.output.Write([]byte{'1'})
		if err == nil && n == 1 {
			return
		}
		s.logger.Warnf("flush ack write did not complete, retrying: %v", err)
		time.Sleep(time.Millisecond)
	}
}

// dispatchDue starts as many due, pending work units as current capacity
// allows. It is the Go counterpart of start_queued_work(nodelay=true): it
// never sleeps, it only acts on units whose next_execution_time has
// already arrived.
func (s *supervisor) dispatchDue(finished chan workerResult) {
	for len(s.active) < s.settings.MaxWorkers {
		u := s.pending.peek()
		if u == nil {
			return
		}
		if time.Now().Before(u.nextExecutionTime) {
			return
		}
		s.pending.pop()
		s.startWorker(u, finished)
	}
}

// computeTimer returns a channel that fires when the earliest pending
// unit becomes due, provided there is spare worker capacity; otherwise it
// returns a nil channel, which blocks forever in a select — the idiomatic
// stand-in for "no timed wait needed".
func (s *supervisor) computeTimer() (<-chan time.Time, *time.Timer) {
	if len(s.active) >= s.settings.MaxWorkers {
		return nil, nil
	}
	u := s.pending.peek()
	if u == nil {
		return nil, nil
	}
	d := time.Until(u.nextExecutionTime)
	if d <= 0 {
		return nil, nil
	}
	t := time.NewTimer(d)
	return t.C, t
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// startWorker forks (execs) a worker process for u. A start failure is
// treated exactly like a failed attempt: both counters advance and the
// unit is reinserted with a retry delay, preserving the flush invariant
// that every started attempt is eventually waited on.
func (s *supervisor) startWorker(u *workUnit, finished chan workerResult) {
	expanded := expandTemplate(s.settings.CmdTemplate, u.path)
	cmd := exec.Command("/bin/sh", "-c", expanded)

	if err := cmd.Start(); err != nil {
		s.logger.Warnf("starting worker for %s path=%q: %v", u.id, u.path, err)
		s.workersStartedEver++
		s.workersWaitedEver++
		s.requeueFailed(u, -1)
		return
	}

	pid := cmd.Process.Pid
	u.workerPID = pid
	s.active[pid] = u
	s.workersStartedEver++
	s.logger.Infof("started %s pid=%d path=%q attempt=%d", u.id, pid, u.path, u.attempts+1)

	go func() {
		err := cmd.Wait()
		finished <- workerResult{pid: pid, err: err}
	}()
}

// reapWorker processes one worker's completion: success frees the unit,
// anything else requeues it with attempts incremented and
// next_execution_time pushed out by RetryWait.
func (s *supervisor) reapWorker(res workerResult) {
	u, ok := s.active[res.pid]
	if !ok {
		return
	}
	delete(s.active, res.pid)
	s.workersWaitedEver++

	code := exitCodeOf(res.err)
	if code == 0 {
		s.logger.Infof("completed %s pid=%d path=%q", u.id, res.pid, u.path)
		return
	}
	s.logger.Warnf("failed %s pid=%d path=%q exit=%d, will retry", u.id, res.pid, u.path, code)
	s.requeueFailed(u, code)
}

func (s *supervisor) requeueFailed(u *workUnit, code int) {
	u.attempts++
	u.lastExitCode = code
	u.hasExited = true
	u.nextExecutionTime = time.Now().Add(s.settings.RetryWait)
	s.pending.push(u)
}

// exitCodeOf converts the result of exec.Cmd.Wait into the job-exit-code
// convention used throughout the queue: 0 for success, the process's exit
// status for a normal nonzero exit, and the negated signal number for a
// signal death.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return -int(status.Signal())
			}
			return status.ExitStatus()
		}
	}
	return -1
}
