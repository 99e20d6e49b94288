package jobqueue

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	ierrors "github.com/mpartel/queuefs/internal/errors"
	"github.com/mpartel/queuefs/internal/log"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Handle is the front-end-side queue handle: settings, the supervisor's
// pid, the two pipe endpoints, and a mutex serializing AddFile/Flush/
// Destroy exactly as the source's JobQueue client struct does.
type Handle struct {
	mu       sync.Mutex
	settings Settings
	cmd      *exec.Cmd
	input    *os.File // write end of the command pipe
	output   *os.File // read end of the ack pipe
	logger   *log.Logger
}

// Create allocates the two pipes, re-execs the current binary into
// supervisor mode, and returns a ready-to-use Handle. It fails if the
// settings are invalid, the pipes cannot be created, or the supervisor
// process cannot be started — mirroring jobqueue_create's error paths.
func Create(settings Settings) (*Handle, error) {
	if err := settings.Validate(); err != nil {
		return nil, ierrors.Wrap(err)
	}

	cmdReadEnd, cmdWriteEnd, err := os.Pipe()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create command pipe")
	}
	ackReadEnd, ackWriteEnd, err := os.Pipe()
	if err != nil {
		cmdReadEnd.Close()
		cmdWriteEnd.Close()
		return nil, pkgerrors.Wrap(err, "create ack pipe")
	}

	exe, err := os.Executable()
	if err != nil {
		cmdReadEnd.Close()
		cmdWriteEnd.Close()
		ackReadEnd.Close()
		ackWriteEnd.Close()
		return nil, pkgerrors.Wrap(err, "locate current executable")
	}

	cmd := exec.Command(exe, ReexecArg)
	cmd.ExtraFiles = []*os.File{cmdReadEnd, ackWriteEnd}
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%s", envCmdTemplate, settings.CmdTemplate),
		fmt.Sprintf("%s=%d", envMaxWorkers, settings.MaxWorkers),
		fmt.Sprintf("%s=%d", envRetryWaitMS, settings.RetryWait.Milliseconds()),
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		cmdReadEnd.Close()
		cmdWriteEnd.Close()
		ackReadEnd.Close()
		ackWriteEnd.Close()
		return nil, pkgerrors.Wrap(err, "start supervisor process")
	}

	// The supervisor holds the other ends now; release ours.
	cmdReadEnd.Close()
	ackWriteEnd.Close()

	h := &Handle{
		settings: settings,
		cmd:      cmd,
		input:    cmdWriteEnd,
		output:   ackReadEnd,
		logger:   log.New(os.Stderr, "jobqueue"),
	}
	h.logger.Infof("job queue created; cmd_template=%q max_workers=%d pid=%d",
		settings.CmdTemplate, settings.MaxWorkers, cmd.Process.Pid)
	return h, nil
}

// AddFile enqueues path for asynchronous processing. It is thread-safe and
// fire-and-forget: no completion signal is expected. A write failure means
// the supervisor is gone, which is unrecoverable for this handle, so the
// process is aborted exactly as the source implementation's send_command
// does on a fatal pipe error.
func (h *Handle) AddFile(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := writeAll(h.input, encodeExec(path)); err != nil {
		fatal(h.logger, "writing EXEC command for %q: %v", path, err)
		return
	}
	h.logger.Infof("added to job queue: %s", path)
}

// Flush blocks until every unit queued before this call was observed by
// the supervisor has been attempted at least once.
func (h *Handle) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Infof("sending FLUSH command to job queue")
	if err := writeAll(h.input, encodeFlush()); err != nil {
		fatal(h.logger, "writing FLUSH command: %v", err)
		return
	}

	ack := make([]byte, 1)
	if _, err := io.ReadFull(h.output, ack); err != nil {
		fatal(h.logger, "reading flush acknowledgement: %v", err)
	}
}

// Destroy closes the command pipe (the supervisor's shutdown signal),
// waits for the supervisor process, and returns its exit status: the exit
// code for a normal exit, the negated signal number for a signal death, or
// the sentinel values jobqueue_destroy uses for an unexpected wait result
// (-1000, -2000). Running workers are not touched;
// they are orphaned to init.
func (h *Handle) Destroy() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.input.Close()
	h.output.Close()

	err := h.cmd.Wait()
	status := exitStatusOf(err)
	h.logger.Infof("job queue destroyed; status=%d", status)
	return status
}

func exitStatusOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return -int(status.Signal())
			}
			if status.Exited() {
				return status.ExitStatus()
			}
			return -1000
		}
	}
	return -2000
}

func writeAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// fatal logs an unrecoverable protocol error and terminates the process by
// signalling itself with SIGABRT, the direct equivalent of the source
// client's abort() on a broken supervisor pipe: the supervisor is
// essential, and losing it mid-protocol is not a recoverable condition for
// this process.
func fatal(logger *log.Logger, format string, args ...interface{}) {
	logger.Errorf(format, args...)
	_ = unix.Kill(os.Getpid(), unix.SIGABRT)
	os.Exit(1)
}
