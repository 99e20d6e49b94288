package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mpartel/queuefs/internal/jobqueue"
)

// watchFlushSignals installs the SIGUSR1/SIGUSR2 flush trigger described
// in the source's handle_sigusr: either signal flushes the queue.
//
// One deliberate omission versus the C original: handle_sigusr uses a
// SA_SIGINFO handler to recover the sending process's pid (info->si_pid)
// and, for SIGUSR2, replies to exactly that process once the flush
// completes, letting an external script block on its own SIGUSR2 until
// the queue drains. Go's os/signal API delivers signals as plain
// os.Signal values with no siginfo_t payload, so the sender's pid is not
// recoverable without cgo. Replying to this process's own pid instead
// would be actively wrong: this process already listens for SIGUSR2, so a
// self-reply would immediately re-trigger the handler and flush forever.
// The completion reply is therefore dropped rather than approximated;
// SIGUSR1/SIGUSR2 still both trigger a flush, just without the
// acknowledgement signal back to an external waiter.
func watchFlushSignals(queue *jobqueue.Handle) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigs:
				queue.Flush()
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
