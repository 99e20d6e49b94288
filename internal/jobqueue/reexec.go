package jobqueue

import (
	"fmt"
	"os"
	"strconv"
	"time"

	ierrors "github.com/mpartel/queuefs/internal/errors"
	"github.com/mpartel/queuefs/internal/log"
)

// ReexecArg is the hidden subcommand token a queuefs binary recognizes, on
// os.Args, as a request to become the supervisor rather than parse its
// normal CLI.
const ReexecArg = "__queuefs_jobqueue_supervisor__"

const (
	envCmdTemplate = "QUEUEFS_CMD_TEMPLATE"
	envMaxWorkers  = "QUEUEFS_MAX_WORKERS"
	envRetryWaitMS = "QUEUEFS_RETRY_WAIT_MS"
)

// RunSupervisor is the entry point of the re-exec'd supervisor process. It
// reads its settings from the environment (set by Create when launching
// this process) and its command pipe and ack pipe from file descriptors 3
// and 4, inherited via exec.Cmd.ExtraFiles.
func RunSupervisor() int {
	logger := log.New(os.Stderr, "queuefs-supervisor")

	cmdFD := os.NewFile(uintptr(3), "/proc/self/fd/3")
	if cmdFD == nil {
		logger.Errorf("command pipe (fd 3) not found")
		return 1
	}
	ackFD := os.NewFile(uintptr(4), "/proc/self/fd/4")
	if ackFD == nil {
		logger.Errorf("ack pipe (fd 4) not found")
		return 1
	}

	settings, err := settingsFromEnv()
	if err != nil {
		logger.Errorf("invalid supervisor settings: %v", err)
		return 1
	}

	logger.Infof("supervisor starting; cmd_template=%q max_workers=%d retry_wait=%s",
		settings.CmdTemplate, settings.MaxWorkers, settings.RetryWait)

	s := newSupervisor(settings, cmdFD, ackFD, logger)
	s.run()
	return 0
}

func settingsFromEnv() (Settings, error) {
	maxWorkers, err := strconv.Atoi(os.Getenv(envMaxWorkers))
	if err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", envMaxWorkers, err)
	}
	retryMS, err := strconv.Atoi(os.Getenv(envRetryWaitMS))
	if err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", envRetryWaitMS, err)
	}

	settings := Settings{
		CmdTemplate: os.Getenv(envCmdTemplate),
		MaxWorkers:  maxWorkers,
		RetryWait:   time.Duration(retryMS) * time.Millisecond,
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, ierrors.Wrap(err)
	}
	return settings, nil
}
