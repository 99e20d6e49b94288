// Command queuefs mirrors a source directory at a mountpoint through FUSE
// and enqueues a shell command, parameterized by a file's absolute path,
// every time that file is released after being opened through the mount.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	ierrors "github.com/mpartel/queuefs/internal/errors"
	"github.com/mpartel/queuefs/internal/jobqueue"
	"github.com/mpartel/queuefs/internal/log"
	"github.com/mpartel/queuefs/internal/passthrough"
)

var logger = log.New(os.Stderr, "queuefs")

func main() {
	// Before any flag parsing happens, check whether this invocation is
	// the hidden supervisor re-exec rather than a normal CLI call.
	if len(os.Args) > 1 && os.Args[len(os.Args)-1] == jobqueue.ReexecArg {
		os.Exit(jobqueue.RunSupervisor())
	}

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var maxWorkers int
	var retryWait time.Duration
	var allowOther bool
	var defaultPermissions bool
	var nonEmpty bool
	var debug bool

	exitCode := 1

	cmd := &cobra.Command{
		Use:          "queuefs [flags] <src-dir> <mount-point> <command...>",
		Short:        "Passthrough FUSE filesystem that queues a command on every file release",
		Args:         cobra.MinimumNArgs(3),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, positional []string) error {
			code, err := mountAndServe(mountArgs{
				srcDir:             positional[0],
				mountPoint:         positional[1],
				cmdTemplate:        strings.Join(positional[2:], " "),
				maxWorkers:         maxWorkers,
				retryWait:          retryWait,
				allowOther:         allowOther,
				defaultPermissions: defaultPermissions,
				nonEmpty:           nonEmpty,
				debug:              debug,
			})
			exitCode = code
			return err
		},
	}

	// max_workers defaults to 100 to match the source's queuefs.c main().
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 100, "maximum number of concurrent worker processes")
	cmd.Flags().DurationVar(&retryWait, "retry-wait", time.Second, "delay before retrying a failed job")
	cmd.Flags().BoolVar(&allowOther, "allow-other", true, "pass allow_other to the kernel mount")
	cmd.Flags().BoolVar(&defaultPermissions, "default-permissions", true, "pass default_permissions to the kernel mount")
	cmd.Flags().BoolVar(&nonEmpty, "nonempty", true, "allow mounting over a nonempty directory")
	cmd.Flags().BoolVar(&debug, "debug", false, "log FUSE protocol traffic")
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		if exitCode == 0 {
			exitCode = 1
		}
		return exitCode
	}
	return exitCode
}

type mountArgs struct {
	srcDir, mountPoint, cmdTemplate string
	maxWorkers                      int
	retryWait                       time.Duration
	allowOther                      bool
	defaultPermissions              bool
	nonEmpty                        bool
	debug                           bool
}

func mountAndServe(a mountArgs) (int, error) {
	srcDir, err := filepath.Abs(a.srcDir)
	if err != nil {
		return 1, fmt.Errorf("resolve source directory: %w", err)
	}
	if fh, err := os.Open(srcDir); err != nil {
		return 1, fmt.Errorf("open source directory: %w", err)
	} else {
		fh.Close()
	}

	settings := jobqueue.Settings{
		CmdTemplate: a.cmdTemplate,
		MaxWorkers:  a.maxWorkers,
		RetryWait:   a.retryWait,
	}
	if err := settings.Validate(); err != nil {
		return 1, ierrors.Wrap(err)
	}

	// Clear the inherited umask so newly created files get exactly the
	// permissions the caller requested, matching queuefs.c main()'s
	// umask(0) call.
	prevUmask := unix.Umask(0)
	defer unix.Umask(prevUmask)

	queue, err := jobqueue.Create(settings)
	if err != nil {
		return 1, fmt.Errorf("create job queue: %w", err)
	}

	root := &passthrough.Root{
		SourceDir: srcDir,
		Queue:     queue,
		Logger:    logger,
	}

	server, err := passthrough.Mount(a.mountPoint, root, passthrough.MountOptions{
		AllowOther:        a.allowOther,
		DefaultPermission: a.defaultPermissions,
		NonEmpty:          a.nonEmpty,
		Debug:             a.debug,
	})
	if err != nil {
		queue.Destroy()
		return 1, fmt.Errorf("mount: %w", err)
	}

	stopSignals := watchFlushSignals(queue)
	defer stopSignals()

	server.Wait()

	status := queue.Destroy()
	if status != 0 {
		return 1, nil
	}
	return 0, nil
}
