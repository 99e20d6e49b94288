package jobqueue

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain intercepts the hidden supervisor re-exec token before the usual
// testing.Main runs: when this test binary is re-exec'd by Handle.Create
// (os.Executable() resolves to the compiled test binary under `go test`),
// it must behave as the supervisor rather than run the test suite again.
// This mirrors the well-established Go idiom for testing self-reexec code
// paths (e.g. Docker's reexec package structures its tests the same way).
func TestMain(m *testing.M) {
	if len(os.Args) > 0 && os.Args[len(os.Args)-1] == ReexecArg {
		os.Exit(RunSupervisor())
	}
	os.Exit(m.Run())
}

func waitsFor(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("operation did not complete within %s", d)
	}
}

// S1: create; flush. Flush returns promptly, no files created.
func TestScenarioEmptyFlush(t *testing.T) {
	h, err := Create(Settings{CmdTemplate: "true", MaxWorkers: 2, RetryWait: time.Millisecond})
	require.NoError(t, err)
	defer h.Destroy()

	waitsFor(t, 2*time.Second, h.Flush)
}

// S2: enqueue three files; flush; all three exist afterward.
func TestScenarioBasicBurst(t *testing.T) {
	dir := t.TempDir()
	h, err := Create(Settings{
		CmdTemplate: "sleep 0.05 && true && rm -f {} && touch {}",
		MaxWorkers:  2,
		RetryWait:   time.Millisecond,
	})
	require.NoError(t, err)
	defer h.Destroy()

	paths := []string{
		filepath.Join(dir, "a1"),
		filepath.Join(dir, "a2"),
		filepath.Join(dir, "a3"),
	}
	for _, p := range paths {
		h.AddFile(p)
	}
	waitsFor(t, 5*time.Second, h.Flush)

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, "expected %s to exist after flush", p)
	}
}

// S3: a path containing spaces round-trips through the wire protocol and
// command templating intact.
func TestScenarioPathWithSpaces(t *testing.T) {
	dir := t.TempDir()
	h, err := Create(Settings{
		CmdTemplate: "touch {}",
		MaxWorkers:  1,
		RetryWait:   time.Millisecond,
	})
	require.NoError(t, err)
	defer h.Destroy()

	path := filepath.Join(dir, "with spaces in name")
	h.AddFile(path)
	waitsFor(t, 5*time.Second, h.Flush)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// S4: a job that fails on its first attempt (because the file doesn't
// exist yet) is retried; a second flush after the precondition becomes
// true observes the retry succeed.
func TestScenarioRerunOnFailure(t *testing.T) {
	dir := t.TempDir()
	h, err := Create(Settings{
		CmdTemplate: "test -f {} && rm -f {}",
		MaxWorkers:  2,
		RetryWait:   time.Millisecond,
	})
	require.NoError(t, err)
	defer h.Destroy()

	path := filepath.Join(dir, "x")
	h.AddFile(path)
	waitsFor(t, 5*time.Second, h.Flush)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file must not exist yet; first attempt should have failed")

	require.NoError(t, os.WriteFile(path, nil, 0o644))

	waitsFor(t, 5*time.Second, h.Flush)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "retry should have removed the file")
}

// S5: with max_workers=2, six 200ms jobs cannot all run concurrently, so
// flushing them takes at least three dispatch rounds.
func TestScenarioConcurrencyCap(t *testing.T) {
	dir := t.TempDir()
	h, err := Create(Settings{
		CmdTemplate: "sleep 0.2",
		MaxWorkers:  2,
		RetryWait:   time.Millisecond,
	})
	require.NoError(t, err)
	defer h.Destroy()

	for i := 0; i < 6; i++ {
		h.AddFile(filepath.Join(dir, fmt.Sprintf("job-%d", i)))
	}

	start := time.Now()
	waitsFor(t, 10*time.Second, h.Flush)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 550*time.Millisecond,
		"6 jobs at 2 concurrent should take at least 3 rounds of ~0.2s")
}

// S6: destroying the handle does not wait for live worker children; it
// returns as soon as the supervisor itself exits.
func TestScenarioDestroyWithLiveChildren(t *testing.T) {
	h, err := Create(Settings{CmdTemplate: "sleep 10", MaxWorkers: 1, RetryWait: time.Millisecond})
	require.NoError(t, err)

	h.AddFile("/tmp/queuefs-test-irrelevant-path")
	// Give the supervisor a moment to dispatch the worker before destroying.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	var status int
	waitsFor(t, 2*time.Second, func() { status = h.Destroy() })
	elapsed := time.Since(start)

	assert.Equal(t, 0, status)
	assert.Less(t, elapsed, 2*time.Second, "destroy must not wait on the live worker")
}
