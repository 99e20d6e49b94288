package passthrough

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var (
	_ fs.FileHandle   = (*fileHandle)(nil)
	_ fs.FileReader   = (*fileHandle)(nil)
	_ fs.FileWriter   = (*fileHandle)(nil)
	_ fs.FileReleaser = (*fileHandle)(nil)
	_ fs.FileFsyncer  = (*fileHandle)(nil)
	_ fs.FileFlusher  = (*fileHandle)(nil)
)

// fileHandle is the open-file state returned by Node.Open/Node.Create: a
// raw descriptor on the underlying source file, plus enough information to
// drive the release→enqueue hook that is the entire reason this
// filesystem exists.
type fileHandle struct {
	node *Node
	fd   int
}

func newFileHandle(node *Node, fd int) *fileHandle {
	return &fileHandle{node: node, fd: fd}
}

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := syscall.Pread(h.fd, dest, off)
	if err != nil {
		return nil, fs.ToErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), fs.OK
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := syscall.Pwrite(h.fd, data, off)
	if err != nil {
		return 0, fs.ToErrno(err)
	}
	return uint32(n), fs.OK
}

func (h *fileHandle) Flush(ctx context.Context) syscall.Errno {
	// Mirror close-on-flush semantics closely enough for local
	// passthrough: dup the fd and close the dup, so multiple Flush calls
	// (one per close(2) on a dup'd descriptor) don't disturb the real fd
	// still owned by Release.
	newFd, err := syscall.Dup(h.fd)
	if err != nil {
		return fs.ToErrno(err)
	}
	return fs.ToErrno(syscall.Close(newFd))
}

func (h *fileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return fs.ToErrno(syscall.Fsync(h.fd))
}

// Release closes the descriptor and enqueues the file's absolute
// source-side path for asynchronous processing — the sole purpose of the
// FS layer. queuefs_release in the original source does this
// unconditionally on every release, regardless of how the file was
// opened, so this does the same.
func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	err := syscall.Close(h.fd)
	h.node.enqueueRelease()
	return fs.ToErrno(err)
}
