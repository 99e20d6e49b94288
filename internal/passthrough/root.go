// Package passthrough implements the FUSE front-end: a mirror of a source
// directory that enqueues a job for every released file handle, whatever
// mode the file was opened in. It is built on the high-level node API
// of github.com/hanwen/go-fuse/v2/fs, the library family the example pack's
// own rclone mount commands depend on.
package passthrough

import (
	"github.com/hanwen/go-fuse/v2/fs"

	"github.com/mpartel/queuefs/internal/jobqueue"
	"github.com/mpartel/queuefs/internal/log"
)

// Root holds the state shared by every node in the mounted tree: the
// absolute source directory being mirrored and the job queue handle that
// Release hooks enqueue into.
type Root struct {
	SourceDir string
	Queue     *jobqueue.Handle
	Logger    *log.Logger
}

// NewRootNode builds the InodeEmbedder to pass to fs.Mount.
func NewRootNode(root *Root) fs.InodeEmbedder {
	return &Node{root: root, path: root.SourceDir}
}

var _ fs.InodeEmbedder = (*Node)(nil)
var _ fs.NodeGetattrer = (*Node)(nil)
var _ fs.NodeSetattrer = (*Node)(nil)
var _ fs.NodeLookuper = (*Node)(nil)
var _ fs.NodeReaddirer = (*Node)(nil)
var _ fs.NodeOpener = (*Node)(nil)
var _ fs.NodeCreater = (*Node)(nil)
var _ fs.NodeMkdirer = (*Node)(nil)
var _ fs.NodeUnlinker = (*Node)(nil)
var _ fs.NodeRmdirer = (*Node)(nil)
var _ fs.NodeSymlinker = (*Node)(nil)
var _ fs.NodeLinker = (*Node)(nil)
var _ fs.NodeRenamer = (*Node)(nil)
var _ fs.NodeReadlinker = (*Node)(nil)
var _ fs.NodeStatfser = (*Node)(nil)

// enqueueRelease reconstructs nothing extra: a Node already stores its
// absolute source-side path, so the Release hook (spec §4.7) just forwards
// it to the job queue.
func (n *Node) enqueueRelease() {
	n.root.Queue.AddFile(n.path)
}
