package passthrough

import (
	"context"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Node is the single InodeEmbedder implementation backing every file and
// directory in the mirrored tree. It stores its own absolute path in the
// source directory directly (rather than reconstructing it from the
// kernel-visible inode tree on every call), the same approach the example
// pack's grailbio gfs filesystem takes for its nodes.
type Node struct {
	fs.Inode

	root *Root
	path string
}

func (n *Node) child(name string) *Node {
	return &Node{root: n.root, path: filepath.Join(n.path, name)}
}

func (n *Node) stableAttr(st *syscall.Stat_t) fs.StableAttr {
	return fs.StableAttr{
		Mode: uint32(st.Mode) & syscall.S_IFMT,
		Ino:  st.Ino,
	}
}

func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	var st syscall.Stat_t
	if err := syscall.Lstat(n.path, &st); err != nil {
		return fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)
	return fs.OK
}

func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	p := n.path

	if mode, ok := in.GetMode(); ok {
		if err := syscall.Chmod(p, mode); err != nil {
			return fs.ToErrno(err)
		}
	}

	uid32, uok := in.GetUID()
	gid32, gok := in.GetGID()
	if uok || gok {
		uid, gid := -1, -1
		if uok {
			uid = int(uid32)
		}
		if gok {
			gid = int(gid32)
		}
		if err := syscall.Lchown(p, uid, gid); err != nil {
			return fs.ToErrno(err)
		}
	}

	if size, ok := in.GetSize(); ok {
		if err := syscall.Truncate(p, int64(size)); err != nil {
			return fs.ToErrno(err)
		}
	}

	if mtime, ok := in.GetMTime(); ok {
		atime := mtime
		if a, ok := in.GetATime(); ok {
			atime = a
		}
		tv := []syscall.Timeval{
			syscall.NsecToTimeval(atime.UnixNano()),
			syscall.NsecToTimeval(mtime.UnixNano()),
		}
		if err := syscall.Utimes(p, tv); err != nil {
			return fs.ToErrno(err)
		}
	}

	var st syscall.Stat_t
	if err := syscall.Lstat(p, &st); err != nil {
		return fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)
	return fs.OK
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.child(name)

	var st syscall.Stat_t
	if err := syscall.Lstat(child.path, &st); err != nil {
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)

	return n.NewInode(ctx, child, n.stableAttr(&st)), fs.OK
}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := os.ReadDir(n.path)
	if err != nil {
		return nil, fs.ToErrno(err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		var mode uint32 = syscall.S_IFREG
		if e.IsDir() {
			mode = syscall.S_IFDIR
		} else if e.Type()&os.ModeSymlink != 0 {
			mode = syscall.S_IFLNK
		}
		list = append(list, fuse.DirEntry{Name: e.Name(), Mode: mode})
	}
	return fs.NewListDirStream(list), fs.OK
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.child(name)
	if err := syscall.Mkdir(child.path, mode); err != nil {
		return nil, fs.ToErrno(err)
	}

	var st syscall.Stat_t
	if err := syscall.Lstat(child.path, &st); err != nil {
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)
	return n.NewInode(ctx, child, n.stableAttr(&st)), fs.OK
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return fs.ToErrno(syscall.Unlink(n.child(name).path))
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return fs.ToErrno(syscall.Rmdir(n.child(name).path))
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.child(name)
	if err := syscall.Symlink(target, child.path); err != nil {
		return nil, fs.ToErrno(err)
	}

	var st syscall.Stat_t
	if err := syscall.Lstat(child.path, &st); err != nil {
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)
	return n.NewInode(ctx, child, n.stableAttr(&st)), fs.OK
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	buf := make([]byte, syscall.PathMax)
	sz, err := syscall.Readlink(n.path, buf)
	if err != nil {
		return nil, fs.ToErrno(err)
	}
	return buf[:sz], fs.OK
}

func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	targetNode, ok := target.(*Node)
	if !ok {
		return nil, syscall.EXDEV
	}
	child := n.child(name)
	if err := syscall.Link(targetNode.path, child.path); err != nil {
		return nil, fs.ToErrno(err)
	}

	var st syscall.Stat_t
	if err := syscall.Lstat(child.path, &st); err != nil {
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)
	return n.NewInode(ctx, child, n.stableAttr(&st)), fs.OK
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	newParentNode, ok := newParent.(*Node)
	if !ok {
		return syscall.EXDEV
	}
	oldPath := n.child(name).path
	newPath := newParentNode.child(newName).path
	return fs.ToErrno(syscall.Rename(oldPath, newPath))
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var st syscall.Statfs_t
	if err := syscall.Statfs(n.path, &st); err != nil {
		return fs.ToErrno(err)
	}
	out.Blocks = st.Blocks
	out.Bfree = st.Bfree
	out.Bavail = st.Bavail
	out.Files = st.Files
	out.Ffree = st.Ffree
	out.Bsize = uint32(st.Bsize)
	out.NameLen = uint32(st.Namelen)
	out.Frsize = uint32(st.Frsize)
	return fs.OK
}

func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fd, err := syscall.Open(n.path, int(flags), 0)
	if err != nil {
		return nil, 0, fs.ToErrno(err)
	}
	return newFileHandle(n, fd), 0, fs.OK
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child := n.child(name)
	fd, err := syscall.Open(child.path, int(flags)|syscall.O_CREAT, mode)
	if err != nil {
		return nil, nil, 0, fs.ToErrno(err)
	}

	var st syscall.Stat_t
	if err := syscall.Fstat(fd, &st); err != nil {
		syscall.Close(fd)
		return nil, nil, 0, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)

	inode := n.NewInode(ctx, child, n.stableAttr(&st))
	return inode, newFileHandle(child, fd), 0, fs.OK
}
