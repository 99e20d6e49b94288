package passthrough

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// MountOptions configures the FUSE mount. AllowOther, DefaultPermission
// and NonEmpty mirror the defaults queuefs.c's main() passes to
// fuse_main (`-oallow_other -odefault_permissions -ononempty`), gated
// behind a flag rather than unconditional so an operator without
// permission to use allow_other can still run the filesystem.
type MountOptions struct {
	AllowOther        bool
	DefaultPermission bool
	NonEmpty          bool
	Debug             bool
}

// Mount starts serving root at mountpoint and returns the running FUSE
// server. Call server.Wait() to block until the filesystem is unmounted.
func Mount(mountpoint string, root *Root, opts MountOptions) (*fuse.Server, error) {
	var extra []string
	if opts.DefaultPermission {
		extra = append(extra, "default_permissions")
	}
	if opts.NonEmpty {
		extra = append(extra, "nonempty")
	}

	entryTimeout := time.Second
	attrTimeout := time.Second

	fsOpts := &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug,
			Options:    extra,
			FsName:     "queuefs",
			Name:       "queuefs",
		},
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
	}

	return fs.Mount(mountpoint, NewRootNode(root), fsOpts)
}
