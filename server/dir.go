package server

import (
	"context"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/directory"
	"github.com/brettbedarf/pseudofs/internal/util"
	"github.com/brettbedarf/pseudofs/watcher"
)

// dirNode bridges a [pseudofs.Directory] to go-fuse. All operations go
// through a directory connection opened with the mount's rights.
type dirNode struct {
	fs.Inode
	srv *Server
	dir pseudofs.Directory

	once    sync.Once // Opens conn and starts the watch loop on first use
	conn    *directory.Connection
	connErr error
}

var (
	_ fs.NodeLookuper  = (*dirNode)(nil)
	_ fs.NodeGetattrer = (*dirNode)(nil)
	_ fs.NodeReaddirer = (*dirNode)(nil)
	_ fs.NodeMkdirer   = (*dirNode)(nil)
	_ fs.NodeCreater   = (*dirNode)(nil)
	_ fs.NodeUnlinker  = (*dirNode)(nil)
	_ fs.NodeRmdirer   = (*dirNode)(nil)
	_ fs.NodeRenamer   = (*dirNode)(nil)
)

func newDirNode(srv *Server, dir pseudofs.Directory) *dirNode {
	return &dirNode{srv: srv, dir: dir}
}

// connection lazily opens the node's directory connection. Nodes that
// go-fuse discards in favour of an existing inode never open one.
func (n *dirNode) connection() (*directory.Connection, error) {
	n.once.Do(func() {
		n.conn, n.connErr = n.open(n.srv.rights())
		if n.connErr != nil {
			return
		}
		n.startWatch()
	})
	return n.conn, n.connErr
}

func (n *dirNode) open(flags pseudofs.OpenFlags) (*directory.Connection, error) {
	conn, err := pseudofs.OpenPath(n.dir, n.srv.scope, flags|pseudofs.FlagDirectory, 0, ".")
	if err != nil {
		return nil, err
	}
	dc, ok := conn.(*directory.Connection)
	if !ok {
		conn.Close()
		return nil, pseudofs.ErrNotSupported
	}
	return dc, nil
}

// startWatch invalidates kernel dentries when the directory changes
// behind the mount's back.
func (n *dirNode) startWatch() {
	logger := util.GetLogger("dirNode.watch")
	sink := watcher.NewChannelSink(n.srv.cfg.WatchBufferSize)
	if _, err := n.conn.Watch(pseudofs.WatchAdded|pseudofs.WatchRemoved, sink); err != nil {
		logger.Debug().Err(err).Msg("Failed to watch directory")
		return
	}
	conn := n.conn
	started := n.srv.scope.Go(func(ctx context.Context) {
		defer conn.Close()
		defer sink.Close()
		notifyLoop(ctx, sink.Events(), &n.Inode)
	})
	if !started {
		sink.Close()
	}
}

// reference resolves name to its entry without opening it.
func (n *dirNode) reference(name string) (pseudofs.DirectoryEntry, error) {
	conn, err := n.connection()
	if err != nil {
		return nil, err
	}
	ref, err := conn.Open(pseudofs.FlagNodeReference, 0, name)
	if err != nil {
		return nil, err
	}
	defer ref.Close()
	return ref.Entry(), nil
}

// child returns the go-fuse inode for entry, creating it on first sight.
func (n *dirNode) child(ctx context.Context, entry pseudofs.DirectoryEntry, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	attrs, err := entryAttrs(entry)
	if err != nil {
		return nil, errno(err)
	}
	ino := n.srv.inodes.ino(entry)
	fillAttr(&out.Attr, attrs, ino)

	var node fs.InodeEmbedder
	mode := uint32(syscall.S_IFREG)
	if dir, ok := entry.(pseudofs.Directory); ok {
		node = newDirNode(n.srv, dir)
		mode = syscall.S_IFDIR
	} else {
		node = newFileNode(n.srv, entry)
	}
	return n.NewInode(ctx, node, fs.StableAttr{Mode: mode, Ino: ino}), fs.OK
}

func (n *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	logger := util.GetLogger("dirNode.Lookup")
	entry, err := n.reference(name)
	if err != nil {
		logger.Trace().Str("name", name).Err(err).Msg("Lookup failed")
		return nil, errno(err)
	}
	return n.child(ctx, entry, out)
}

func (n *dirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attrs, err := n.dir.GetAttrs()
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, attrs, n.srv.inodes.ino(n.dir))
	return fs.OK
}

func (n *dirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	logger := util.GetLogger("dirNode.Readdir")
	// A fresh connection so concurrent listings keep separate cursors
	conn, err := n.open(pseudofs.RightReadable)
	if err != nil {
		return nil, errno(err)
	}
	defer conn.Close()

	list, err := n.listEntries(ctx, conn)
	if err != nil {
		logger.Debug().Err(err).Msg("Readdir failed")
		return nil, errno(err)
	}
	return fs.NewListDirStream(list), fs.OK
}

// listEntries pages through the whole listing. "." is left to the kernel.
func (n *dirNode) listEntries(ctx context.Context, conn *directory.Connection) ([]fuse.DirEntry, error) {
	var list []fuse.DirEntry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := conn.ReadDirents(n.srv.cfg.DirentBufferSize)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return list, nil
		}
		for _, d := range page {
			if d.Name == "." {
				continue
			}
			ino := d.Info.Inode
			if ino == pseudofs.InoUnknown {
				entry, err := n.reference(d.Name)
				if err != nil {
					// removed since the page was read
					continue
				}
				ino = n.srv.inodes.ino(entry)
			}
			list = append(list, fuse.DirEntry{Name: d.Name, Ino: ino, Mode: direntMode(d.Info.Type)})
		}
	}
}

func (n *dirNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	conn, err := n.connection()
	if err != nil {
		return nil, errno(err)
	}
	flags := pseudofs.RightReadable | pseudofs.FlagCreateIfAbsent | pseudofs.FlagDirectory
	created, err := conn.Open(flags, pseudofs.ModeTypeDirectory|mode&0o7777, name)
	if err != nil {
		return nil, errno(err)
	}
	entry := created.Entry()
	created.Close()
	return n.child(ctx, entry, out)
}

func (n *dirNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	conn, err := n.connection()
	if err != nil {
		return nil, nil, 0, errno(err)
	}
	opened, err := conn.Open(toOpenFlags(flags|syscall.O_CREAT), pseudofs.ModeTypeFile|mode&0o7777, name)
	if err != nil {
		return nil, nil, 0, errno(err)
	}
	inode, e := n.child(ctx, opened.Entry(), out)
	if e != fs.OK {
		opened.Close()
		return nil, nil, 0, e
	}
	return inode, &fileHandle{conn: opened}, n.srv.openFlags(), fs.OK
}

func (n *dirNode) Unlink(ctx context.Context, name string) syscall.Errno {
	entry, err := n.reference(name)
	if err != nil {
		return errno(err)
	}
	if _, ok := entry.(pseudofs.Directory); ok {
		return syscall.EISDIR
	}
	return errno(n.conn.Unlink(name, false))
}

func (n *dirNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	entry, err := n.reference(name)
	if err != nil {
		return errno(err)
	}
	dir, ok := entry.(pseudofs.Directory)
	if !ok {
		return syscall.ENOTDIR
	}
	if !isEmpty(dir) {
		return syscall.ENOTEMPTY
	}
	return errno(n.conn.Unlink(name, true))
}

func (n *dirNode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	logger := util.GetLogger("dirNode.Rename")
	dst, ok := newParent.(*dirNode)
	if !ok {
		return syscall.EXDEV
	}
	const renameNoReplace, renameExchange = 1, 2
	if flags&renameExchange != 0 {
		return syscall.EINVAL
	}
	if flags&renameNoReplace != 0 {
		if _, err := dst.reference(newName); err == nil {
			return syscall.EEXIST
		}
	}

	conn, err := n.connection()
	if err != nil {
		return errno(err)
	}
	dstConn, err := dst.connection()
	if err != nil {
		return errno(err)
	}
	token, err := dstConn.GetToken()
	if err != nil {
		return errno(err)
	}
	if err := conn.Rename(name, token, newName); err != nil {
		logger.Debug().Str("src", name).Str("dst", newName).Err(err).Msg("Rename failed")
		return errno(err)
	}
	return fs.OK
}

// emptySink stops at the first name other than "."
type emptySink struct{ empty bool }

func (s *emptySink) Append(_ pseudofs.EntryInfo, name string) bool {
	if name == "." {
		return true
	}
	s.empty = false
	return false
}

func isEmpty(dir pseudofs.Directory) bool {
	sink := &emptySink{empty: true}
	if _, err := dir.ReadDirents(pseudofs.Start(), sink); err != nil {
		return false
	}
	return sink.empty
}
