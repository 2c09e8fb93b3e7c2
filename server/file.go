package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// fileNode bridges any non-directory entry to go-fuse. Data access needs
// the connection the entry returns on open to implement io.ReaderAt or
// io.WriterAt.
type fileNode struct {
	fs.Inode
	srv   *Server
	entry pseudofs.DirectoryEntry
}

var (
	_ fs.NodeOpener    = (*fileNode)(nil)
	_ fs.NodeGetattrer = (*fileNode)(nil)
	_ fs.NodeSetattrer = (*fileNode)(nil)
	_ fs.NodeReader    = (*fileNode)(nil)
	_ fs.NodeWriter    = (*fileNode)(nil)
	_ fs.NodeReleaser  = (*fileNode)(nil)
)

func newFileNode(srv *Server, entry pseudofs.DirectoryEntry) *fileNode {
	return &fileNode{srv: srv, entry: entry}
}

// fileHandle is one open connection to a leaf.
type fileHandle struct {
	mu   sync.Mutex // Serialises Close against in-flight I/O
	conn pseudofs.Connection
}

// truncater is implemented by writable leaf connections
type truncater interface {
	Truncate(size uint64) error
}

func (s *Server) openFlags() uint32 {
	if s.cfg.DirectIO {
		return fuse.FOPEN_DIRECT_IO
	}
	return 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	logger := util.GetLogger("fileNode.Open")
	of := toOpenFlags(flags &^ syscall.O_CREAT)
	if n.srv.cfg.ReadOnly && of.Any(pseudofs.RightWritable|pseudofs.FlagTruncate|pseudofs.FlagAppend) {
		return nil, 0, syscall.EROFS
	}
	conn, err := pseudofs.OpenPath(n.entry, n.srv.scope, of, 0, ".")
	if err != nil {
		logger.Trace().Str("flags", of.String()).Err(err).Msg("Open failed")
		return nil, 0, errno(err)
	}
	return &fileHandle{conn: conn}, n.srv.openFlags(), fs.OK
}

func (n *fileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	var (
		attrs pseudofs.NodeAttributes
		err   error
	)
	if fh, ok := f.(*fileHandle); ok {
		if g, ok := fh.conn.(pseudofs.AttrGetter); ok {
			attrs, err = g.GetAttrs()
		} else {
			attrs, err = entryAttrs(n.entry)
		}
	} else {
		attrs, err = entryAttrs(n.entry)
	}
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, attrs, n.srv.inodes.ino(n.entry))
	return fs.OK
}

func (n *fileNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if e := n.truncate(f, size); e != fs.OK {
			return e
		}
	}
	return n.Getattr(ctx, f, out)
}

// truncate resizes through the open handle, or a short-lived writable
// connection when the kernel passes none.
func (n *fileNode) truncate(f fs.FileHandle, size uint64) syscall.Errno {
	if n.srv.cfg.ReadOnly {
		return syscall.EROFS
	}
	var conn pseudofs.Connection
	if fh, ok := f.(*fileHandle); ok {
		fh.mu.Lock()
		defer fh.mu.Unlock()
		conn = fh.conn
	} else {
		c, err := pseudofs.OpenPath(n.entry, n.srv.scope, pseudofs.RightWritable, 0, ".")
		if err != nil {
			return errno(err)
		}
		defer c.Close()
		conn = c
	}
	t, ok := conn.(truncater)
	if !ok {
		return syscall.ENOTSUP
	}
	return errno(t.Truncate(size))
}

func (n *fileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fh, ok := f.(*fileHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	r, ok := fh.conn.(io.ReaderAt)
	if !ok {
		return nil, syscall.ENOTSUP
	}
	cnt, err := r.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errno(err)
	}
	return fuse.ReadResultData(dest[:cnt]), fs.OK
}

func (n *fileNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	fh, ok := f.(*fileHandle)
	if !ok {
		return 0, syscall.EBADF
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	w, ok := fh.conn.(io.WriterAt)
	if !ok {
		return 0, syscall.ENOTSUP
	}
	cnt, err := w.WriteAt(data, off)
	if err != nil && cnt == 0 {
		return 0, errno(err)
	}
	return uint32(cnt), fs.OK
}

func (n *fileNode) Release(ctx context.Context, f fs.FileHandle) syscall.Errno {
	fh, ok := f.(*fileHandle)
	if !ok {
		return fs.OK
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return errno(fh.conn.Close())
}
