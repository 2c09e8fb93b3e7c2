// Package file provides in-memory file leaves for the pseudo tree.
package file

import (
	"bytes"
	"context"
	"sync"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/fspath"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// InitFunc produces the content of a lazily initialised file.
type InitFunc func(ctx context.Context) ([]byte, error)

// File is an in-memory file. Read-only files may be lazily initialised on
// first open; writable files grow up to their capacity.
type File struct {
	inode    uint64
	writable bool
	capacity uint64
	init     InitFunc

	mu      sync.RWMutex // Protects content and loaded
	content []byte
	loaded  bool
}

type Option func(*File)

func WithInode(ino uint64) Option {
	return func(f *File) { f.inode = ino }
}

// NewReadOnly returns a file serving a copy of content.
func NewReadOnly(content []byte, opts ...Option) *File {
	f := &File{inode: pseudofs.InoUnknown, content: bytes.Clone(content), loaded: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewReadWrite returns a writable file holding at most capacity bytes.
// The capacity is raised to fit the initial content.
func NewReadWrite(content []byte, capacity uint64, opts ...Option) *File {
	f := &File{
		inode:    pseudofs.InoUnknown,
		writable: true,
		capacity: max(capacity, uint64(len(content))),
		content:  bytes.Clone(content),
		loaded:   true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewLazy returns a read-only file whose content is produced by init on
// the first open that needs it. A failed init is retried on the next open.
func NewLazy(init InitFunc, opts ...Option) *File {
	f := &File{inode: pseudofs.InoUnknown, init: init}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *File) EntryInfo() pseudofs.EntryInfo {
	return pseudofs.EntryInfo{Inode: f.inode, Type: pseudofs.DirentFile}
}

// Writable reports whether the file accepts writes.
func (f *File) Writable() bool {
	return f.writable
}

func (f *File) GetAttrs() (pseudofs.NodeAttributes, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	size := uint64(len(f.content))
	storage := size
	if f.writable {
		storage = f.capacity
	}
	return pseudofs.NodeAttributes{
		Mode:        pseudofs.ModeTypeFile | pseudofs.RightsToPosixModeBits(true, f.writable, false),
		ID:          f.inode,
		ContentSize: size,
		StorageSize: storage,
		LinkCount:   1,
	}, nil
}

// Bytes returns a copy of the current content.
func (f *File) Bytes() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return bytes.Clone(f.content)
}

func (f *File) Open(scope *pseudofs.ExecutionScope, flags pseudofs.OpenFlags, mode uint32, path fspath.Path, responder pseudofs.Responder) {
	conn, err := f.open(scope, flags, mode, path)
	if err != nil {
		responder.Respond(nil, pseudofs.NewError(pseudofs.OpOpen, path.String(), err))
		return
	}
	responder.Respond(conn, nil)
}

func (f *File) open(scope *pseudofs.ExecutionScope, flags pseudofs.OpenFlags, mode uint32, path fspath.Path) (pseudofs.Connection, error) {
	if !path.IsEmpty() || path.IsDir() || flags.Has(pseudofs.FlagDirectory) {
		return nil, pseudofs.ErrNotDir
	}
	if t := mode & pseudofs.ModeTypeMask; t == pseudofs.ModeTypeDirectory {
		return nil, pseudofs.ErrNotDir
	}
	if flags.Has(pseudofs.FlagNodeReference) {
		return pseudofs.NewNodeReference(f, flags), nil
	}
	if !f.writable && flags.Any(pseudofs.RightWritable|pseudofs.FlagTruncate|pseudofs.FlagAppend) {
		return nil, pseudofs.ErrAccessDenied
	}
	if flags.Has(pseudofs.FlagTruncate) && !flags.Has(pseudofs.RightWritable) {
		return nil, pseudofs.ErrInvalidArgs
	}
	if err := f.load(scope.Context()); err != nil {
		return nil, err
	}
	if flags.Has(pseudofs.FlagTruncate) {
		f.mu.Lock()
		f.content = f.content[:0]
		f.mu.Unlock()
	}
	return &Connection{file: f, flags: flags}, nil
}

// load runs the init function once it succeeds.
func (f *File) load(ctx context.Context) error {
	f.mu.RLock()
	loaded := f.loaded
	f.mu.RUnlock()
	if loaded {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return nil
	}
	data, err := f.init(ctx)
	if err != nil {
		logger := util.GetLogger("File.load")
		logger.Debug().Err(err).Msg("Failed to initialise file content")
		return err
	}
	f.content = data
	f.loaded = true
	return nil
}

var (
	_ pseudofs.DirectoryEntry = (*File)(nil)
	_ pseudofs.AttrGetter     = (*File)(nil)
)
