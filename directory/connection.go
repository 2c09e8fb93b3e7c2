package directory

import (
	"fmt"
	"slices"
	"sync"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/fspath"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// DefaultDirentBufferSize is the listing budget used when callers pass 0.
const DefaultDirentBufferSize = 8192

// Connection is a client handle on a directory. It keeps the listing cursor
// between ReadDirents calls and owns the watchers it registered.
//
// The mutable personality allows Unlink, Rename and GetToken when the
// connection also holds RightWritable.
type Connection struct {
	scope   *pseudofs.ExecutionScope
	dir     pseudofs.Directory
	flags   pseudofs.OpenFlags
	mutable bool

	mu       sync.Mutex // Protects pos, watchers and closed
	pos      pseudofs.TraversalPosition
	watchers []pseudofs.WatcherKey
	closed   bool
}

// NewConnection validates flags and mode for a directory open and binds a
// connection to dir.
func NewConnection(scope *pseudofs.ExecutionScope, dir pseudofs.Directory, flags pseudofs.OpenFlags, mode uint32, mutable bool) (*Connection, error) {
	if flags.Has(pseudofs.FlagNotDirectory) {
		return nil, pseudofs.ErrNotFile
	}
	if flags.Any(pseudofs.FlagTruncate | pseudofs.FlagAppend) {
		return nil, pseudofs.ErrInvalidArgs
	}
	if t := mode & pseudofs.ModeTypeMask; t != 0 && t != pseudofs.ModeTypeDirectory {
		return nil, pseudofs.ErrNotFile
	}
	return &Connection{
		scope:   scope,
		dir:     dir,
		flags:   flags,
		mutable: mutable,
		pos:     pseudofs.Start(),
	}, nil
}

func (c *Connection) Entry() pseudofs.DirectoryEntry { return c.dir }
func (c *Connection) Flags() pseudofs.OpenFlags      { return c.flags }

// Directory returns the directory this connection is bound to.
func (c *Connection) Directory() pseudofs.Directory { return c.dir }

// ReadDirents returns the next batch of entries that fit in maxBytes. An
// empty batch with a nil error means the listing is exhausted.
func (c *Connection) ReadDirents(maxBytes int) ([]Dirent, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultDirentBufferSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, pseudofs.NewError(pseudofs.OpReadDir, "", pseudofs.ErrBadState)
	}
	if c.pos.IsEnd() {
		return nil, nil
	}

	sink := NewBufferSink(maxBytes)
	pos, err := c.dir.ReadDirents(c.pos, sink)
	if err != nil {
		return nil, pseudofs.NewError(pseudofs.OpReadDir, "", err)
	}
	if sink.Len() == 0 && !pos.IsEnd() {
		return nil, pseudofs.NewError(pseudofs.OpReadDir, "", pseudofs.ErrBufferTooSmall)
	}
	c.pos = pos
	return sink.Entries(), nil
}

// Rewind restarts the listing from the beginning.
func (c *Connection) Rewind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = pseudofs.Start()
}

// Watch subscribes sink to the directory. The subscription ends with
// Unwatch or Close.
func (c *Connection) Watch(mask pseudofs.WatchMask, sink pseudofs.WatcherSink) (pseudofs.WatcherKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, pseudofs.NewError(pseudofs.OpWatch, "", pseudofs.ErrBadState)
	}
	key, err := c.dir.RegisterWatcher(c.scope, mask, sink)
	if err != nil {
		return 0, pseudofs.NewError(pseudofs.OpWatch, "", err)
	}
	c.watchers = append(c.watchers, key)
	return key, nil
}

func (c *Connection) Unwatch(key pseudofs.WatcherKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir.UnregisterWatcher(key)
	c.watchers = slices.DeleteFunc(c.watchers, func(k pseudofs.WatcherKey) bool { return k == key })
}

func (c *Connection) GetAttrs() (pseudofs.NodeAttributes, error) {
	return c.dir.GetAttrs()
}

// mutableDir returns the directory for a mutating operation, checking the
// personality and rights of the connection.
func (c *Connection) mutableDir(op string) (pseudofs.MutableDirectory, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, pseudofs.NewError(op, "", pseudofs.ErrBadState)
	}
	if !c.mutable {
		return nil, pseudofs.NewError(op, "", pseudofs.ErrNotSupported)
	}
	if !c.flags.Has(pseudofs.RightWritable) {
		return nil, pseudofs.NewError(op, "", pseudofs.ErrAccessDenied)
	}
	md, ok := c.dir.(pseudofs.MutableDirectory)
	if !ok {
		return nil, pseudofs.NewError(op, "", pseudofs.ErrNotSupported)
	}
	return md, nil
}

// GetToken returns the token other connections use to name this directory
// as a rename destination.
func (c *Connection) GetToken() (pseudofs.Token, error) {
	md, err := c.mutableDir(pseudofs.OpGetToken)
	if err != nil {
		return pseudofs.Token{}, err
	}
	registry := c.scope.TokenRegistry()
	if registry == nil {
		return pseudofs.Token{}, pseudofs.NewError(pseudofs.OpGetToken, "", pseudofs.ErrNotSupported)
	}
	return registry.GetToken(md)
}

// Unlink removes name. ErrNotFound if it does not exist.
func (c *Connection) Unlink(name string, mustBeDirectory bool) error {
	md, err := c.mutableDir(pseudofs.OpUnlink)
	if err != nil {
		return err
	}
	if err := fspath.ValidateName(name); err != nil {
		return pseudofs.NewError(pseudofs.OpUnlink, name, fmt.Errorf("%w: %w", pseudofs.ErrInvalidArgs, err))
	}
	entry, err := md.RemoveEntry(name, mustBeDirectory)
	if err != nil {
		return err
	}
	if entry == nil {
		return pseudofs.NewError(pseudofs.OpUnlink, name, pseudofs.ErrNotFound)
	}
	return nil
}

// Rename moves src in this directory to dst in the directory named by
// dstToken. Within one directory this is a single locked step; across
// directories it is a two-phase handoff that is not atomic.
func (c *Connection) Rename(src string, dstToken pseudofs.Token, dst string) error {
	srcDir, err := c.mutableDir(pseudofs.OpRename)
	if err != nil {
		return err
	}
	for _, name := range []string{src, dst} {
		if err := fspath.ValidateName(name); err != nil {
			return pseudofs.NewError(pseudofs.OpRename, name, fmt.Errorf("%w: %w", pseudofs.ErrInvalidArgs, err))
		}
	}
	registry := c.scope.TokenRegistry()
	if registry == nil {
		return pseudofs.NewError(pseudofs.OpRename, src, pseudofs.ErrNotSupported)
	}
	dstDir, ok := registry.Lookup(dstToken)
	if !ok {
		return pseudofs.NewError(pseudofs.OpRename, dst, pseudofs.ErrNotFound)
	}

	if sameNode(srcDir, dstDir) {
		return srcDir.RenameWithin(src, dst)
	}
	return srcDir.RenameFrom(src, func(entry pseudofs.DirectoryEntry) error {
		return dstDir.RenameTo(dst, func() (pseudofs.DirectoryEntry, error) {
			return entry, nil
		})
	})
}

// Open opens path relative to this directory. Requested rights may not
// exceed the rights of the connection, and creation needs RightWritable.
func (c *Connection) Open(flags pseudofs.OpenFlags, mode uint32, path string) (pseudofs.Connection, error) {
	if extra := flags & pseudofs.RightsMask &^ c.flags; extra != 0 {
		return nil, pseudofs.NewError(pseudofs.OpOpen, path, pseudofs.ErrAccessDenied)
	}
	if flags.Any(pseudofs.FlagCreate|pseudofs.FlagCreateIfAbsent) && !c.flags.Has(pseudofs.RightWritable) {
		return nil, pseudofs.NewError(pseudofs.OpOpen, path, pseudofs.ErrAccessDenied)
	}
	return pseudofs.OpenPath(c.dir, c.scope, flags, mode, path)
}

// Close unregisters every watcher this connection created. Closing twice
// is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, key := range c.watchers {
		c.dir.UnregisterWatcher(key)
	}
	logger := util.GetLogger("Connection.Close")
	logger.Trace().Int("watchers", len(c.watchers)).Msg("Directory connection closed")
	c.watchers = nil
	return c.dir.Close()
}

var _ pseudofs.Connection = (*Connection)(nil)
