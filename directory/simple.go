// Package directory implements the in-memory pseudo directory: an ordered,
// lock-protected table of named entries that can be opened through,
// enumerated, watched and mutated by its owner.
package directory

import (
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/watcher"
)

// NotFoundHandler is told the name that failed to resolve in a directory.
// It is only for diagnostics and runs with no directory lock held.
type NotFoundHandler func(name string)

// Simple is a directory whose entries are managed by its owner through the
// [pseudofs.MutableDirectory] methods. The personality chosen at
// construction decides whether clients may mutate it through connections.
//
// A Simple may contain itself or be reachable through several parents;
// entries are shared references.
type Simple struct {
	inode   uint64
	mutable bool

	mu       sync.Mutex // Protects entries and watchers
	entries  entryMap
	watchers *watcher.Registry

	notFound atomic.Pointer[NotFoundHandler]
}

type Option func(*Simple)

// WithInode sets the inode reported by EntryInfo and GetAttrs.
func WithInode(ino uint64) Option {
	return func(d *Simple) { d.inode = ino }
}

func WithNotFoundHandler(fn NotFoundHandler) Option {
	return func(d *Simple) { d.SetNotFoundHandler(fn) }
}

// NewMutable returns a directory clients may modify through connections.
func NewMutable(opts ...Option) *Simple {
	return newSimple(true, opts)
}

// NewImmutable returns a directory only its owner may modify.
func NewImmutable(opts ...Option) *Simple {
	return newSimple(false, opts)
}

func newSimple(mutable bool, opts []Option) *Simple {
	d := &Simple{
		inode:    pseudofs.InoUnknown,
		mutable:  mutable,
		entries:  newEntryMap(),
		watchers: watcher.NewRegistry(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsMutable reports the client-facing personality.
func (d *Simple) IsMutable() bool {
	return d.mutable
}

func (d *Simple) EntryInfo() pseudofs.EntryInfo {
	return pseudofs.EntryInfo{Inode: d.inode, Type: pseudofs.DirentDirectory}
}

// SetNotFoundHandler replaces the handler; nil removes it.
func (d *Simple) SetNotFoundHandler(fn NotFoundHandler) {
	if fn == nil {
		d.notFound.Store(nil)
		return
	}
	d.notFound.Store(&fn)
}

func (d *Simple) notifyNotFound(name string) {
	if fn := d.notFound.Load(); fn != nil {
		(*fn)(name)
	}
}

// Len returns the number of entries.
func (d *Simple) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries.len()
}

// Names returns the entry names in listing order.
func (d *Simple) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries.names()
}

func (d *Simple) GetEntry(name string) (pseudofs.DirectoryEntry, error) {
	if len(name) > pseudofs.MaxNameLength {
		return nil, pseudofs.NewError(pseudofs.OpLookup, name, pseudofs.ErrInvalidArgs)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.entries.get(name); ok {
		return entry, nil
	}
	return nil, pseudofs.NewError(pseudofs.OpLookup, name, pseudofs.ErrNotFound)
}

// ReadDirents lists "." and then every entry in name order, starting at pos.
// When the sink fills up the returned position names the first entry that
// did not fit, so a later call resumes there.
func (d *Simple) ReadDirents(pos pseudofs.TraversalPosition, sink pseudofs.DirentSink) (pseudofs.TraversalPosition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	from := ""
	switch {
	case pos.IsEnd():
		return pseudofs.End(), nil
	case pos.IsStart():
		if !sink.Append(d.EntryInfo(), ".") {
			return pseudofs.Start(), nil
		}
	default:
		from, _ = pos.Name()
	}

	next := pseudofs.End()
	d.entries.ascendFrom(from, func(name string, entry pseudofs.DirectoryEntry) bool {
		if !sink.Append(entry.EntryInfo(), name) {
			next = pseudofs.AtName(name)
			return false
		}
		return true
	})
	return next, nil
}

// RegisterWatcher subscribes sink. The existing names, "." first, and the
// idle marker are delivered before any later event.
func (d *Simple) RegisterWatcher(_ *pseudofs.ExecutionScope, mask pseudofs.WatchMask, sink pseudofs.WatcherSink) (pseudofs.WatcherKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := append([]string{"."}, d.entries.names()...)
	key, ctl := d.watchers.Add(mask, sink)
	ctl.SendExisting(names)
	return key, nil
}

func (d *Simple) UnregisterWatcher(key pseudofs.WatcherKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watchers.Remove(key)
}

// WatcherCount returns the number of live subscriptions.
func (d *Simple) WatcherCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.watchers.Len()
}

func (d *Simple) GetAttrs() (pseudofs.NodeAttributes, error) {
	return pseudofs.NodeAttributes{
		Mode:      pseudofs.ModeTypeDirectory | pseudofs.RightsToPosixModeBits(true, d.mutable, true),
		ID:        d.inode,
		LinkCount: 1,
	}, nil
}

func (d *Simple) Close() error {
	return nil
}

var _ pseudofs.MutableDirectory = (*Simple)(nil)
