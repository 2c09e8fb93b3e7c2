package pseudofs

import "github.com/brettbedarf/pseudofs/fspath"

// InoUnknown marks an entry without a stable inode number.
const InoUnknown = ^uint64(0)

// DirentType is the coarse kind of an entry as reported in listings.
type DirentType uint8

const (
	DirentUnknown   DirentType = 0
	DirentDirectory DirentType = 4
	DirentFile      DirentType = 8
	DirentService   DirentType = 16
)

func (t DirentType) String() string {
	switch t {
	case DirentDirectory:
		return "directory"
	case DirentFile:
		return "file"
	case DirentService:
		return "service"
	default:
		return "unknown"
	}
}

// EntryInfo is the identity of an entry: its inode number and kind.
type EntryInfo struct {
	Inode uint64
	Type  DirentType
}

// NewEntryInfo is a convenience for composite literals in callers.
func NewEntryInfo(inode uint64, typ DirentType) EntryInfo {
	return EntryInfo{Inode: inode, Type: typ}
}

// DirectoryEntry is the minimal capability every node in the tree provides.
//
// Open either binds a connection to the entry itself (empty path) or
// delegates the remainder of path to a child. The responder is resolved
// exactly once on every path through Open.
type DirectoryEntry interface {
	Open(scope *ExecutionScope, flags OpenFlags, mode uint32, path fspath.Path, responder Responder)
	EntryInfo() EntryInfo
}

// Directory is a DirectoryEntry that can enumerate and be watched.
type Directory interface {
	DirectoryEntry

	// ReadDirents appends entries starting at pos until the sink is full or
	// the listing ends, and returns where the next call should resume.
	ReadDirents(pos TraversalPosition, sink DirentSink) (TraversalPosition, error)
	RegisterWatcher(scope *ExecutionScope, mask WatchMask, sink WatcherSink) (WatcherKey, error)
	UnregisterWatcher(key WatcherKey)
	GetAttrs() (NodeAttributes, error)
	Close() error
}

// MutableDirectory is a Directory whose contents can be changed by its owner.
type MutableDirectory interface {
	Directory

	AddEntry(name string, entry DirectoryEntry, overwrite bool) error
	RemoveEntry(name string, mustBeDirectory bool) (DirectoryEntry, error)
	RenameWithin(src, dst string) error
	RenameFrom(src string, to func(entry DirectoryEntry) error) error
	RenameTo(dst string, from func() (DirectoryEntry, error)) error
	GetEntry(name string) (DirectoryEntry, error)
}

// AttrGetter is implemented by leaves that report attributes.
type AttrGetter interface {
	GetAttrs() (NodeAttributes, error)
}
