package server

import (
	"sync/atomic"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/pseudofs"
)

// allocBase is where allocated inode numbers start, leaving the low range
// for entries that carry their own inode.
const allocBase = 1 << 32

// inodeTable gives every entry a stable inode number for the life of the
// mount. Entries with a known inode keep it; the rest are allocated on
// first sight.
//
// TODO: drop numbers of entries the kernel has forgotten and that are no
// longer linked anywhere; today they live until unmount.
type inodeTable struct {
	lastIno atomic.Uint64
	byEntry *xsync.Map[pseudofs.DirectoryEntry, uint64]
}

func newInodeTable(root pseudofs.DirectoryEntry) *inodeTable {
	t := &inodeTable{byEntry: xsync.NewMap[pseudofs.DirectoryEntry, uint64]()}
	t.lastIno.Store(allocBase)
	t.byEntry.Store(root, fuse.FUSE_ROOT_ID)
	return t
}

// ino retrieves or allocates the entry's inode number; safe for concurrent use.
func (t *inodeTable) ino(entry pseudofs.DirectoryEntry) uint64 {
	// fast path
	if id, ok := t.byEntry.Load(entry); ok {
		return id
	}
	id := entry.EntryInfo().Inode
	if id == pseudofs.InoUnknown || id == 0 {
		id = t.lastIno.Add(1)
	}
	// someone else may have won the race; theirs is kept
	actual, _ := t.byEntry.LoadOrStore(entry, id)
	return actual
}

func (t *inodeTable) len() int {
	return t.byEntry.Size()
}
