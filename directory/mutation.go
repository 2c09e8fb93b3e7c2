package directory

import (
	"fmt"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/fspath"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// checkNewName validates a name about to be inserted.
func checkNewName(op, name string) error {
	if err := fspath.ValidateName(name); err != nil {
		return pseudofs.NewError(op, name, fmt.Errorf("%w: %w", pseudofs.ErrInvalidArgs, err))
	}
	return nil
}

// checkName validates a name only used for lookup.
func checkName(op, name string) error {
	if len(name) > pseudofs.MaxNameLength {
		return pseudofs.NewError(op, name, pseudofs.ErrInvalidArgs)
	}
	return nil
}

// AddEntry inserts entry under name. Without overwrite an existing name
// fails with ErrAlreadyExists and nothing changes.
func (d *Simple) AddEntry(name string, entry pseudofs.DirectoryEntry, overwrite bool) error {
	if err := checkNewName(pseudofs.OpAdd, name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !overwrite && d.entries.has(name) {
		return pseudofs.NewError(pseudofs.OpAdd, name, pseudofs.ErrAlreadyExists)
	}
	d.entries.insert(name, entry)
	d.watchers.Send(pseudofs.EventAdded, name)
	return nil
}

// RemoveEntry removes and returns the entry under name. A missing name is
// not an error: it returns (nil, nil). With mustBeDirectory a non-directory
// entry fails with ErrNotDir and stays in place.
func (d *Simple) RemoveEntry(name string, mustBeDirectory bool) (pseudofs.DirectoryEntry, error) {
	if err := checkName(pseudofs.OpRemove, name); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries.get(name)
	if !ok {
		return nil, nil
	}
	if mustBeDirectory && entry.EntryInfo().Type != pseudofs.DirentDirectory {
		return nil, pseudofs.NewError(pseudofs.OpRemove, name, pseudofs.ErrNotDir)
	}
	d.entries.remove(name)
	d.watchers.Send(pseudofs.EventRemoved, name)
	return entry, nil
}

// RenameWithin moves src to dst, replacing whatever dst held. Watchers see
// removed(src) then added(dst), even when src == dst.
func (d *Simple) RenameWithin(src, dst string) error {
	if err := checkName(pseudofs.OpRename, src); err != nil {
		return err
	}
	if err := checkNewName(pseudofs.OpRename, dst); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries.get(src)
	if !ok {
		return pseudofs.NewError(pseudofs.OpRename, src, pseudofs.ErrNotFound)
	}
	d.watchers.Send(pseudofs.EventRemoved, src)
	d.watchers.Send(pseudofs.EventAdded, dst)
	if src == dst {
		return nil
	}
	d.entries.remove(src)
	d.entries.insert(dst, entry)
	return nil
}

// RenameFrom is the source half of a cross-directory rename. It hands the
// entry under src to `to` and, once that succeeds, removes src.
//
// `to` runs without this directory's lock held. If src was replaced while
// `to` ran, the new entry is left alone.
func (d *Simple) RenameFrom(src string, to func(entry pseudofs.DirectoryEntry) error) error {
	if err := checkName(pseudofs.OpRename, src); err != nil {
		return err
	}

	d.mu.Lock()
	entry, ok := d.entries.get(src)
	d.mu.Unlock()
	if !ok {
		return pseudofs.NewError(pseudofs.OpRename, src, pseudofs.ErrNotFound)
	}

	if err := to(entry); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.entries.get(src); !ok || !sameNode(cur, entry) {
		logger := util.GetLogger("Simple.RenameFrom")
		logger.Debug().Str("src", src).Msg("Source changed during rename, leaving it in place")
		return nil
	}
	d.entries.remove(src)
	d.watchers.Send(pseudofs.EventRemoved, src)
	return nil
}

// RenameTo is the destination half of a cross-directory rename. It obtains
// the entry from `from`, run without this directory's lock held, and
// stores it under dst.
func (d *Simple) RenameTo(dst string, from func() (pseudofs.DirectoryEntry, error)) error {
	if err := checkNewName(pseudofs.OpRename, dst); err != nil {
		return err
	}

	entry, err := from()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries.insert(dst, entry)
	d.watchers.Send(pseudofs.EventAdded, dst)
	return nil
}
