package directory

import (
	"errors"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/fspath"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// Open resolves path one segment at a time. The next segment is looked up
// (or created) under the lock, the lock is released, and the remainder is
// handed to the child. An empty path binds a connection to d itself.
func (d *Simple) Open(scope *pseudofs.ExecutionScope, flags pseudofs.OpenFlags, mode uint32, path fspath.Path, responder pseudofs.Responder) {
	name, rest, ok := path.Next()
	if !ok {
		d.openSelf(scope, flags, mode, responder)
		return
	}

	entry, err := d.getOrInsert(scope, flags, mode, name, rest)
	if err != nil {
		logger := util.GetLogger("Simple.Open")
		logger.Trace().Err(err).Str("path", path.String()).Str("flags", flags.String()).Msg("Open failed to resolve")
		responder.Respond(nil, err)
		d.notifyNotFound(name)
		return
	}
	entry.Open(scope, flags, mode, rest, responder)
}

func (d *Simple) openSelf(scope *pseudofs.ExecutionScope, flags pseudofs.OpenFlags, mode uint32, responder pseudofs.Responder) {
	if flags.Has(pseudofs.FlagNodeReference) {
		responder.Respond(pseudofs.NewNodeReference(d, flags), nil)
		return
	}
	conn, err := NewConnection(scope, d, flags, mode, d.mutable)
	if err != nil {
		responder.Respond(nil, pseudofs.NewError(pseudofs.OpOpen, ".", err))
		return
	}
	responder.Respond(conn, nil)
}

// getOrInsert returns the entry for name, creating it through the scope's
// entry constructor when the open asks for creation.
func (d *Simple) getOrInsert(scope *pseudofs.ExecutionScope, flags pseudofs.OpenFlags, mode uint32, name string, rest fspath.Path) (pseudofs.DirectoryEntry, error) {
	if err := checkName(pseudofs.OpOpen, name); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.entries.get(name); ok {
		if rest.IsEmpty() && flags.Has(pseudofs.FlagCreateIfAbsent) {
			return nil, pseudofs.NewError(pseudofs.OpOpen, name, pseudofs.ErrAlreadyExists)
		}
		return entry, nil
	}

	if !flags.Has(pseudofs.FlagCreate) {
		return nil, pseudofs.NewError(pseudofs.OpOpen, name, pseudofs.ErrNotFound)
	}
	if !d.mutable {
		return nil, pseudofs.NewError(pseudofs.OpOpen, name, pseudofs.ErrNotSupported)
	}
	ctor := scope.EntryConstructor()
	if ctor == nil {
		return nil, pseudofs.NewError(pseudofs.OpOpen, name, pseudofs.ErrNotFound)
	}
	entry, err := ctor.CreateEntry(scope, d, flags, mode, name, rest)
	if err != nil {
		if errors.Is(err, pseudofs.ErrNotSupported) {
			return nil, pseudofs.NewError(pseudofs.OpOpen, name, pseudofs.ErrNotFound)
		}
		return nil, pseudofs.NewError(pseudofs.OpConstruct, name, err)
	}
	d.entries.insert(name, entry)
	d.watchers.Send(pseudofs.EventAdded, name)
	return entry, nil
}
