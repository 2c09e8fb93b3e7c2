package directory

import (
	"errors"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/fspath"
)

// FileFactory makes the leaf for a file created on open.
type FileFactory func(name string, flags pseudofs.OpenFlags, mode uint32) (pseudofs.DirectoryEntry, error)

// TreeConstructor returns an entry constructor that fills in missing parts
// of a tree: intermediate segments and directory requests become mutable
// directories, and final file requests are passed to newFile. A nil
// newFile declines file creation.
func TreeConstructor(newFile FileFactory) pseudofs.EntryConstructor {
	return pseudofs.EntryConstructorFunc(func(_ *pseudofs.ExecutionScope, _ pseudofs.MutableDirectory, flags pseudofs.OpenFlags, mode uint32, name string, rest fspath.Path) (pseudofs.DirectoryEntry, error) {
		if !rest.IsEmpty() || rest.IsDir() || flags.Has(pseudofs.FlagDirectory) || mode&pseudofs.ModeTypeMask == pseudofs.ModeTypeDirectory {
			return NewMutable(), nil
		}
		if newFile == nil {
			return nil, pseudofs.ErrNotSupported
		}
		return newFile(name, flags, mode)
	})
}

// MkdirAll walks path from root and adds a mutable directory for every
// missing segment, like `mkdir -p`. It returns the last directory.
func MkdirAll(root pseudofs.MutableDirectory, path string) (pseudofs.MutableDirectory, error) {
	p, err := fspath.Validate(path)
	if err != nil {
		return nil, pseudofs.NewError(pseudofs.OpAdd, path, errors.Join(pseudofs.ErrInvalidArgs, err))
	}
	cur := root
	for _, name := range p.Segments() {
		next, err := childDir(cur, name)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func childDir(parent pseudofs.MutableDirectory, name string) (pseudofs.MutableDirectory, error) {
	for {
		entry, err := parent.GetEntry(name)
		if err == nil {
			dir, ok := entry.(pseudofs.MutableDirectory)
			if !ok {
				return nil, pseudofs.NewError(pseudofs.OpAdd, name, pseudofs.ErrNotDir)
			}
			return dir, nil
		}
		if !errors.Is(err, pseudofs.ErrNotFound) {
			return nil, err
		}

		dir := NewMutable()
		err = parent.AddEntry(name, dir, false)
		if err == nil {
			return dir, nil
		}
		// Lost a race with another creator; use theirs.
		if !errors.Is(err, pseudofs.ErrAlreadyExists) {
			return nil, err
		}
	}
}

// Lookup walks path from root through directories that expose GetEntry.
func Lookup(root pseudofs.MutableDirectory, path string) (pseudofs.DirectoryEntry, error) {
	p, err := fspath.Validate(path)
	if err != nil {
		return nil, pseudofs.NewError(pseudofs.OpLookup, path, errors.Join(pseudofs.ErrInvalidArgs, err))
	}
	var cur pseudofs.DirectoryEntry = root
	for _, name := range p.Segments() {
		dir, ok := cur.(pseudofs.MutableDirectory)
		if !ok {
			return nil, pseudofs.NewError(pseudofs.OpLookup, name, pseudofs.ErrNotDir)
		}
		if cur, err = dir.GetEntry(name); err != nil {
			return nil, err
		}
	}
	return cur, nil
}
