package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/directory"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// EntryFactory builds a leaf from a raw source definition; *adapters.Registry
// satisfies it.
type EntryFactory interface {
	NewEntry(raw []byte) (pseudofs.DirectoryEntry, error)
}

// BuildResult counts what Build added.
type BuildResult struct {
	Dirs  int
	Files int
	Links int
}

// Build adds defs to root in order. Directory definitions behave like
// `mkdir -p`; file and link definitions create their parents as needed and
// fail if the name already exists. Every failing definition is reported in
// the joined error, and the rest are still applied.
func Build(root pseudofs.MutableDirectory, defs []NodeDefDTO, factory EntryFactory) (BuildResult, error) {
	logger := util.GetLogger("Build")
	var res BuildResult
	var errs []error
	for i, def := range defs {
		if err := buildOne(root, def, factory, &res); err != nil {
			logger.Debug().Int("index", i).Str("path", def.Path).Err(err).Msg("Failed to add node")
			errs = append(errs, fmt.Errorf("node %d (%s %q): %w", i, def.Type, def.Path, err))
			continue
		}
		logger.Trace().Str("type", def.Type).Str("path", def.Path).Msg("Added node")
	}
	return res, errors.Join(errs...)
}

func buildOne(root pseudofs.MutableDirectory, def NodeDefDTO, factory EntryFactory, res *BuildResult) error {
	p := cleanPath(def.Path)
	switch def.Type {
	case DirNodeType:
		if _, err := directory.MkdirAll(root, p); err != nil {
			return err
		}
		res.Dirs++
		return nil

	case FileNodeType:
		if len(def.Sources) == 0 {
			return fmt.Errorf("file has no sources")
		}
		entry, err := firstSource(def.Sources, factory)
		if err != nil {
			return err
		}
		if err := addAt(root, p, entry); err != nil {
			return err
		}
		res.Files++
		return nil

	case LinkNodeType:
		if def.Target == "" {
			return fmt.Errorf("link has no target")
		}
		entry, err := directory.Lookup(root, cleanPath(def.Target))
		if err != nil {
			return err
		}
		if err := addAt(root, p, entry); err != nil {
			return err
		}
		res.Links++
		return nil

	default:
		return fmt.Errorf("unknown node type %q", def.Type)
	}
}

// firstSource returns the entry of the highest priority source that builds.
func firstSource(sources []json.RawMessage, factory EntryFactory) (pseudofs.DirectoryEntry, error) {
	ordered, err := sortedSources(sources)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, raw := range ordered {
		entry, err := factory.NewEntry(raw)
		if err == nil {
			return entry, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func addAt(root pseudofs.MutableDirectory, p string, entry pseudofs.DirectoryEntry) error {
	if p == "." {
		return pseudofs.NewError(pseudofs.OpAdd, p, pseudofs.ErrInvalidArgs)
	}
	parentPath, name := path.Split(p)
	parent := root
	if parentPath != "" {
		var err error
		if parent, err = directory.MkdirAll(root, strings.TrimSuffix(parentPath, "/")); err != nil {
			return err
		}
	}
	return parent.AddEntry(name, entry, false)
}

// cleanPath makes definition paths relative to the root; "" and "/" mean
// the root itself.
func cleanPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	return p
}
