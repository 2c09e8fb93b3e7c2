package directory

import (
	"reflect"

	"github.com/google/btree"

	"github.com/brettbedarf/pseudofs"
)

type child struct {
	name  string
	entry pseudofs.DirectoryEntry
}

func childLess(a, b child) bool {
	return a.name < b.name
}

// entryMap is the name-ordered child table of a directory. Ordering is by
// byte value of the name.
type entryMap struct {
	tree *btree.BTreeG[child]
}

func newEntryMap() entryMap {
	return entryMap{tree: btree.NewG[child](16, childLess)}
}

func (m entryMap) get(name string) (pseudofs.DirectoryEntry, bool) {
	c, ok := m.tree.Get(child{name: name})
	return c.entry, ok
}

func (m entryMap) has(name string) bool {
	return m.tree.Has(child{name: name})
}

// insert stores entry under name and returns the entry it replaced, if any.
func (m entryMap) insert(name string, entry pseudofs.DirectoryEntry) (pseudofs.DirectoryEntry, bool) {
	prev, replaced := m.tree.ReplaceOrInsert(child{name: name, entry: entry})
	return prev.entry, replaced
}

func (m entryMap) remove(name string) (pseudofs.DirectoryEntry, bool) {
	c, ok := m.tree.Delete(child{name: name})
	return c.entry, ok
}

func (m entryMap) len() int {
	return m.tree.Len()
}

func (m entryMap) names() []string {
	names := make([]string, 0, m.tree.Len())
	m.tree.Ascend(func(c child) bool {
		names = append(names, c.name)
		return true
	})
	return names
}

// ascendFrom visits entries with names >= from in order until fn returns false.
func (m entryMap) ascendFrom(from string, fn func(name string, entry pseudofs.DirectoryEntry) bool) {
	m.tree.AscendGreaterOrEqual(child{name: from}, func(c child) bool {
		return fn(c.name, c.entry)
	})
}

// sameNode reports whether a and b are the same node. Values of
// non-comparable dynamic types are never the same.
func sameNode(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
