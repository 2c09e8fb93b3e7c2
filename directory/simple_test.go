package directory

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/fspath"
	"github.com/brettbedarf/pseudofs/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leaf is a minimal non-directory entry.
type leaf struct {
	ino uint64
}

func (l *leaf) EntryInfo() pseudofs.EntryInfo {
	return pseudofs.EntryInfo{Inode: l.ino, Type: pseudofs.DirentFile}
}

func (l *leaf) Open(_ *pseudofs.ExecutionScope, flags pseudofs.OpenFlags, _ uint32, path fspath.Path, responder pseudofs.Responder) {
	if !path.IsEmpty() || path.IsDir() {
		responder.Respond(nil, pseudofs.ErrNotDir)
		return
	}
	responder.Respond(pseudofs.NewNodeReference(l, flags), nil)
}

func newLeaf() *leaf {
	return &leaf{ino: pseudofs.InoUnknown}
}

func newTestDir(t *testing.T, names ...string) *Simple {
	t.Helper()
	d := NewMutable()
	for _, name := range names {
		require.NoError(t, d.AddEntry(name, newLeaf(), false))
	}
	return d
}

// drain returns every message currently buffered in sink.
func drain(sink *watcher.ChannelSink) []pseudofs.WatchMessage {
	var msgs []pseudofs.WatchMessage
	for {
		select {
		case msg, ok := <-sink.Events():
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func msg(event pseudofs.WatchEvent, names ...string) pseudofs.WatchMessage {
	return pseudofs.WatchMessage{Event: event, Names: names}
}

func TestSimple_AddEntry(t *testing.T) {
	t.Parallel()

	t.Run("Adds and rejects duplicates", func(t *testing.T) {
		t.Parallel()
		d := NewMutable()
		first := newLeaf()
		require.NoError(t, d.AddEntry("a", first, false))

		err := d.AddEntry("a", newLeaf(), false)
		require.Error(t, err)
		assert.ErrorIs(t, err, pseudofs.ErrAlreadyExists)

		got, err := d.GetEntry("a")
		require.NoError(t, err)
		assert.Same(t, first, got, "failed add must not replace the entry")
	})

	t.Run("Overwrite replaces", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "a")
		second := newLeaf()
		require.NoError(t, d.AddEntry("a", second, true))
		got, err := d.GetEntry("a")
		require.NoError(t, err)
		assert.Same(t, second, got)
		assert.Equal(t, 1, d.Len())
	})

	t.Run("Name validation", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			desc    string
			name    string
			wantErr bool
		}{
			{"max length", strings.Repeat("n", pseudofs.MaxNameLength), false},
			{"too long", strings.Repeat("n", pseudofs.MaxNameLength+1), true},
			{"contains slash", "a/b", true},
			{"empty", "", true},
		}
		for _, tt := range tests {
			t.Run(tt.desc, func(t *testing.T) {
				d := NewMutable()
				err := d.AddEntry(tt.name, newLeaf(), false)
				if tt.wantErr {
					assert.ErrorIs(t, err, pseudofs.ErrInvalidArgs)
					assert.Equal(t, 0, d.Len(), "rejected add must not change the directory")
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})
}

func TestSimple_ConcurrentAddEntry(t *testing.T) {
	t.Parallel()

	const n = 200
	d := NewMutable()
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			assert.NoError(t, d.AddEntry(fmt.Sprintf("entry-%03d", i), newLeaf(), false))
		})
	}
	wg.Wait()

	assert.Equal(t, n, d.Len())
}

func TestSimple_RemoveEntry(t *testing.T) {
	t.Parallel()

	t.Run("Missing name is not an error", func(t *testing.T) {
		t.Parallel()
		d := NewMutable()
		entry, err := d.RemoveEntry("nope", false)
		assert.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("Returns removed entry", func(t *testing.T) {
		t.Parallel()
		d := NewMutable()
		l := newLeaf()
		require.NoError(t, d.AddEntry("f", l, false))
		entry, err := d.RemoveEntry("f", false)
		require.NoError(t, err)
		assert.Same(t, l, entry)
		assert.Equal(t, 0, d.Len())
	})

	t.Run("Must be directory", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "file")
		sub := NewMutable()
		require.NoError(t, d.AddEntry("sub", sub, false))

		_, err := d.RemoveEntry("file", true)
		assert.ErrorIs(t, err, pseudofs.ErrNotDir)
		assert.Equal(t, 2, d.Len(), "non-directory must stay in place")

		entry, err := d.RemoveEntry("sub", true)
		require.NoError(t, err)
		assert.Same(t, sub, entry)
	})

	t.Run("Too long", func(t *testing.T) {
		t.Parallel()
		_, err := NewMutable().RemoveEntry(strings.Repeat("x", pseudofs.MaxNameLength+1), false)
		assert.ErrorIs(t, err, pseudofs.ErrInvalidArgs)
	})
}

func TestSimple_RenameWithin(t *testing.T) {
	t.Parallel()

	t.Run("Moves entry", func(t *testing.T) {
		t.Parallel()
		d := NewMutable()
		l := newLeaf()
		require.NoError(t, d.AddEntry("old", l, false))
		require.NoError(t, d.RenameWithin("old", "new"))
		assert.Equal(t, []string{"new"}, d.Names())
		got, err := d.GetEntry("new")
		require.NoError(t, err)
		assert.Same(t, l, got)
	})

	t.Run("Missing source", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "a")
		assert.ErrorIs(t, d.RenameWithin("b", "c"), pseudofs.ErrNotFound)
		assert.Equal(t, []string{"a"}, d.Names())
	})

	t.Run("Invalid destination", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "a")
		assert.ErrorIs(t, d.RenameWithin("a", "x/y"), pseudofs.ErrInvalidArgs)
		assert.Equal(t, []string{"a"}, d.Names())
	})

	t.Run("Same name still notifies", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "a")
		sink := watcher.NewChannelSink(16)
		_, err := d.RegisterWatcher(nil, pseudofs.WatchAdded|pseudofs.WatchRemoved, sink)
		require.NoError(t, err)

		require.NoError(t, d.RenameWithin("a", "a"))
		assert.Equal(t, []pseudofs.WatchMessage{
			msg(pseudofs.EventRemoved, "a"),
			msg(pseudofs.EventAdded, "a"),
		}, drain(sink))
		assert.Equal(t, []string{"a"}, d.Names())
	})
}

func TestSimple_CrossDirectoryRename(t *testing.T) {
	t.Parallel()

	src := newTestDir(t, "x")
	dst := NewMutable()
	entry, err := src.GetEntry("x")
	require.NoError(t, err)

	err = src.RenameFrom("x", func(e pseudofs.DirectoryEntry) error {
		return dst.RenameTo("y", func() (pseudofs.DirectoryEntry, error) { return e, nil })
	})
	require.NoError(t, err)

	assert.Empty(t, src.Names())
	got, err := dst.GetEntry("y")
	require.NoError(t, err)
	assert.Same(t, entry, got)

	t.Run("Failed handoff keeps source", func(t *testing.T) {
		src := newTestDir(t, "keep")
		err := src.RenameFrom("keep", func(pseudofs.DirectoryEntry) error { return pseudofs.ErrNoSpace })
		assert.ErrorIs(t, err, pseudofs.ErrNoSpace)
		assert.Equal(t, []string{"keep"}, src.Names())
	})

	t.Run("Opposite renames do not deadlock", func(t *testing.T) {
		a, b := NewMutable(), NewMutable()
		for i := range 50 {
			require.NoError(t, a.AddEntry(fmt.Sprintf("a%d", i), newLeaf(), false))
			require.NoError(t, b.AddEntry(fmt.Sprintf("b%d", i), newLeaf(), false))
		}
		move := func(from, to *Simple, prefix string) {
			for i := range 50 {
				name := fmt.Sprintf("%s%d", prefix, i)
				err := from.RenameFrom(name, func(e pseudofs.DirectoryEntry) error {
					return to.RenameTo(name, func() (pseudofs.DirectoryEntry, error) { return e, nil })
				})
				assert.NoError(t, err)
			}
		}
		var wg sync.WaitGroup
		wg.Go(func() { move(a, b, "a") })
		wg.Go(func() { move(b, a, "b") })
		wg.Wait()
		assert.Equal(t, 50, a.Len())
		assert.Equal(t, 50, b.Len())
	})
}

func TestSimple_ReadDirents(t *testing.T) {
	t.Parallel()

	t.Run("Empty directory lists dot", func(t *testing.T) {
		t.Parallel()
		sink := NewBufferSink(DefaultDirentBufferSize)
		pos, err := NewMutable().ReadDirents(pseudofs.Start(), sink)
		require.NoError(t, err)
		assert.True(t, pos.IsEnd())
		require.Equal(t, 1, sink.Len())
		assert.Equal(t, ".", sink.Entries()[0].Name)
		assert.Equal(t, pseudofs.DirentDirectory, sink.Entries()[0].Info.Type)
		assert.Equal(t, pseudofs.InoUnknown, sink.Entries()[0].Info.Inode)
	})

	t.Run("Dot carries the directory inode", func(t *testing.T) {
		t.Parallel()
		d := NewMutable(WithInode(42))
		sink := NewBufferSink(DefaultDirentBufferSize)
		_, err := d.ReadDirents(pseudofs.Start(), sink)
		require.NoError(t, err)
		require.Equal(t, 1, sink.Len())
		assert.Equal(t, d.EntryInfo(), sink.Entries()[0].Info)
		attrs, err := d.GetAttrs()
		require.NoError(t, err)
		assert.Equal(t, attrs.ID, sink.Entries()[0].Info.Inode)
	})

	t.Run("Lexicographic order", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "b", "a", "C", "aa")
		sink := NewBufferSink(DefaultDirentBufferSize)
		_, err := d.ReadDirents(pseudofs.Start(), sink)
		require.NoError(t, err)
		var names []string
		for _, e := range sink.Entries() {
			names = append(names, e.Name)
		}
		assert.Equal(t, []string{".", "C", "a", "aa", "b"}, names)
	})

	t.Run("Paginates without loss or duplication", func(t *testing.T) {
		t.Parallel()
		var want []string
		d := NewMutable()
		for i := range 25 {
			name := fmt.Sprintf("file-%02d", i)
			want = append(want, name)
			require.NoError(t, d.AddEntry(name, newLeaf(), false))
		}

		var got []string
		pos := pseudofs.Start()
		calls := 0
		for !pos.IsEnd() {
			sink := NewBufferSink(3 * DirentSize("file-00"))
			next, err := d.ReadDirents(pos, sink)
			require.NoError(t, err)
			require.NotZero(t, sink.Len(), "each page must make progress")
			for _, e := range sink.Entries() {
				if e.Name != "." {
					got = append(got, e.Name)
				}
			}
			pos = next
			calls++
		}
		assert.Equal(t, want, got)
		assert.Greater(t, calls, 1)
	})

	t.Run("Dot does not fit", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "a")
		sink := NewBufferSink(1)
		pos, err := d.ReadDirents(pseudofs.Start(), sink)
		require.NoError(t, err)
		assert.True(t, pos.IsStart())
		assert.Equal(t, 0, sink.Len())
	})

	t.Run("Resumes at refused name", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "a", "b", "c")
		sink := NewBufferSink(DirentSize(".") + DirentSize("a"))
		pos, err := d.ReadDirents(pseudofs.Start(), sink)
		require.NoError(t, err)
		name, ok := pos.Name()
		require.True(t, ok)
		assert.Equal(t, "b", name)
	})

	t.Run("End stays at end", func(t *testing.T) {
		t.Parallel()
		sink := NewBufferSink(DefaultDirentBufferSize)
		pos, err := newTestDir(t, "a").ReadDirents(pseudofs.End(), sink)
		require.NoError(t, err)
		assert.True(t, pos.IsEnd())
		assert.Equal(t, 0, sink.Len())
	})
}

func TestSimple_Watchers(t *testing.T) {
	t.Parallel()

	t.Run("Existing then idle then changes", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "b", "a")
		sink := watcher.NewChannelSink(16)
		_, err := d.RegisterWatcher(nil, pseudofs.WatchMaskAll, sink)
		require.NoError(t, err)

		require.NoError(t, d.AddEntry("c", newLeaf(), false))
		_, err = d.RemoveEntry("a", false)
		require.NoError(t, err)

		assert.Equal(t, []pseudofs.WatchMessage{
			msg(pseudofs.EventExisting, ".", "a", "b"),
			msg(pseudofs.EventIdle),
			msg(pseudofs.EventAdded, "c"),
			msg(pseudofs.EventRemoved, "a"),
		}, drain(sink))
	})

	t.Run("Mask filters events", func(t *testing.T) {
		t.Parallel()
		d := NewMutable()
		sink := watcher.NewChannelSink(16)
		_, err := d.RegisterWatcher(nil, pseudofs.WatchRemoved, sink)
		require.NoError(t, err)

		require.NoError(t, d.AddEntry("x", newLeaf(), false))
		_, err = d.RemoveEntry("x", false)
		require.NoError(t, err)

		assert.Equal(t, []pseudofs.WatchMessage{msg(pseudofs.EventRemoved, "x")}, drain(sink))
	})

	t.Run("Closed peer is dropped", func(t *testing.T) {
		t.Parallel()
		d := NewMutable()
		sink := watcher.NewChannelSink(16)
		_, err := d.RegisterWatcher(nil, pseudofs.WatchMaskAll, sink)
		require.NoError(t, err)
		require.Equal(t, 1, d.WatcherCount())

		sink.Close()
		require.NoError(t, d.AddEntry("x", newLeaf(), false), "mutation must not fail because of a watcher")
		assert.Equal(t, 0, d.WatcherCount())
	})

	t.Run("Full sink does not block mutation", func(t *testing.T) {
		t.Parallel()
		d := NewMutable()
		sink := watcher.NewChannelSink(1)
		_, err := d.RegisterWatcher(nil, pseudofs.WatchMaskAll, sink)
		require.NoError(t, err)

		for i := range 10 {
			require.NoError(t, d.AddEntry(fmt.Sprintf("f%d", i), newLeaf(), false))
		}
		assert.Equal(t, 1, d.WatcherCount())
		assert.NotZero(t, sink.Dropped())
	})

	t.Run("Unregister is idempotent", func(t *testing.T) {
		t.Parallel()
		d := NewMutable()
		sink := watcher.NewChannelSink(16)
		key, err := d.RegisterWatcher(nil, pseudofs.WatchMaskAll, sink)
		require.NoError(t, err)
		d.UnregisterWatcher(key)
		d.UnregisterWatcher(key)
		assert.Equal(t, 0, d.WatcherCount())

		drain(sink)
		require.NoError(t, d.AddEntry("x", newLeaf(), false))
		assert.Empty(t, drain(sink))
	})
}

func TestSimple_GetAttrs(t *testing.T) {
	t.Parallel()

	attrs, err := NewMutable(WithInode(7)).GetAttrs()
	require.NoError(t, err)
	assert.Equal(t, pseudofs.ModeTypeDirectory|0o777, attrs.Mode)
	assert.Equal(t, uint64(7), attrs.ID)
	assert.Equal(t, uint64(1), attrs.LinkCount)
	assert.Zero(t, attrs.ContentSize)

	attrs, err = NewImmutable().GetAttrs()
	require.NoError(t, err)
	assert.Equal(t, pseudofs.ModeTypeDirectory|0o555, attrs.Mode)
	assert.True(t, attrs.IsDir())
}
