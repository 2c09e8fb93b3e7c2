package directory

import (
	"fmt"
	"testing"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/registry"
	"github.com/brettbedarf/pseudofs/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rw = pseudofs.RightReadable | pseudofs.RightWritable

func newConn(t *testing.T, d *Simple, scope *pseudofs.ExecutionScope, flags pseudofs.OpenFlags) *Connection {
	t.Helper()
	conn, err := pseudofs.OpenPath(d, scope, flags, 0, ".")
	require.NoError(t, err)
	dc, ok := conn.(*Connection)
	require.True(t, ok)
	t.Cleanup(func() { _ = dc.Close() })
	return dc
}

func newTokenScope(t *testing.T) *pseudofs.ExecutionScope {
	t.Helper()
	scope := pseudofs.NewScope(pseudofs.WithTokenRegistry(registry.NewTokens()))
	t.Cleanup(scope.Shutdown)
	return scope
}

func TestConnection_ReadDirents(t *testing.T) {
	t.Parallel()

	d := NewMutable()
	for i := range 10 {
		require.NoError(t, d.AddEntry(fmt.Sprintf("n%d", i), newLeaf(), false))
	}
	conn := newConn(t, d, nil, pseudofs.RightReadable)

	var names []string
	for {
		batch, err := conn.ReadDirents(4 * DirentSize("n0"))
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			names = append(names, e.Name)
		}
	}
	assert.Equal(t, []string{".", "n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9"}, names)

	conn.Rewind()
	batch, err := conn.ReadDirents(0)
	require.NoError(t, err)
	assert.Len(t, batch, 11)

	t.Run("Buffer too small", func(t *testing.T) {
		c := newConn(t, d, nil, pseudofs.RightReadable)
		_, err := c.ReadDirents(1)
		assert.ErrorIs(t, err, pseudofs.ErrBufferTooSmall)
	})

	t.Run("Closed", func(t *testing.T) {
		c := newConn(t, d, nil, pseudofs.RightReadable)
		require.NoError(t, c.Close())
		_, err := c.ReadDirents(0)
		assert.ErrorIs(t, err, pseudofs.ErrBadState)
	})
}

func TestConnection_WatchClose(t *testing.T) {
	t.Parallel()

	d := NewMutable()
	conn := newConn(t, d, nil, pseudofs.RightReadable)

	s1, s2 := watcher.NewChannelSink(8), watcher.NewChannelSink(8)
	k1, err := conn.Watch(pseudofs.WatchMaskAll, s1)
	require.NoError(t, err)
	_, err = conn.Watch(pseudofs.WatchMaskAll, s2)
	require.NoError(t, err)
	require.Equal(t, 2, d.WatcherCount())

	conn.Unwatch(k1)
	assert.Equal(t, 1, d.WatcherCount())

	require.NoError(t, conn.Close())
	assert.Equal(t, 0, d.WatcherCount(), "close must drop the connection's watchers")
	assert.NoError(t, conn.Close())
}

func TestConnection_Unlink(t *testing.T) {
	t.Parallel()

	t.Run("Removes entry", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "a")
		conn := newConn(t, d, nil, rw)
		require.NoError(t, conn.Unlink("a", false))
		assert.Equal(t, 0, d.Len())
		assert.ErrorIs(t, conn.Unlink("a", false), pseudofs.ErrNotFound)
	})

	t.Run("Needs write right", func(t *testing.T) {
		t.Parallel()
		d := newTestDir(t, "a")
		conn := newConn(t, d, nil, pseudofs.RightReadable)
		assert.ErrorIs(t, conn.Unlink("a", false), pseudofs.ErrAccessDenied)
		assert.Equal(t, 1, d.Len())
	})

	t.Run("Immutable personality", func(t *testing.T) {
		t.Parallel()
		d := NewImmutable()
		require.NoError(t, d.AddEntry("a", newLeaf(), false))
		conn := newConn(t, d, nil, rw)
		assert.ErrorIs(t, conn.Unlink("a", false), pseudofs.ErrNotSupported)
		assert.Equal(t, 1, d.Len())
	})

	t.Run("Invalid name", func(t *testing.T) {
		t.Parallel()
		conn := newConn(t, NewMutable(), nil, rw)
		assert.ErrorIs(t, conn.Unlink("a/b", false), pseudofs.ErrInvalidArgs)
	})
}

func TestConnection_Rename(t *testing.T) {
	t.Parallel()

	t.Run("Within one directory", func(t *testing.T) {
		t.Parallel()
		scope := newTokenScope(t)
		d := newTestDir(t, "a")
		conn := newConn(t, d, scope, rw)
		tok, err := conn.GetToken()
		require.NoError(t, err)

		require.NoError(t, conn.Rename("a", tok, "b"))
		assert.Equal(t, []string{"b"}, d.Names())
	})

	t.Run("Across directories", func(t *testing.T) {
		t.Parallel()
		scope := newTokenScope(t)
		src, dst := newTestDir(t, "a"), NewMutable()
		moved, err := src.GetEntry("a")
		require.NoError(t, err)

		srcConn := newConn(t, src, scope, rw)
		dstConn := newConn(t, dst, scope, rw)
		tok, err := dstConn.GetToken()
		require.NoError(t, err)

		srcSink, dstSink := watcher.NewChannelSink(8), watcher.NewChannelSink(8)
		_, err = srcConn.Watch(pseudofs.WatchRemoved, srcSink)
		require.NoError(t, err)
		_, err = dstConn.Watch(pseudofs.WatchAdded, dstSink)
		require.NoError(t, err)

		require.NoError(t, srcConn.Rename("a", tok, "z"))
		assert.Empty(t, src.Names())
		got, err := dst.GetEntry("z")
		require.NoError(t, err)
		assert.Same(t, moved, got)
		assert.Equal(t, []pseudofs.WatchMessage{msg(pseudofs.EventRemoved, "a")}, drain(srcSink))
		assert.Equal(t, []pseudofs.WatchMessage{msg(pseudofs.EventAdded, "z")}, drain(dstSink))
	})

	t.Run("Unknown token", func(t *testing.T) {
		t.Parallel()
		scope := newTokenScope(t)
		d := newTestDir(t, "a")
		conn := newConn(t, d, scope, rw)
		assert.ErrorIs(t, conn.Rename("a", pseudofs.Token{}, "b"), pseudofs.ErrNotFound)
		assert.Equal(t, []string{"a"}, d.Names())
	})

	t.Run("No token registry", func(t *testing.T) {
		t.Parallel()
		conn := newConn(t, newTestDir(t, "a"), nil, rw)
		_, err := conn.GetToken()
		assert.ErrorIs(t, err, pseudofs.ErrNotSupported)
		assert.ErrorIs(t, conn.Rename("a", pseudofs.Token{}, "b"), pseudofs.ErrNotSupported)
	})
}

func TestConnection_Open(t *testing.T) {
	t.Parallel()

	d := newTestDir(t, "a")
	ro := newConn(t, d, nil, pseudofs.RightReadable)

	child, err := ro.Open(pseudofs.RightReadable, 0, "a")
	require.NoError(t, err)
	assert.NotNil(t, child)

	_, err = ro.Open(rw, 0, "a")
	assert.ErrorIs(t, err, pseudofs.ErrAccessDenied, "rights must not escalate")

	_, err = ro.Open(pseudofs.RightReadable|pseudofs.FlagCreate, 0, "b")
	assert.ErrorIs(t, err, pseudofs.ErrAccessDenied)

	_, err = ro.Open(pseudofs.RightReadable, 0, "../a")
	assert.ErrorIs(t, err, pseudofs.ErrInvalidArgs)
}
