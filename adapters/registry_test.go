package adapters

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/directory"
	"github.com/brettbedarf/pseudofs/file"
	"github.com/brettbedarf/pseudofs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// readEntry opens a leaf built by a provider and returns its content.
func readEntry(t *testing.T, entry pseudofs.DirectoryEntry) string {
	t.Helper()
	conn, err := pseudofs.OpenPath(entry, nil, pseudofs.RightReadable, 0, ".")
	require.NoError(t, err)
	defer conn.Close()
	data, err := io.ReadAll(conn.(io.Reader))
	require.NoError(t, err)
	return string(data)
}

// constProvider builds a fresh read-only file holding content on every call.
func constProvider(content string) Provider {
	return ProviderFunc(func([]byte) (pseudofs.DirectoryEntry, error) {
		return file.NewReadOnly([]byte(content)), nil
	})
}

func TestRegistry_NewEntryDispatchesOnType(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	RegisterStatic(r)
	RegisterMemory(r, 16)

	tests := []struct {
		name     string
		raw      string
		content  string
		writable bool
	}{
		{"Static", `{"type":"static","content":"motd"}`, "motd", false},
		{"Memory", `{"type":"file","content":"scratch"}`, "scratch", true},
		{"Empty memory", `{"type":"file"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entry, err := r.NewEntry([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, pseudofs.DirentFile, entry.EntryInfo().Type)
			assert.Equal(t, tt.content, readEntry(t, entry))

			_, err = pseudofs.OpenPath(entry, nil, pseudofs.RightReadable|pseudofs.RightWritable, 0, ".")
			if tt.writable {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, pseudofs.ErrAccessDenied)
			}
		})
	}
}

func TestRegistry_EntriesMountInDirectory(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	RegisterStatic(r)
	root := directory.NewMutable()

	for i := range 3 {
		entry, err := r.NewEntry(fmt.Appendf(nil, `{"type":"static","content":"file %d"}`, i))
		require.NoError(t, err)
		require.NoError(t, root.AddEntry(fmt.Sprintf("f%d", i), entry, false))
	}

	conn, err := pseudofs.OpenPath(root, nil, pseudofs.RightReadable, 0, "f1")
	require.NoError(t, err)
	defer conn.Close()
	data, err := io.ReadAll(conn.(io.Reader))
	require.NoError(t, err)
	assert.Equal(t, "file 1", string(data))

	_, err = pseudofs.OpenPath(root, nil, pseudofs.RightReadable, 0, "f1/inner")
	assert.ErrorIs(t, err, pseudofs.ErrNotDir)
}

func TestRegistry_FirstRegistrationWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("motd", constProvider("first"))
	r.Register("motd", constProvider("second"))

	entry, err := r.NewEntry([]byte(`{"type":"motd"}`))
	require.NoError(t, err)
	assert.Equal(t, "first", readEntry(t, entry))

	// Built-ins do not replace a provider registered under the same key.
	RegisterStatic(r)
	r.Register(StaticAdapterType, constProvider("shadowed"))
	entry, err = r.NewEntry([]byte(`{"type":"static","content":"kept"}`))
	require.NoError(t, err)
	assert.Equal(t, "kept", readEntry(t, entry))
}

func TestRegistry_EachCallBuildsNewEntry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	RegisterMemory(r, 8)
	raw := []byte(`{"type":"file","content":"a"}`)

	first, err := r.NewEntry(raw)
	require.NoError(t, err)
	second, err := r.NewEntry(raw)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	conn, err := pseudofs.OpenPath(first, nil, pseudofs.RightWritable, 0, ".")
	require.NoError(t, err)
	_, err = conn.(io.Writer).Write([]byte("z"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.Equal(t, "z", readEntry(t, first))
	assert.Equal(t, "a", readEntry(t, second))
}

func TestRegistry_ConcurrentRegisterAndBuild(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			key := fmt.Sprintf("kind-%d", i)
			r.Register(key, constProvider(key))
			entry, err := r.NewEntry(fmt.Appendf(nil, `{"type":%q}`, key))
			if assert.NoError(t, err) {
				assert.Equal(t, key, readEntry(t, entry))
			}
		})
	}
	wg.Wait()

	for i := range 50 {
		_, err := r.GetProvider(fmt.Sprintf("kind-%d", i))
		assert.NoError(t, err)
	}
}

func TestRegistry_NewEntryErrors(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	RegisterStatic(r)
	RegisterMemory(r, 4)

	tests := []struct {
		name string
		raw  string
	}{
		{"Invalid JSON", `{`},
		{"Missing type", `{"content":"x"}`},
		{"Unknown type", `{"type":"ftp"}`},
		{"Content over capacity", `{"type":"file","content":"too long"}`},
		{"Bad field type", `{"type":"static","content":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entry, err := r.NewEntry([]byte(tt.raw))
			assert.Error(t, err)
			assert.Nil(t, entry)
		})
	}
}

func TestRegistry_ProviderErrorPassesThrough(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	provider := &mocks.MockProvider{}
	r.Register("remote", provider)

	raw := []byte(`{"type":"remote","url":"x"}`)
	provider.On("NewEntry", raw).Return(nil, pseudofs.ErrNotSupported).Once()

	_, err := r.NewEntry(raw)
	assert.True(t, errors.Is(err, pseudofs.ErrNotSupported))
	provider.AssertExpectations(t)

	provider.On("NewEntry", mock.Anything).Return(file.NewReadOnly([]byte("ok")), nil).Once()
	entry, err := r.NewEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, "ok", readEntry(t, entry))
}
