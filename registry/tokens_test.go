package registry

import (
	"sync"
	"testing"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_GetToken(t *testing.T) {
	t.Parallel()

	r := NewTokens()
	a, b := directory.NewMutable(), directory.NewMutable()

	ta, err := r.GetToken(a)
	require.NoError(t, err)
	again, err := r.GetToken(a)
	require.NoError(t, err)
	assert.Equal(t, ta, again, "token must be stable")

	tb, err := r.GetToken(b)
	require.NoError(t, err)
	assert.NotEqual(t, ta, tb)

	got, ok := r.Lookup(ta)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, err = r.GetToken(nil)
	assert.ErrorIs(t, err, pseudofs.ErrInvalidArgs)
}

func TestTokens_Unregister(t *testing.T) {
	t.Parallel()

	r := NewTokens()
	d := directory.NewMutable()
	tok, err := r.GetToken(d)
	require.NoError(t, err)

	r.Unregister(d)
	_, ok := r.Lookup(tok)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	r.Unregister(d) // no-op
}

func TestTokens_ConcurrentGetToken(t *testing.T) {
	t.Parallel()

	r := NewTokens()
	d := directory.NewMutable()
	tokens := make([]pseudofs.Token, 64)
	var wg sync.WaitGroup
	for i := range tokens {
		wg.Go(func() {
			tok, err := r.GetToken(d)
			assert.NoError(t, err)
			tokens[i] = tok
		})
	}
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
		got, ok := r.Lookup(tok)
		require.True(t, ok)
		assert.Same(t, d, got)
	}
	assert.Equal(t, 1, r.Len())
}
