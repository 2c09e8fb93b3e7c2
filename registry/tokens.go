// Package registry maps mutable directories to opaque tokens so that a
// rename can name its destination directory without holding a reference.
package registry

import (
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// Tokens is a concurrent [pseudofs.TokenRegistry]. A directory keeps the
// same token until it is unregistered.
type Tokens struct {
	byToken *xsync.Map[pseudofs.Token, pseudofs.MutableDirectory]
	byDir   *xsync.Map[pseudofs.MutableDirectory, pseudofs.Token]
}

func NewTokens() *Tokens {
	return &Tokens{
		byToken: xsync.NewMap[pseudofs.Token, pseudofs.MutableDirectory](),
		byDir:   xsync.NewMap[pseudofs.MutableDirectory, pseudofs.Token](),
	}
}

// GetToken returns dir's token, allocating one on first use.
func (r *Tokens) GetToken(dir pseudofs.MutableDirectory) (pseudofs.Token, error) {
	if dir == nil {
		return pseudofs.Token{}, pseudofs.NewError(pseudofs.OpGetToken, "", pseudofs.ErrInvalidArgs)
	}
	// fast path
	if tok, ok := r.byDir.Load(dir); ok {
		return tok, nil
	}

	// Publish the reverse mapping first so any token handed out resolves.
	tok := uuid.New()
	r.byToken.Store(tok, dir)
	actual, loaded := r.byDir.LoadOrStore(dir, tok)
	if loaded {
		// someone else won the race
		r.byToken.Delete(tok)
		return actual, nil
	}
	logger := util.GetLogger("Tokens.GetToken")
	logger.Trace().Str("token", tok.String()).Msg("Allocated directory token")
	return tok, nil
}

func (r *Tokens) Lookup(token pseudofs.Token) (pseudofs.MutableDirectory, bool) {
	return r.byToken.Load(token)
}

// Unregister forgets dir; its token stops resolving.
func (r *Tokens) Unregister(dir pseudofs.MutableDirectory) {
	if tok, ok := r.byDir.LoadAndDelete(dir); ok {
		r.byToken.Delete(tok)
	}
}

// Len returns the number of registered directories.
func (r *Tokens) Len() int {
	return r.byDir.Size()
}

var _ pseudofs.TokenRegistry = (*Tokens)(nil)
