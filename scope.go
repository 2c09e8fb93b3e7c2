package pseudofs

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/brettbedarf/pseudofs/fspath"
)

// Token is an opaque handle naming a mutable directory for cross-directory
// rename.
type Token = uuid.UUID

// TokenRegistry hands out tokens for mutable directories and resolves them
// back.
type TokenRegistry interface {
	GetToken(dir MutableDirectory) (Token, error)
	Lookup(token Token) (MutableDirectory, bool)
	Unregister(dir MutableDirectory)
}

// EntryConstructor builds entries on demand when an open names something
// that does not exist. Returning ErrNotSupported declines the request.
//
// CreateEntry runs with parent's lock held and must not call back into
// parent.
type EntryConstructor interface {
	CreateEntry(scope *ExecutionScope, parent MutableDirectory, flags OpenFlags, mode uint32, name string, rest fspath.Path) (DirectoryEntry, error)
}

// EntryConstructorFunc adapts a function to [EntryConstructor].
type EntryConstructorFunc func(scope *ExecutionScope, parent MutableDirectory, flags OpenFlags, mode uint32, name string, rest fspath.Path) (DirectoryEntry, error)

func (f EntryConstructorFunc) CreateEntry(scope *ExecutionScope, parent MutableDirectory, flags OpenFlags, mode uint32, name string, rest fspath.Path) (DirectoryEntry, error) {
	return f(scope, parent, flags, mode, name, rest)
}

// ExecutionScope is the context every open runs under. It carries the
// optional token registry and entry constructor, and tracks background
// work started on behalf of connections. A nil scope is valid and behaves
// like an empty one.
type ExecutionScope struct {
	ctx         context.Context
	cancel      context.CancelFunc
	tokens      TokenRegistry
	constructor EntryConstructor

	mu       sync.Mutex // Protects shutdown and wg.Add
	shutdown bool
	wg       sync.WaitGroup
}

type ScopeOption func(*ExecutionScope)

func WithTokenRegistry(r TokenRegistry) ScopeOption {
	return func(s *ExecutionScope) { s.tokens = r }
}

func WithEntryConstructor(c EntryConstructor) ScopeOption {
	return func(s *ExecutionScope) { s.constructor = c }
}

// WithContext sets the parent context; cancelling it shuts the scope down.
func WithContext(ctx context.Context) ScopeOption {
	return func(s *ExecutionScope) { s.ctx = ctx }
}

func NewScope(opts ...ScopeOption) *ExecutionScope {
	s := &ExecutionScope{ctx: context.Background()}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(s.ctx)
	return s
}

func (s *ExecutionScope) TokenRegistry() TokenRegistry {
	if s == nil {
		return nil
	}
	return s.tokens
}

func (s *ExecutionScope) EntryConstructor() EntryConstructor {
	if s == nil {
		return nil
	}
	return s.constructor
}

func (s *ExecutionScope) Context() context.Context {
	if s == nil {
		return context.Background()
	}
	return s.ctx
}

// Go runs fn in a goroutine tracked by the scope. It returns false without
// running fn once the scope has been shut down.
func (s *ExecutionScope) Go(fn func(ctx context.Context)) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

// Shutdown cancels the scope's context. Safe to call more than once.
func (s *ExecutionScope) Shutdown() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every goroutine started with Go has returned.
func (s *ExecutionScope) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}
