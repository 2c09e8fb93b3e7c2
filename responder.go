package pseudofs

import (
	"context"
	"fmt"
	"sync"

	"github.com/brettbedarf/pseudofs/fspath"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// Connection is the per-client handle an open binds to a node.
type Connection interface {
	Entry() DirectoryEntry
	Flags() OpenFlags
	Close() error
}

// NodeReference is a rights-less connection that only pins a node, used
// for FlagNodeReference opens.
type NodeReference struct {
	entry DirectoryEntry
	flags OpenFlags
}

func NewNodeReference(entry DirectoryEntry, flags OpenFlags) *NodeReference {
	return &NodeReference{entry: entry, flags: flags &^ RightsMask}
}

func (r *NodeReference) Entry() DirectoryEntry { return r.entry }
func (r *NodeReference) Flags() OpenFlags      { return r.flags }
func (r *NodeReference) Close() error          { return nil }

// Responder receives the outcome of an open: a connection or an error,
// never both.
type Responder interface {
	Respond(conn Connection, err error)
}

// ResponderFunc adapts a function to [Responder].
type ResponderFunc func(conn Connection, err error)

func (f ResponderFunc) Respond(conn Connection, err error) {
	f(conn, err)
}

// OpenResult is a Responder that records the first resolution and lets a
// caller wait for it. Later resolutions are logged and their connections
// closed.
type OpenResult struct {
	once sync.Once
	done chan struct{}
	conn Connection
	err  error
}

func NewOpenResult() *OpenResult {
	return &OpenResult{done: make(chan struct{})}
}

func (r *OpenResult) Respond(conn Connection, err error) {
	first := false
	r.once.Do(func() {
		r.conn, r.err = conn, err
		first = true
		close(r.done)
	})
	if first {
		return
	}
	logger := util.GetLogger("OpenResult")
	logger.Warn().Err(err).Msg("Responder resolved more than once")
	if conn != nil {
		_ = conn.Close()
	}
}

// Done is closed once the open has been resolved.
func (r *OpenResult) Done() <-chan struct{} {
	return r.done
}

// Result returns the recorded resolution, ok is false if none yet.
func (r *OpenResult) Result() (conn Connection, ok bool, err error) {
	select {
	case <-r.done:
		return r.conn, true, r.err
	default:
		return nil, false, nil
	}
}

// Wait blocks until the open resolves or ctx is done.
func (r *OpenResult) Wait(ctx context.Context) (Connection, error) {
	select {
	case <-r.done:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OpenPath validates path and opens it relative to entry, waiting for the
// result under the scope's context.
func OpenPath(entry DirectoryEntry, scope *ExecutionScope, flags OpenFlags, mode uint32, path string) (Connection, error) {
	p, err := fspath.Validate(path)
	if err != nil {
		return nil, NewError(OpOpen, path, fmt.Errorf("%w: %w", ErrInvalidArgs, err))
	}
	res := NewOpenResult()
	entry.Open(scope, flags, mode, p, res)
	return res.Wait(scope.Context())
}
