package pseudofs

import (
	"errors"
	"fmt"
	"syscall"
)

// Status is the error vocabulary shared by every node and connection.
// A Status is itself an error so it can be returned, wrapped and compared
// with errors.Is.
type Status int32

const (
	StatusOK Status = iota
	ErrInvalidArgs
	ErrAlreadyExists
	ErrNotFound
	ErrNotDir
	ErrNotFile
	ErrNotSupported
	ErrAccessDenied
	ErrNoSpace
	ErrBufferTooSmall
	ErrPeerClosed
	ErrShouldWait
	ErrBadState
	ErrIO
)

var statusNames = map[Status]string{
	StatusOK:          "ok",
	ErrInvalidArgs:    "invalid arguments",
	ErrAlreadyExists:  "already exists",
	ErrNotFound:       "not found",
	ErrNotDir:         "not a directory",
	ErrNotFile:        "not a file",
	ErrNotSupported:   "not supported",
	ErrAccessDenied:   "access denied",
	ErrNoSpace:        "no space",
	ErrBufferTooSmall: "buffer too small",
	ErrPeerClosed:     "peer closed",
	ErrShouldWait:     "should wait",
	ErrBadState:       "bad state",
	ErrIO:             "i/o error",
}

func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// Errno maps the status onto the closest POSIX errno for the FUSE bridge.
func (s Status) Errno() syscall.Errno {
	switch s {
	case StatusOK:
		return 0
	case ErrInvalidArgs:
		return syscall.EINVAL
	case ErrAlreadyExists:
		return syscall.EEXIST
	case ErrNotFound:
		return syscall.ENOENT
	case ErrNotDir:
		return syscall.ENOTDIR
	case ErrNotFile:
		return syscall.EISDIR
	case ErrNotSupported:
		return syscall.ENOTSUP
	case ErrAccessDenied:
		return syscall.EACCES
	case ErrNoSpace:
		return syscall.ENOSPC
	case ErrBufferTooSmall:
		return syscall.ERANGE
	case ErrPeerClosed:
		return syscall.EPIPE
	case ErrShouldWait:
		return syscall.EAGAIN
	case ErrBadState:
		return syscall.EBADF
	default:
		return syscall.EIO
	}
}

// Operation names used in [Error].
const (
	OpOpen      = "open"
	OpAdd       = "add_entry"
	OpRemove    = "remove_entry"
	OpRename    = "rename"
	OpLookup    = "lookup"
	OpReadDir   = "read_dirents"
	OpWatch     = "watch"
	OpUnlink    = "unlink"
	OpGetToken  = "get_token"
	OpRead      = "read"
	OpWrite     = "write"
	OpTruncate  = "truncate"
	OpConstruct = "construct"
)

// Error carries the failing operation and name alongside a Status or a
// pass-through error from a leaf.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with operation context. A nil err yields nil.
func NewError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}

// StatusOf extracts the Status carried by err. Errors that carry no Status
// report ErrIO; nil reports StatusOK.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return ErrIO
}

// ToErrno converts any error into an errno for the FUSE bridge.
func ToErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return StatusOf(err).Errno()
}
