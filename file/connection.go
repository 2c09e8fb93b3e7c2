package file

import (
	"io"
	"sync"

	"github.com/brettbedarf/pseudofs"
)

// Connection is an open handle on a [File] with its own seek offset.
type Connection struct {
	file  *File
	flags pseudofs.OpenFlags

	mu     sync.Mutex // Protects offset and closed
	offset int64
	closed bool
}

func (c *Connection) Entry() pseudofs.DirectoryEntry { return c.file }
func (c *Connection) Flags() pseudofs.OpenFlags      { return c.flags }

// File returns the file this connection is bound to.
func (c *Connection) File() *File { return c.file }

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connection) check(op string, right pseudofs.OpenFlags) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return pseudofs.NewError(op, "", pseudofs.ErrBadState)
	}
	if !c.flags.Has(right) {
		return pseudofs.NewError(op, "", pseudofs.ErrAccessDenied)
	}
	return nil
}

// ReadAt implements io.ReaderAt.
func (c *Connection) ReadAt(p []byte, off int64) (int, error) {
	if err := c.check(pseudofs.OpRead, pseudofs.RightReadable); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, pseudofs.NewError(pseudofs.OpRead, "", pseudofs.ErrInvalidArgs)
	}
	f := c.file
	f.mu.RLock()
	defer f.mu.RUnlock()
	if off >= int64(len(f.content)) {
		return 0, io.EOF
	}
	n := copy(p, f.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes are cut short at the capacity;
// a write that cannot store any byte fails with ErrNoSpace.
func (c *Connection) WriteAt(p []byte, off int64) (int, error) {
	if err := c.check(pseudofs.OpWrite, pseudofs.RightWritable); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, pseudofs.NewError(pseudofs.OpWrite, "", pseudofs.ErrInvalidArgs)
	}
	f := c.file
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeAtLocked(p, off)
}

// writeAtLocked stores p at off. Caller must hold f.mu.Lock().
func (f *File) writeAtLocked(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if uint64(off) >= f.capacity {
		return 0, pseudofs.NewError(pseudofs.OpWrite, "", pseudofs.ErrNoSpace)
	}
	if room := f.capacity - uint64(off); uint64(len(p)) > room {
		p = p[:room]
	}
	end := int(off) + len(p)
	if end > len(f.content) {
		f.content = append(f.content, make([]byte, end-len(f.content))...)
	}
	return copy(f.content[off:], p), nil
}

func (c *Connection) Read(p []byte) (int, error) {
	c.mu.Lock()
	off := c.offset
	c.mu.Unlock()
	n, err := c.ReadAt(p, off)
	c.mu.Lock()
	c.offset += int64(n)
	c.mu.Unlock()
	return n, err
}

// Write writes at the connection offset, or at the end with FlagAppend.
func (c *Connection) Write(p []byte) (int, error) {
	if err := c.check(pseudofs.OpWrite, pseudofs.RightWritable); err != nil {
		return 0, err
	}
	f := c.file
	c.mu.Lock()
	defer c.mu.Unlock()
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.flags.Has(pseudofs.FlagAppend) {
		c.offset = int64(len(f.content))
	}
	n, err := f.writeAtLocked(p, c.offset)
	c.offset += int64(n)
	return n, err
}

func (c *Connection) Seek(offset int64, whence int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = c.offset
	case io.SeekEnd:
		c.file.mu.RLock()
		base = int64(len(c.file.content))
		c.file.mu.RUnlock()
	default:
		return 0, pseudofs.ErrInvalidArgs
	}
	if base+offset < 0 {
		return 0, pseudofs.ErrInvalidArgs
	}
	c.offset = base + offset
	return c.offset, nil
}

// Truncate sets the content length, zero-filling when it grows.
func (c *Connection) Truncate(size uint64) error {
	if err := c.check(pseudofs.OpTruncate, pseudofs.RightWritable); err != nil {
		return err
	}
	f := c.file
	f.mu.Lock()
	defer f.mu.Unlock()
	if size > f.capacity {
		return pseudofs.NewError(pseudofs.OpTruncate, "", pseudofs.ErrNoSpace)
	}
	if size <= uint64(len(f.content)) {
		f.content = f.content[:size]
		return nil
	}
	f.content = append(f.content, make([]byte, int(size)-len(f.content))...)
	return nil
}

func (c *Connection) GetAttrs() (pseudofs.NodeAttributes, error) {
	return c.file.GetAttrs()
}

var (
	_ pseudofs.Connection = (*Connection)(nil)
	_ io.ReaderAt         = (*Connection)(nil)
	_ io.WriterAt         = (*Connection)(nil)
	_ io.ReadWriteSeeker  = (*Connection)(nil)
)
