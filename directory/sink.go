package directory

import "github.com/brettbedarf/pseudofs"

// direntHeaderSize is the fixed per-entry cost: inode, name length and type.
const direntHeaderSize = 8 + 1 + 1

// Dirent is one listing entry.
type Dirent struct {
	Info pseudofs.EntryInfo
	Name string
}

// BufferSink is a [pseudofs.DirentSink] with a byte budget. Each entry costs
// direntHeaderSize plus the length of its name. Once an entry is refused the
// sink stays sealed.
type BufferSink struct {
	max     int
	used    int
	sealed  bool
	entries []Dirent
}

func NewBufferSink(maxBytes int) *BufferSink {
	return &BufferSink{max: maxBytes}
}

func (s *BufferSink) Append(info pseudofs.EntryInfo, name string) bool {
	if s.sealed {
		return false
	}
	size := direntHeaderSize + len(name)
	if s.used+size > s.max {
		s.sealed = true
		return false
	}
	s.used += size
	s.entries = append(s.entries, Dirent{Info: info, Name: name})
	return true
}

func (s *BufferSink) Entries() []Dirent { return s.entries }
func (s *BufferSink) Len() int          { return len(s.entries) }
func (s *BufferSink) Used() int         { return s.used }
func (s *BufferSink) Sealed() bool      { return s.sealed }

// DirentSize returns what an entry named name costs in a BufferSink.
func DirentSize(name string) int {
	return direntHeaderSize + len(name)
}

var _ pseudofs.DirentSink = (*BufferSink)(nil)
