package pseudofs

import (
	"strings"

	"github.com/brettbedarf/pseudofs/fspath"
)

// OpenFlags describes the rights and behaviour requested by an open.
type OpenFlags uint32

const (
	RightReadable   OpenFlags = 0x00000001
	RightWritable   OpenFlags = 0x00000002
	RightExecutable OpenFlags = 0x00000008

	FlagCreate         OpenFlags = 0x00010000
	FlagCreateIfAbsent OpenFlags = 0x00020000
	FlagTruncate       OpenFlags = 0x00040000
	FlagDirectory      OpenFlags = 0x00080000
	FlagAppend         OpenFlags = 0x00100000
	FlagNodeReference  OpenFlags = 0x00400000
	FlagDescribe       OpenFlags = 0x00800000
	FlagNotDirectory   OpenFlags = 0x02000000

	RightsMask = RightReadable | RightWritable | RightExecutable
)

// Has reports whether every bit in want is set.
func (f OpenFlags) Has(want OpenFlags) bool {
	return f&want == want
}

// Any reports whether at least one bit in want is set.
func (f OpenFlags) Any(want OpenFlags) bool {
	return f&want != 0
}

func (f OpenFlags) String() string {
	names := []struct {
		flag OpenFlags
		name string
	}{
		{RightReadable, "READABLE"},
		{RightWritable, "WRITABLE"},
		{RightExecutable, "EXECUTABLE"},
		{FlagCreate, "CREATE"},
		{FlagCreateIfAbsent, "CREATE_IF_ABSENT"},
		{FlagTruncate, "TRUNCATE"},
		{FlagDirectory, "DIRECTORY"},
		{FlagAppend, "APPEND"},
		{FlagNodeReference, "NODE_REFERENCE"},
		{FlagDescribe, "DESCRIBE"},
		{FlagNotDirectory, "NOT_DIRECTORY"},
	}
	var parts []string
	for _, n := range names {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// Mode type bits, matching the POSIX S_IF* layout.
const (
	ModeTypeMask      uint32 = 0o170000
	ModeTypeDirectory uint32 = 0o040000
	ModeTypeFile      uint32 = 0o100000
	ModeTypeService   uint32 = 0o010000
)

const (
	MaxNameLength = fspath.MaxNameLength
	MaxPathLength = fspath.MaxPathLength
)

// RightsToPosixModeBits returns the rwx bits for user, group and other.
func RightsToPosixModeBits(readable, writable, executable bool) uint32 {
	var mode uint32
	if readable {
		mode |= 0o444
	}
	if writable {
		mode |= 0o222
	}
	if executable {
		mode |= 0o111
	}
	return mode
}

// NodeAttributes is what GetAttrs reports for a node.
type NodeAttributes struct {
	Mode             uint32
	ID               uint64
	ContentSize      uint64
	StorageSize      uint64
	LinkCount        uint64
	CreationTime     uint64
	ModificationTime uint64
}

// IsDir reports whether the attributes describe a directory.
func (a NodeAttributes) IsDir() bool {
	return a.Mode&ModeTypeMask == ModeTypeDirectory
}
