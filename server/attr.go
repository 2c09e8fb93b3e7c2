package server

import (
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/pseudofs"
)

const blockSize = 512

// toOpenFlags translates open(2) flags into node open flags.
func toOpenFlags(flags uint32) pseudofs.OpenFlags {
	var of pseudofs.OpenFlags
	switch int(flags) & syscall.O_ACCMODE {
	case syscall.O_RDONLY:
		of |= pseudofs.RightReadable
	case syscall.O_WRONLY:
		of |= pseudofs.RightWritable
	case syscall.O_RDWR:
		of |= pseudofs.RightReadable | pseudofs.RightWritable
	}
	if flags&syscall.O_CREAT != 0 {
		if flags&syscall.O_EXCL != 0 {
			of |= pseudofs.FlagCreateIfAbsent
		} else {
			of |= pseudofs.FlagCreate
		}
	}
	if flags&syscall.O_TRUNC != 0 {
		of |= pseudofs.FlagTruncate
	}
	if flags&syscall.O_APPEND != 0 {
		of |= pseudofs.FlagAppend
	}
	if flags&syscall.O_DIRECTORY != 0 {
		of |= pseudofs.FlagDirectory
	}
	return of
}

// direntMode returns the file type bits for a listing entry.
func direntMode(t pseudofs.DirentType) uint32 {
	switch t {
	case pseudofs.DirentDirectory:
		return syscall.S_IFDIR
	case pseudofs.DirentFile, pseudofs.DirentService:
		return syscall.S_IFREG
	default:
		return 0
	}
}

// fillAttr copies node attributes into the FUSE attribute block.
func fillAttr(out *fuse.Attr, attrs pseudofs.NodeAttributes, ino uint64) {
	out.Ino = ino
	out.Mode = attrs.Mode
	if attrs.Mode&pseudofs.ModeTypeMask == pseudofs.ModeTypeService {
		out.Mode = syscall.S_IFREG | attrs.Mode&^pseudofs.ModeTypeMask
	}
	out.Size = attrs.ContentSize
	out.Blocks = (attrs.StorageSize + blockSize - 1) / blockSize
	out.Nlink = uint32(max(attrs.LinkCount, 1))
	out.Blksize = 4096
	out.Owner = fuse.Owner{
		Uid: uint32(os.Getuid()),
		Gid: uint32(os.Getgid()),
	}
	mtime := time.Unix(0, int64(attrs.ModificationTime))
	ctime := time.Unix(0, int64(attrs.CreationTime))
	if attrs.ModificationTime == 0 {
		mtime = startTime
	}
	if attrs.CreationTime == 0 {
		ctime = mtime
	}
	out.SetTimes(&mtime, &mtime, &ctime)
}

// entryAttrs returns the node's attributes, synthesising them from the
// entry type for leaves that cannot report their own.
func entryAttrs(entry pseudofs.DirectoryEntry) (pseudofs.NodeAttributes, error) {
	if g, ok := entry.(pseudofs.AttrGetter); ok {
		return g.GetAttrs()
	}
	attrs := pseudofs.NodeAttributes{LinkCount: 1}
	switch entry.EntryInfo().Type {
	case pseudofs.DirentDirectory:
		attrs.Mode = pseudofs.ModeTypeDirectory | pseudofs.RightsToPosixModeBits(true, false, true)
	default:
		attrs.Mode = pseudofs.ModeTypeFile | pseudofs.RightsToPosixModeBits(true, false, false)
	}
	return attrs, nil
}

// startTime stands in for nodes that do not track modification times
var startTime = time.Now()
