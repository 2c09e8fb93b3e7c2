// Package server mounts a pseudo directory tree with go-fuse.
package server

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/config"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// Server exposes a [pseudofs.Directory] as a mounted filesystem with
// abstractions over the underlying FUSE wire protocol implementation
type Server struct {
	cfg    *config.Config
	root   pseudofs.Directory
	scope  *pseudofs.ExecutionScope
	inodes *inodeTable
	server *fuse.Server
}

// New creates a Server for root. Token registry and entry constructor are
// taken from scope; the server runs its background work in a child scope
// that Unmount shuts down.
func New(cfg *config.Config, root pseudofs.Directory, scope *pseudofs.ExecutionScope) *Server {
	return &Server{
		cfg:  cfg,
		root: root,
		scope: pseudofs.NewScope(
			pseudofs.WithContext(scope.Context()),
			pseudofs.WithTokenRegistry(scope.TokenRegistry()),
			pseudofs.WithEntryConstructor(scope.EntryConstructor()),
		),
		inodes: newInodeTable(root),
	}
}

// rights are the rights every directory connection of the mount is opened with
func (s *Server) rights() pseudofs.OpenFlags {
	if s.cfg.ReadOnly {
		return pseudofs.RightReadable | pseudofs.RightExecutable
	}
	return pseudofs.RightReadable | pseudofs.RightWritable | pseudofs.RightExecutable
}

// Serve mounts and serves the filesystem at the given mountPoint.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Server.Serve")
	attrTimeout := time.Duration(s.cfg.AttrTimeout * float64(time.Second))
	entryTimeout := time.Duration(s.cfg.EntryTimeout * float64(time.Second))
	opts := s.cfg.MountOptions
	root := newDirNode(s, s.root)

	srv, err := fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:       opts.Name,
			FsName:     opts.FsName,
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug || s.cfg.LogLvl == util.TraceLevel,
			MaxWrite:   s.cfg.MaxWrite,
			Logger:     util.NewLogLogger("FuseServer", util.TraceLevel),
		},
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
	})
	if err != nil {
		return err
	}
	s.server = srv
	logger.Debug().Str("mnt", mountPoint).Msg("Mounted")
	return nil
}

func (s *Server) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted.
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem and stops its watchers.
func (s *Server) Unmount() error {
	var err error
	if s.server != nil {
		err = s.server.Unmount()
	}
	s.scope.Shutdown()
	s.scope.Wait()
	return err
}

// Context is cancelled once the server shuts down.
func (s *Server) Context() context.Context {
	return s.scope.Context()
}

// errno maps a node error onto the errno returned to the kernel.
func errno(err error) syscall.Errno {
	if err == nil {
		return fs.OK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return syscall.EINTR
	}
	return pseudofs.ToErrno(err)
}
