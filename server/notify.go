package server

import (
	"context"
	"syscall"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// entryNotifier is implemented by *fs.Inode
type entryNotifier interface {
	NotifyEntry(name string) syscall.Errno
}

// notifyLoop drops kernel dentries for every added or removed name until
// ctx is done or events is closed.
func notifyLoop(ctx context.Context, events <-chan pseudofs.WatchMessage, n entryNotifier) {
	logger := util.GetLogger("notifyLoop")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if msg.Event != pseudofs.EventAdded && msg.Event != pseudofs.EventRemoved {
				continue
			}
			for _, name := range msg.Names {
				if e := n.NotifyEntry(name); e != 0 {
					// ENOENT when the kernel never cached the name
					logger.Trace().Str("name", name).Str("errno", e.Error()).Msg("NotifyEntry")
				}
			}
		}
	}
}
