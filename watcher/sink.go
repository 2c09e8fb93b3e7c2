package watcher

import (
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/pseudofs"
)

// ChannelSink is a bounded, non-blocking [pseudofs.WatcherSink]. Messages
// that do not fit are dropped and counted.
type ChannelSink struct {
	ch      chan pseudofs.WatchMessage
	mu      sync.RWMutex // Protects closed and closing ch
	closed  bool
	dropped atomic.Uint64
}

func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{ch: make(chan pseudofs.WatchMessage, capacity)}
}

func (s *ChannelSink) Send(msg pseudofs.WatchMessage) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return pseudofs.ErrPeerClosed
	}
	select {
	case s.ch <- msg:
		return nil
	default:
		s.dropped.Add(1)
		return pseudofs.ErrShouldWait
	}
}

// Events returns the receive side. It is closed by Close.
func (s *ChannelSink) Events() <-chan pseudofs.WatchMessage {
	return s.ch
}

// Dropped returns how many messages were discarded because the channel was full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close ends the subscription; the next Send reports ErrPeerClosed.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

var _ pseudofs.WatcherSink = (*ChannelSink)(nil)
