// Package watcher keeps the watch subscriptions of a single directory and
// fans events out to them.
package watcher

import (
	"errors"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/internal/util"
)

type subscription struct {
	mask pseudofs.WatchMask
	sink pseudofs.WatcherSink
}

// Registry holds the subscriptions of one directory.
//
// NOTE: Registry is not safe for concurrent use. The owning directory guards
// it with the same lock that guards its entries so that a snapshot of names
// and the events that follow it are totally ordered.
type Registry struct {
	subs    map[pseudofs.WatcherKey]*subscription
	lastKey pseudofs.WatcherKey
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[pseudofs.WatcherKey]*subscription)}
}

// Add registers sink and returns its key and a controller for the initial
// deliveries.
func (r *Registry) Add(mask pseudofs.WatchMask, sink pseudofs.WatcherSink) (pseudofs.WatcherKey, *Controller) {
	r.lastKey++
	key := r.lastKey
	r.subs[key] = &subscription{mask: mask, sink: sink}
	return key, &Controller{registry: r, key: key}
}

// Remove drops the subscription; unknown keys are ignored.
func (r *Registry) Remove(key pseudofs.WatcherKey) bool {
	if _, ok := r.subs[key]; !ok {
		return false
	}
	delete(r.subs, key)
	return true
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	return len(r.subs)
}

// Send delivers event to every subscription whose mask includes it.
func (r *Registry) Send(event pseudofs.WatchEvent, names ...string) {
	if len(r.subs) == 0 {
		return
	}
	msg := pseudofs.WatchMessage{Event: event, Names: names}
	for key, sub := range r.subs {
		if sub.mask&event.Mask() == 0 {
			continue
		}
		r.deliver(key, sub, msg)
	}
}

// Clear drops every subscription.
func (r *Registry) Clear() {
	clear(r.subs)
}

func (r *Registry) deliver(key pseudofs.WatcherKey, sub *subscription, msg pseudofs.WatchMessage) {
	err := sub.sink.Send(msg)
	if err == nil {
		return
	}
	logger := util.GetLogger("Watchers.Send")
	if errors.Is(err, pseudofs.ErrPeerClosed) {
		logger.Debug().Uint64("key", uint64(key)).Msg("Watcher peer closed, dropping subscription")
		delete(r.subs, key)
		return
	}
	logger.Trace().Err(err).Uint64("key", uint64(key)).Str("event", msg.Event.String()).Msg("Watcher delivery failed")
}

// Controller addresses one subscription in a [Registry].
type Controller struct {
	registry *Registry
	key      pseudofs.WatcherKey
}

func (c *Controller) Key() pseudofs.WatcherKey {
	return c.key
}

// Send delivers event to this subscription only, honouring its mask.
func (c *Controller) Send(event pseudofs.WatchEvent, names ...string) {
	sub, ok := c.registry.subs[c.key]
	if !ok || sub.mask&event.Mask() == 0 {
		return
	}
	c.registry.deliver(c.key, sub, pseudofs.WatchMessage{Event: event, Names: names})
}

// SendExisting sends the existing-names batch followed by the idle marker.
func (c *Controller) SendExisting(names []string) {
	c.Send(pseudofs.EventExisting, names...)
	c.Send(pseudofs.EventIdle)
}
