package pseudofs

// WatchMask selects which events a watcher receives.
type WatchMask uint32

const (
	WatchDeleted  WatchMask = 1 << 0
	WatchAdded    WatchMask = 1 << 1
	WatchRemoved  WatchMask = 1 << 2
	WatchExisting WatchMask = 1 << 3
	WatchIdle     WatchMask = 1 << 4

	WatchMaskAll = WatchDeleted | WatchAdded | WatchRemoved | WatchExisting | WatchIdle
)

// WatchEvent is the kind of a watcher message.
type WatchEvent uint8

const (
	EventDeleted WatchEvent = iota
	EventAdded
	EventRemoved
	EventExisting
	EventIdle
)

// Mask returns the mask bit that enables e.
func (e WatchEvent) Mask() WatchMask {
	return 1 << WatchMask(e)
}

func (e WatchEvent) String() string {
	switch e {
	case EventDeleted:
		return "deleted"
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventExisting:
		return "existing"
	case EventIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// WatchMessage is one delivery to a watcher. Idle carries no names.
type WatchMessage struct {
	Event WatchEvent
	Names []string
}

// WatcherSink is the receiving end of a watch subscription. Send must not
// block; returning ErrPeerClosed ends the subscription.
type WatcherSink interface {
	Send(msg WatchMessage) error
}

// WatcherKey identifies a subscription within one directory.
type WatcherKey uint64
