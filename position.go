package pseudofs

import "fmt"

type positionKind uint8

const (
	positionStart positionKind = iota
	positionName
	positionEnd
)

// TraversalPosition is a resumable cursor into a directory listing. It is a
// plain value owned by whoever drives the listing.
type TraversalPosition struct {
	kind positionKind
	name string
}

// Start is the position before "." has been listed.
func Start() TraversalPosition {
	return TraversalPosition{kind: positionStart}
}

// AtName resumes the listing at name, inclusive.
func AtName(name string) TraversalPosition {
	return TraversalPosition{kind: positionName, name: name}
}

// End is the position after the last entry.
func End() TraversalPosition {
	return TraversalPosition{kind: positionEnd}
}

func (p TraversalPosition) IsStart() bool { return p.kind == positionStart }
func (p TraversalPosition) IsEnd() bool   { return p.kind == positionEnd }

// Name returns the resume name and whether p is a name position.
func (p TraversalPosition) Name() (string, bool) {
	return p.name, p.kind == positionName
}

func (p TraversalPosition) String() string {
	switch p.kind {
	case positionStart:
		return "Start"
	case positionEnd:
		return "End"
	default:
		return fmt.Sprintf("Name(%q)", p.name)
	}
}

// DirentSink receives listing entries. Append reports false when the entry
// did not fit; the sink is then considered sealed.
type DirentSink interface {
	Append(info EntryInfo, name string) bool
}
