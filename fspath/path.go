// Package fspath holds validated relative paths consumed one segment at a
// time while an open walks down the tree.
package fspath

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MaxNameLength = 255
	MaxPathLength = 4095
)

// ErrInvalidPath is wrapped by every validation failure.
var ErrInvalidPath = errors.New("invalid path")

// Path is a validated relative path. The zero value is the empty path,
// equivalent to ".".
type Path struct {
	inner string // segments joined by '/', no leading or trailing '/'
	dir   bool   // trailing '/' was present
}

// Dot returns the empty path which refers to the node itself.
func Dot() Path {
	return Path{}
}

// Validate checks s and returns it as a Path.
//
// Rules: non-empty, at most MaxPathLength bytes, relative, no empty, "."
// or ".." segments (a bare "." is the node itself), each segment at most
// MaxNameLength bytes. A single trailing '/' requires the target to be a
// directory.
func Validate(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if len(s) > MaxPathLength {
		return Path{}, fmt.Errorf("%w: longer than %d bytes", ErrInvalidPath, MaxPathLength)
	}
	if strings.HasPrefix(s, "/") {
		return Path{}, fmt.Errorf("%w: %q is absolute", ErrInvalidPath, s)
	}
	p := Path{}
	if strings.HasSuffix(s, "/") {
		p.dir = true
		s = s[:len(s)-1]
	}
	if s == "." {
		return p, nil
	}
	for seg := range strings.SplitSeq(s, "/") {
		if err := ValidateName(seg); err != nil {
			return Path{}, err
		}
	}
	p.inner = s
	return p, nil
}

// MustValidate is Validate for literals known to be valid.
func MustValidate(s string) Path {
	p, err := Validate(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidateName checks a single entry name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty segment", ErrInvalidPath)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q segment", ErrInvalidPath, name)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: segment longer than %d bytes", ErrInvalidPath, MaxNameLength)
	case strings.ContainsRune(name, '/'):
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidPath, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, name)
	}
	return nil
}

// IsEmpty reports whether no segments remain.
func (p Path) IsEmpty() bool {
	return p.inner == ""
}

// IsDot is an alias of IsEmpty.
func (p Path) IsDot() bool {
	return p.inner == ""
}

// IsDir reports whether the path ended in '/'.
func (p Path) IsDir() bool {
	return p.dir
}

// IsSingle reports whether exactly one segment remains.
func (p Path) IsSingle() bool {
	return p.inner != "" && !strings.Contains(p.inner, "/")
}

// Next splits off the first segment. ok is false for the empty path.
func (p Path) Next() (name string, rest Path, ok bool) {
	if p.inner == "" {
		return "", p, false
	}
	name, remainder, _ := strings.Cut(p.inner, "/")
	return name, Path{inner: remainder, dir: p.dir}, true
}

// Peek returns the first segment without consuming it.
func (p Path) Peek() (string, bool) {
	name, _, ok := p.Next()
	return name, ok
}

// Segments returns the remaining segments.
func (p Path) Segments() []string {
	if p.inner == "" {
		return nil
	}
	return strings.Split(p.inner, "/")
}

func (p Path) String() string {
	s := p.inner
	if s == "" {
		s = "."
	}
	if p.dir {
		s += "/"
	}
	return s
}
