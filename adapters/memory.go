package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/file"
)

// StaticSource is a read-only file with inline content.
type StaticSource struct {
	Content string `json:"content"`
}

// MemorySource is a writable in-memory file. Capacity 0 uses the
// registry default.
type MemorySource struct {
	Content  string  `json:"content,omitempty"`
	Capacity *uint64 `json:"capacity,omitempty"`
}

func RegisterStatic(r *Registry) {
	r.Register(StaticAdapterType, ProviderFunc(func(raw []byte) (pseudofs.DirectoryEntry, error) {
		var src StaticSource
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, err
		}
		return file.NewReadOnly([]byte(src.Content)), nil
	}))
}

// RegisterMemory registers the "file" type; defaultCapacity applies when a
// definition sets none.
func RegisterMemory(r *Registry, defaultCapacity uint64) {
	r.Register(MemoryAdapterType, ProviderFunc(func(raw []byte) (pseudofs.DirectoryEntry, error) {
		var src MemorySource
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, err
		}
		capacity := defaultCapacity
		if src.Capacity != nil {
			capacity = *src.Capacity
		}
		if capacity > 0 && uint64(len(src.Content)) > capacity {
			return nil, fmt.Errorf("content of %d bytes exceeds capacity %d", len(src.Content), capacity)
		}
		return file.NewReadWrite([]byte(src.Content), capacity), nil
	}))
}
