package requests

import "encoding/json"

type NodeType = string

const (
	DirNodeType  NodeType = "dir"
	FileNodeType NodeType = "file"
	LinkNodeType NodeType = "link"
)

// NodeDefDTO is one entry of a tree definition file.
//
// Directories need only a path; missing parents are created. Files take
// their content from the first source that builds. Links add another name
// for the entry already at Target, which may be a directory.
type NodeDefDTO struct {
	Path    string            `json:"path"`
	Type    NodeType          `json:"type"`
	Sources []json.RawMessage `json:"sources,omitempty"`
	Target  string            `json:"target,omitempty"` // link only
}

// SourceConfigDTO is the JSON representation of static source fields
//
// Additional fields depend on the "type" value:
//
// Ex. For type="http" (see [adapters.HTTPSource]):
//
//	URL     string            `json:"url"`
//	Method  *string           `json:"method,omitempty"`
//	Headers map\[string\]string `json:"headers,omitempty"`
//	MaxSize *int64            `json:"maxSize,omitempty"`
//
// See adapters package for built-ins complete field specifications.
type SourceConfigDTO struct {
	Type     string `json:"type"`
	Priority *int   `json:"priority,omitempty"` // Lower number = higher priority, defaults to array index
}
