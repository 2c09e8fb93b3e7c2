package requests

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/pseudofs/internal/util"
)

// LoadFile reads a tree definition list from a JSON (.json) or YAML
// (.yaml, .yml) file.
func LoadFile(path string) ([]NodeDefDTO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return Unmarshal(data)
	case ".yaml", ".yml":
		return UnmarshalYAML(data)
	default:
		return nil, fmt.Errorf("unknown nodes file extension: %s", path)
	}
}

// Unmarshal parses a JSON list of node definitions.
func Unmarshal(data []byte) ([]NodeDefDTO, error) {
	var defs []NodeDefDTO
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	return defs, nil
}

// UnmarshalYAML parses a YAML list of node definitions. Sources are
// re-encoded as JSON so adapters see the same input either way.
func UnmarshalYAML(data []byte) ([]NodeDefDTO, error) {
	var generic []map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to convert nodes: %w", err)
	}
	return Unmarshal(raw)
}

// sortedSources orders sources by priority, defaulting to their index.
// Ties keep definition order.
func sortedSources(sources []json.RawMessage) ([]json.RawMessage, error) {
	type ranked struct {
		raw      json.RawMessage
		priority int
	}
	list := make([]ranked, 0, len(sources))
	for i, raw := range sources {
		var dto SourceConfigDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		list = append(list, ranked{raw: raw, priority: util.ValueOr(dto.Priority, i)})
	}
	sort.SliceStable(list, func(a, b int) bool { return list[a].priority < list[b].priority })

	out := make([]json.RawMessage, len(list))
	for i, r := range list {
		out[i] = r.raw
	}
	return out, nil
}
