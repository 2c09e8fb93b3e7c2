package adapters

// NOTE: If build bloat becomes a concern for unused adapters
// look into build tags i.e. +build !nohttp

type BuiltInAdapterType = string

const (
	StaticAdapterType BuiltInAdapterType = "static"
	MemoryAdapterType BuiltInAdapterType = "file"
	HTTPAdapterType   BuiltInAdapterType = "http"
)

// RegisterBuiltins registers all built-in adapters on r by default
// or only the specific ones if keys are provided
func RegisterBuiltins(r *Registry, adapters ...BuiltInAdapterType) {
	if len(adapters) == 0 {
		adapters = append(adapters, StaticAdapterType, MemoryAdapterType, HTTPAdapterType)
	}

	for _, key := range adapters {
		switch key {
		case StaticAdapterType:
			RegisterStatic(r)
		case MemoryAdapterType:
			RegisterMemory(r, 0)
		case HTTPAdapterType:
			RegisterHTTP(r)
		}
	}
}
