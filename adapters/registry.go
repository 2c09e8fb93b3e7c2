package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/internal/util"
)

// Provider turns a raw JSON source definition into a leaf entry.
type Provider interface {
	NewEntry(raw []byte) (pseudofs.DirectoryEntry, error)
}

// ProviderFunc adapts a plain function to [Provider].
type ProviderFunc func(raw []byte) (pseudofs.DirectoryEntry, error)

func (f ProviderFunc) NewEntry(raw []byte) (pseudofs.DirectoryEntry, error) {
	return f(raw)
}

// Registry maps a source "type" key to the [Provider] that builds it.
// Safe for concurrent use.
type Registry struct {
	providers *xsync.Map[string, Provider]
}

func NewRegistry() *Registry {
	return &Registry{providers: xsync.NewMap[string, Provider]()}
}

// Register ties a provider to a type key. The first registration for a key
// wins; later ones are ignored and logged.
func (r *Registry) Register(adapterType string, provider Provider) {
	if _, loaded := r.providers.LoadOrStore(adapterType, provider); loaded {
		logger := util.GetLogger("Adapters")
		logger.Warn().Str("type", adapterType).Msg("Provider already registered")
	}
}

// GetProvider returns the provider registered for adapterType.
func (r *Registry) GetProvider(adapterType string) (Provider, error) {
	p, ok := r.providers.Load(adapterType)
	if !ok {
		return nil, fmt.Errorf("no provider for %q", adapterType)
	}
	return p, nil
}

// NewEntry picks the provider from the "type" field of raw and passes the
// whole definition to it.
func (r *Registry) NewEntry(raw []byte) (pseudofs.DirectoryEntry, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	if meta.Type == "" {
		return nil, fmt.Errorf("source is missing a type")
	}
	p, err := r.GetProvider(meta.Type)
	if err != nil {
		return nil, err
	}
	return p.NewEntry(raw)
}
