package channels

import (
	"sort"
	"sync"

	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// Registry indexes adapters by channel.
type Registry struct {
	mu       sync.RWMutex
	adapters map[enums.Channel]Adapter
}

// NewRegistry builds an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[enums.Channel]Adapter{}}
}

// Register adds an adapter; duplicate registration is a wiring bug.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "adapter required")
	}
	ch := adapter.Channel()
	if !ch.IsValid() {
		return pkgerrors.New(pkgerrors.CodeDependency, "adapter reports unknown channel").
			WithDetails(map[string]any{"channel": string(ch)})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[ch]; exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "adapter already registered").
			WithDetails(map[string]any{"channel": string(ch)})
	}
	r.adapters[ch] = adapter
	return nil
}

// Get returns the adapter for a channel.
func (r *Registry) Get(ch enums.Channel) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[ch]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no adapter registered for channel").
			WithDetails(map[string]any{"channel": string(ch)})
	}
	return adapter, nil
}

// List returns registered adapters in stable channel order.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		out = append(out, adapter)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Channel() < out[j].Channel()
	})
	return out
}
