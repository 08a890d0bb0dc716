package adapter

import (
	"sync"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/perr"
)

// Registry maps adapter id to its live Store handle. Unlike the
// Catalog's AdapterInfo (the durable, snapshot-visible record), the
// Registry holds the actual connection/handle. It is filled as adapters
// are deployed (Engine.DeployAdapter) and is not rebuilt from the
// catalog.
type Registry struct {
	mu    sync.RWMutex
	stores map[catalog.ID]Store
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{stores: map[catalog.ID]Store{}}
}

// Deploy registers a live Store handle under its own id.
func (r *Registry) Deploy(s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.ID()] = s
}

// Undeploy removes an adapter's live handle.
func (r *Registry) Undeploy(id catalog.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, id)
}

// Get returns the live Store for id, or NotFound.
func (r *Registry) Get(id catalog.ID) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	if !ok {
		return nil, perr.New(perr.NotFound, "adapter %d is not deployed", id)
	}
	return s, nil
}
