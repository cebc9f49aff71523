package llm

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Route is the result of routing a model id.
type Route struct {
	Descriptor Descriptor
	Adapter    Adapter
	Persona    string
}

// Router maps model ids to adapters. Routing never fails: an unknown id gets
// a synthesized descriptor, and a family without a registered adapter gets one
// whose streams fail with KindProviderUnavailable.
type Router struct {
	catalog *Catalog
	logger  hclog.Logger

	mu       sync.RWMutex
	adapters map[Family]Adapter
}

// NewRouter creates a router over the given catalog.
func NewRouter(catalog *Catalog, logger hclog.Logger) *Router {
	if catalog == nil {
		catalog = NewCatalog(DefaultModelID, DefaultDescriptors()...)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Router{
		catalog:  catalog,
		logger:   logger,
		adapters: make(map[Family]Adapter),
	}
}

// Register installs the adapter serving a family.
func (r *Router) Register(family Family, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[family] = adapter
}

// Route returns the descriptor, adapter and persona for modelID. An empty id
// selects the catalog default.
func (r *Router) Route(modelID string) Route {
	if modelID == "" {
		modelID = r.catalog.DefaultModel()
	}

	desc, ok := r.catalog.Lookup(modelID)
	if !ok {
		desc = Descriptor{ID: modelID, Label: modelID, Family: Classify(modelID), Output: OutputText}
		r.logger.Debug("model not in catalog, routing by prefix", "model", modelID, "family", desc.Family)
	}

	r.mu.RLock()
	adapter, ok := r.adapters[desc.Family]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("no adapter registered for family", "family", desc.Family, "model", modelID)
		adapter = unavailableAdapter{family: desc.Family}
	}

	return Route{Descriptor: desc, Adapter: adapter, Persona: PersonaFor(desc)}
}

// Models lists the catalog in configured order.
func (r *Router) Models() []Descriptor {
	return r.catalog.All()
}

// DefaultModel returns the catalog default model id.
func (r *Router) DefaultModel() string {
	return r.catalog.DefaultModel()
}

type unavailableAdapter struct {
	family Family
}

func (a unavailableAdapter) Generate(_ context.Context, req *GenerateRequest) Stream {
	return newErrorStream(errUnavailable(req.Model.ID, "no adapter configured for the "+string(a.family)+" family"))
}
