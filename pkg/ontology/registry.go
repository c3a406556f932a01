package ontology

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
)

// Resource is an opened manifest resource.
type Resource struct {
	Config manifest.ResourceConfig
	Lookup Lookup
}

type memoKey struct {
	resource string
	raw      string
}

type memoEntry struct {
	term Term
	err  error
}

// Registry holds the resources of one run and memoises their answers for the
// run's lifetime. It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	resources map[string]*Resource
	order     []string
	memo      map[memoKey]memoEntry
}

func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[string]*Resource),
		memo:      make(map[memoKey]memoEntry),
	}
}

func (r *Registry) Register(cfg manifest.ResourceConfig, lookup Lookup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := strings.ToLower(cfg.ID)
	if _, exists := r.resources[id]; !exists {
		r.order = append(r.order, id)
	}
	r.resources[id] = &Resource{Config: cfg, Lookup: lookup}
}

func (r *Registry) Get(id string) (*Resource, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[strings.ToLower(id)]
	return res, ok
}

// Resolve looks raw up in the named resource.
func (r *Registry) Resolve(ctx context.Context, resourceID, raw string) (Term, error) {
	res, ok := r.Get(resourceID)
	if !ok {
		return Term{}, fmt.Errorf("ontology resource %q not registered", resourceID)
	}

	key := memoKey{resource: strings.ToLower(resourceID), raw: normalise(raw)}
	r.mu.Lock()
	entry, hit := r.memo[key]
	r.mu.Unlock()
	if hit {
		return entry.term, entry.err
	}

	term, err := res.Lookup.Resolve(ctx, res.Config.ID, res.Config.Version, raw)
	if err == nil || errors.Is(err, ErrNotFound) {
		r.mu.Lock()
		r.memo[key] = memoEntry{term: term, err: err}
		r.mu.Unlock()
	}
	return term, err
}

var defaultPrefixes = map[concept.Kind][]string{
	concept.Hpo:            {"HP"},
	concept.MultiHpo:       {"HP"},
	concept.Disease:        {"MONDO", "OMIM", "ORPHA"},
	concept.HgncSymbolOrID: {"HGNC"},
}

// ForConcept returns the resource that validates terms of the given kind:
// the first resource listing the kind under concepts, else the first whose
// prefix is conventional for it (HP for phenotypes, HGNC for genes).
func (r *Registry) ForConcept(kind concept.Kind) (*Resource, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		res := r.resources[id]
		if res.Config.ServesConcept(string(kind)) {
			return res, true
		}
	}
	for _, prefix := range defaultPrefixes[kind] {
		for _, id := range r.order {
			res := r.resources[id]
			if strings.EqualFold(res.Config.Prefix, prefix) {
				return res, true
			}
		}
	}
	return nil, false
}

// ForPrefix returns the resource whose CURIE prefix matches.
func (r *Registry) ForPrefix(prefix string) (*Resource, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if res := r.resources[id]; strings.EqualFold(res.Config.Prefix, prefix) {
			return res, true
		}
	}
	return nil, false
}

// Hierarchy returns the is_a hierarchy of the resource serving prefix, when
// that resource was loaded with one. A graph without is_a edges has none.
func (r *Registry) Hierarchy(prefix string) (Hierarchy, bool) {
	res, ok := r.ForPrefix(prefix)
	if !ok {
		return nil, false
	}
	if g, ok := res.Lookup.(*Graph); ok && len(g.parents) == 0 {
		return nil, false
	}
	h, ok := res.Lookup.(Hierarchy)
	return h, ok
}

// Resources returns the registered configurations in registration order.
func (r *Registry) Resources() []manifest.ResourceConfig {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]manifest.ResourceConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.resources[id].Config)
	}
	return out
}
