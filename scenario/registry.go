package scenario

// Registry is the set of playable scenarios, looked up by ID. It is
// assembled once at startup and read-only afterwards, so lookups need
// no locking.
type Registry struct {
	order []string
	byID  map[string]*Scenario
}

// NewRegistry builds a registry from the given scenarios, keeping their
// order for listings.
func NewRegistry(scenarios ...Scenario) *Registry {
	r := &Registry{byID: make(map[string]*Scenario, len(scenarios))}
	for _, sc := range scenarios {
		r.Add(sc)
	}
	return r
}

// Add registers a scenario, replacing any existing one with the same
// ID. It reports whether a replacement happened.
func (r *Registry) Add(sc Scenario) bool {
	_, replaced := r.byID[sc.ID]
	if !replaced {
		r.order = append(r.order, sc.ID)
	}
	r.byID[sc.ID] = &sc
	return replaced
}

// Get returns the scenario registered under id.
func (r *Registry) Get(id string) (*Scenario, bool) {
	sc, ok := r.byID[id]
	return sc, ok
}

// List returns all scenarios in registration order.
func (r *Registry) List() []*Scenario {
	out := make([]*Scenario, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered scenarios.
func (r *Registry) Len() int {
	return len(r.byID)
}
