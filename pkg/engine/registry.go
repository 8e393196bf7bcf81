package engine

import (
	"fmt"
	"sort"
	"sync"
)

// AIDefinition describes a named AI personality. A definition with a Budget
// is a Monte Carlo AI rolling out with the Baseline personality; otherwise it
// is a scoring AI with the given Weights. A scoring AI without weights ties
// every move and so plays at random.
type AIDefinition struct {
	Name     string             `json:"name"`
	Weights  map[string]float64 `json:"weights,omitempty"`
	Budget   int                `json:"budget,omitempty"`
	Baseline string             `json:"baseline,omitempty"`
}

// IsMonteCarlo reports whether the definition describes a Monte Carlo AI
func (d AIDefinition) IsMonteCarlo() bool {
	return d.Budget > 0
}

func kfe521t() map[string]float64 {
	return map[string]float64{
		"knockout":         5,
		"gotoFlower":       2,
		"riskOfBeingTaken": -0.1,
		"exit":             1,
	}
}

// DefaultDefinitions returns the built-in personalities
func DefaultDefinitions() []AIDefinition {
	horrible := kfe521t()
	for k, v := range horrible {
		horrible[k] = -v
	}
	return []AIDefinition{
		{Name: "#AI_KFE521S3", Weights: map[string]float64{
			"knockout":         5,
			"gotoFlower":       2,
			"gotoSafety":       0.1,
			"leaveSafety":      -0.1,
			"riskOfBeingTaken": -0.1,
			"exit":             1,
		}},
		{Name: "#AI_KFE521T", Weights: kfe521t()},
		{Name: "#AI_Random"},
		{Name: "#AI_Horrible", Weights: horrible},
		{Name: "#AI_KnockoutAndFlower", Weights: map[string]float64{
			"knockout":   5,
			"gotoFlower": 2,
		}},
		{Name: "#AI_MonteCarlo", Budget: 1000, Baseline: "#AI_KFE521T"},
	}
}

type registryEntry struct {
	def    AIDefinition
	policy Policy
}

// Registry holds the named AIs. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
	mcOpts  []MonteCarloOption
	gen     uint64
}

// NewRegistry creates an empty registry. opts are applied to every Monte
// Carlo AI it builds.
func NewRegistry(opts ...MonteCarloOption) *Registry {
	return &Registry{
		entries: make(map[string]registryEntry),
		mcOpts:  opts,
	}
}

// DefaultRegistry returns a registry with the built-in personalities
func DefaultRegistry(opts ...MonteCarloOption) *Registry {
	r := NewRegistry(opts...)
	if err := r.Replace(DefaultDefinitions()); err != nil {
		// The built-in definitions are known to be valid
		panic(err)
	}
	return r
}

// Get returns the AI with the given name
func (r *Registry) Get(name string) (Policy, error) {
	p, _, err := r.Lookup(name)
	return p, err
}

// Lookup returns the named policy together with the generation it belongs to.
func (r *Registry) Lookup(name string) (Policy, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, r.gen, fmt.Errorf("%w: %q", ErrUnknownAI, name)
	}
	return e.policy, r.gen, nil
}

// Definition returns the definition the named AI was built from
func (r *Registry) Definition(name string) (AIDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.def, ok
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Generation counts the changes made to the registry. An AI name means the
// same thing for as long as the generation stays the same.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// Register adds a policy under a new name.
func (r *Registry) Register(name string, p Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("AI %q already registered", name)
	}
	r.entries[name] = registryEntry{def: AIDefinition{Name: name}, policy: p}
	r.gen++
	return nil
}

// Define builds and adds (or overrides) the given personalities. Monte Carlo
// baselines may refer to existing entries or to other definitions in defs.
// Nothing is changed if any definition is invalid.
func (r *Registry) Define(defs []AIDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]registryEntry, len(r.entries)+len(defs))
	for k, v := range r.entries {
		next[k] = v
	}
	if err := r.build(next, defs); err != nil {
		return err
	}
	r.entries = next
	r.gen++
	return nil
}

// Replace swaps the whole set of personalities for the given definitions.
// Nothing is changed if any definition is invalid.
func (r *Registry) Replace(defs []AIDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]registryEntry, len(defs))
	if err := r.build(next, defs); err != nil {
		return err
	}
	r.entries = next
	r.gen++
	return nil
}

// build adds scoring definitions first so Monte Carlo baselines resolve
// regardless of order.
func (r *Registry) build(into map[string]registryEntry, defs []AIDefinition) error {
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("AI definition without a name")
		}
		if d.IsMonteCarlo() {
			continue
		}
		cfg, err := NewScoringConfig(d.Name, d.Weights)
		if err != nil {
			return err
		}
		into[d.Name] = registryEntry{def: d, policy: NewScoringAI(cfg)}
	}

	for _, d := range defs {
		if !d.IsMonteCarlo() {
			continue
		}
		base, ok := into[d.Baseline]
		if !ok {
			return fmt.Errorf("%s: baseline %w: %q", d.Name, ErrUnknownAI, d.Baseline)
		}
		if base.def.IsMonteCarlo() {
			return fmt.Errorf("%s: baseline %q is itself a Monte Carlo AI", d.Name, d.Baseline)
		}
		mc, err := NewMonteCarloAI(d.Budget, base.policy, r.mcOpts...)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		into[d.Name] = registryEntry{def: d, policy: mc}
	}
	return nil
}
