// Package strategy defines the Strategy interface for entry-signal
// evaluation and provides a Registry for managing multiple strategy
// implementations.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"waysystem/internal/domain"
)

// ErrUnknownStrategy is returned when a strategy name is not registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Params is a named mapping of numeric configuration values for one strategy
// invocation. It is treated as immutable for the duration of a run.
type Params map[string]float64

// Get returns the parameter value for key, or def if the key is absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Strategy is the interface that all entry strategies implement. Evaluate is
// a pure function of the supplied bar window: it inspects the indicator
// state at the window's final bar and reports whether the entry condition
// holds there. Implementations must return false, never panic or error,
// when the window is shorter than MinBars.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// MinBars returns the minimum window length required for a meaningful
	// evaluation under the given parameters.
	MinBars(p Params) int

	// Evaluate reports whether the entry condition holds at the final bar of
	// the window. The window is ordered by date ascending.
	Evaluate(window []domain.Bar, p Params) bool
}

// Signal evaluates s on the window and wraps the result as a domain.Signal
// for the window's final bar.
func Signal(s Strategy, window []domain.Bar, p Params) domain.Signal {
	if len(window) == 0 {
		return domain.Signal{Kind: domain.SignalNone}
	}
	last := window[len(window)-1]
	sig := domain.Signal{Code: last.Code, Date: last.Date, Kind: domain.SignalNone}
	if len(window) >= s.MinBars(p) && s.Evaluate(window, p) {
		sig.Kind = domain.SignalEnterLong
	}
	return sig
}

// Registry holds a named collection of strategies for lookup and
// enumeration. Strategies are registered explicitly at startup; there is no
// dynamic discovery.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates
// whether the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Lookup retrieves a strategy by name, returning ErrUnknownStrategy if it is
// not registered.
func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
