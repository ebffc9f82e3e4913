// Package strategy implements the pure decision functions that turn a
// MarketView and a strategy's own state into an Action. Every Decider
// here must be side-effect free: no clock reads, no RNG, no I/O. The
// run loop is the only thing that ever mutates types.StrategyState.
package strategy

import "github.com/uprootiny/arbitragefx/pkg/types"

// Decider is one concrete trading strategy's reducer.
type Decider interface {
	// Name identifies the strategy, used for registry lookup and in
	// WAL/snapshot records.
	Name() string

	// AuxRequirements lists the AuxBundle fields this strategy cannot
	// operate without. If any listed field is absent from the current
	// view, Decide must not be called — the run loop (or Decide itself,
	// defensively) returns Hold.
	AuxRequirements() []string

	// Decide computes the next action. state is read-only here; the
	// run loop applies the returned Action to state via internal/portfolio.
	Decide(view types.MarketView, state *types.StrategyState, cfg types.Config) types.Action
}

// Registry resolves a strategy by name; the factory map is trimmed to
// the two strategies this system ships.
type Registry struct {
	deciders map[string]Decider
}

// NewRegistry returns a registry pre-populated with the momentum and
// carry strategies.
func NewRegistry() *Registry {
	r := &Registry{deciders: make(map[string]Decider)}
	r.Register(NewMomentum())
	r.Register(NewCarry())
	return r
}

func (r *Registry) Register(d Decider) {
	r.deciders[d.Name()] = d
}

func (r *Registry) Get(name string) (Decider, bool) {
	d, ok := r.deciders[name]
	return d, ok
}

// HasRequiredAux reports whether every field in requirements is
// present on aux.
func HasRequiredAux(aux types.AuxBundle, requirements []string) bool {
	for _, req := range requirements {
		switch req {
		case "funding":
			if !aux.HasFunding {
				return false
			}
		case "borrow":
			if !aux.HasBorrow {
				return false
			}
		case "liquidation":
			if !aux.HasLiquidation {
				return false
			}
		case "depeg":
			if !aux.HasDepeg {
				return false
			}
		case "oi":
			if !aux.HasOI {
				return false
			}
		}
	}
	return true
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
