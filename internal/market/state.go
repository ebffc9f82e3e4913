// Package market owns the per-symbol live view the run loop builds
// before handing it to a strategy: the latest candle, its derived
// indicator snapshot, and the freshest auxiliary bundle merged field
// by field rather than replaced wholesale, since aux signals arrive on
// independent cadences.
package market

import "github.com/uprootiny/arbitragefx/pkg/types"

// State is one symbol's live market view builder.
type State struct {
	symbol string
	ind    indicatorState

	last    types.Candle
	hasLast bool

	aux types.AuxBundle
}

// indicatorState is the minimal interface State needs from
// internal/indicator, kept narrow so tests can fake it.
type indicatorState interface {
	Update(types.Candle) types.IndicatorSnapshot
}

// New returns a market state for symbol, driven by the given
// indicator accumulator.
func New(symbol string, ind indicatorState) *State {
	return &State{symbol: symbol, ind: ind, aux: types.EmptyAuxBundle()}
}

// OnCandle folds a new candle into the indicator accumulator and
// returns the resulting MarketView. Ts must be strictly greater than
// any previously seen candle's Ts for this symbol.
func (s *State) OnCandle(c types.Candle) types.MarketView {
	snap := s.ind.Update(c)
	s.last = c
	s.hasLast = true

	return types.MarketView{
		Symbol:    s.symbol,
		Now:       c.Ts,
		Candle:    c,
		Indicator: snap,
		Aux:       s.aux,
	}
}

// MergeAux folds a freshly observed auxiliary bundle into the
// resident one. Only fields the incoming bundle marks present are
// overwritten, so a feed that only carries funding rate does not
// clobber a liquidation score observed moments earlier on a different
// cadence.
func (s *State) MergeAux(update types.AuxBundle) {
	if update.HasFunding {
		s.aux.FundingRate = update.FundingRate
		s.aux.HasFunding = true
		s.aux.FundingAsOf = update.FundingAsOf
	}
	if update.HasBorrow {
		s.aux.BorrowRate = update.BorrowRate
		s.aux.HasBorrow = true
		s.aux.BorrowAsOf = update.BorrowAsOf
	}
	if update.HasLiquidation {
		s.aux.LiquidationScore = update.LiquidationScore
		s.aux.HasLiquidation = true
		s.aux.LiquidationAsOf = update.LiquidationAsOf
	}
	if update.HasDepeg {
		s.aux.StableDepeg = update.StableDepeg
		s.aux.HasDepeg = true
		s.aux.DepegAsOf = update.DepegAsOf
	}
	if update.HasOI {
		s.aux.OpenInterest = update.OpenInterest
		s.aux.HasOI = true
		s.aux.OIAsOf = update.OIAsOf
	}
}

// AuxStaleness reports, for each present aux field, how many seconds
// old it is relative to now. A strategy uses this to decide whether a
// signal is too stale to act on.
func (s *State) AuxStaleness(now int64) map[string]int64 {
	out := make(map[string]int64, 5)
	if s.aux.HasFunding {
		out["funding"] = now - s.aux.FundingAsOf
	}
	if s.aux.HasBorrow {
		out["borrow"] = now - s.aux.BorrowAsOf
	}
	if s.aux.HasLiquidation {
		out["liquidation"] = now - s.aux.LiquidationAsOf
	}
	if s.aux.HasDepeg {
		out["depeg"] = now - s.aux.DepegAsOf
	}
	if s.aux.HasOI {
		out["oi"] = now - s.aux.OIAsOf
	}
	return out
}

// LastCandle returns the most recently applied candle and whether one
// has been applied yet.
func (s *State) LastCandle() (types.Candle, bool) {
	return s.last, s.hasLast
}
