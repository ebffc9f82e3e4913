// Package portfolio applies fills to a strategy's exclusively-owned
// StrategyState: weighted-average entry on same-direction fills,
// realized PnL on position flips, and equity/drawdown bookkeeping on
// every price tick. Everything here is plain float64 arithmetic so the
// state stays byte-hashable for replay verification.
package portfolio

import "github.com/uprootiny/arbitragefx/pkg/types"

const daySecs = 86400

// ApplyFill folds one fill into state per the weighted-average entry
// rule, realizing PnL on the closed portion of any flip. A round trip
// is scored as a win or loss only once the position fully closes or
// flips sign, so partial closes of one position count as one trip.
// state is mutated in place; the run loop and WAL recovery are the
// only callers.
func ApplyFill(state *types.StrategyState, fill types.Fill) {
	state.Cash -= fill.Qty*fill.Price + fill.Fee
	state.LastTradeTs = fill.Ts
	if fill.ClientOrderID != state.LastOrderID {
		state.TradesToday++
		state.LastOrderID = fill.ClientOrderID
	}

	oldPos := state.Position
	newPos := oldPos + fill.Qty
	if absF(newPos) < 1e-9 {
		// Float residue left by summing partial closes (1-0.4-0.4-0.2)
		// is a flat position, not a flip.
		newPos = 0
	}

	switch {
	case oldPos == 0:
		state.EntryPrice = fill.Price

	case sameSign(oldPos, fill.Qty):
		// Weighted-average entry: new_entry = (|old|*old_entry +
		// |fill|*fill_price) / (|old| + |fill|).
		oldAbs := absF(oldPos)
		fillAbs := absF(fill.Qty)
		state.EntryPrice = (oldAbs*state.EntryPrice + fillAbs*fill.Price) / (oldAbs + fillAbs)

	default:
		// Opposing fill: realize PnL on the closed portion, then — if
		// the position flips sign — reset entry to the fill price for
		// the residual.
		closedQty := absF(fill.Qty)
		if closedQty > absF(oldPos) {
			closedQty = absF(oldPos)
		}
		realized := closedQty * (fill.Price - state.EntryPrice) * sign(oldPos)
		state.RealizedPnL += realized
		state.OpenTripPnL += realized

		tripDone := newPos == 0 || !sameSign(newPos, oldPos)
		if tripDone {
			if state.OpenTripPnL > 0 {
				state.Wins++
			} else if state.OpenTripPnL < 0 {
				state.Losses++
				state.LastLossTs = fill.Ts
			}
			state.OpenTripPnL = 0
		}

		if !sameSign(newPos, oldPos) && newPos != 0 {
			// flipped sign: residual opens at the fill price.
			state.EntryPrice = fill.Price
		}
	}

	state.Position = newPos
	if state.Position == 0 {
		state.EntryPrice = 0
	}
}

// UpdateMark recomputes equity and drawdown bookkeeping from the
// latest mark price. It must be called on every price tick, not only
// on fills, since equity must reflect live unrealized PnL.
func UpdateMark(state *types.StrategyState, markPrice float64) {
	state.Equity = state.Cash + state.Position*markPrice
	if state.Equity > state.PeakEquity {
		state.PeakEquity = state.Equity
	}
	if state.PeakEquity > 0 {
		drawdown := (state.PeakEquity - state.Equity) / state.PeakEquity
		if drawdown > state.MaxDrawdown {
			state.MaxDrawdown = drawdown
		}
	}
}

// RollDay resets the per-day counters when ts crosses into a new
// trading day. Days roll at boundaryOffsetSecs past UTC midnight.
// Returns true if a roll happened.
func RollDay(state *types.StrategyState, ts, boundaryOffsetSecs int64) bool {
	day := dayStart(ts, boundaryOffsetSecs)
	if day == state.DayBoundary {
		return false
	}
	state.DayBoundary = day
	state.TradesToday = 0
	return true
}

func dayStart(ts, offset int64) int64 {
	rem := (ts - offset) % daySecs
	if rem < 0 {
		rem += daySecs
	}
	return ts - rem
}

// MTMPnL returns realized PnL plus the unrealized PnL of the current
// position at markPrice — the mark-to-market figure the risk gate's
// daily-loss guard compares against initial equity.
func MTMPnL(state *types.StrategyState, markPrice float64) float64 {
	return state.RealizedPnL + state.Position*(markPrice-state.EntryPrice)
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
