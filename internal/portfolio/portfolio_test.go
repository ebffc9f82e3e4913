package portfolio_test

import (
	"math"
	"testing"

	"github.com/uprootiny/arbitragefx/internal/portfolio"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

func fill(cid string, ts int64, price, qty, fee float64) types.Fill {
	return types.Fill{ClientOrderID: cid, StrategyID: "s", Ts: ts, Price: price, Qty: qty, Fee: fee}
}

func TestWeightedAverageEntryOnSameDirectionFills(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	portfolio.ApplyFill(&state, fill("a", 1, 100, 1, 0))
	portfolio.ApplyFill(&state, fill("b", 2, 110, 1, 0))

	if state.Position != 2 {
		t.Fatalf("position = %v, want 2", state.Position)
	}
	if math.Abs(state.EntryPrice-105) > 1e-9 {
		t.Fatalf("entry price = %v, want 105", state.EntryPrice)
	}
}

func TestFlipRealizesClosedPortionAndResetsEntry(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	portfolio.ApplyFill(&state, fill("a", 1, 100, 1, 0))
	portfolio.ApplyFill(&state, fill("b", 2, 110, -2, 0))

	if state.Position != -1 {
		t.Fatalf("position = %v, want -1 after flip", state.Position)
	}
	if math.Abs(state.RealizedPnL-10) > 1e-9 {
		t.Fatalf("realized = %v, want 10 on the closed long", state.RealizedPnL)
	}
	if state.EntryPrice != 110 {
		t.Fatalf("entry = %v, want the flip fill price 110", state.EntryPrice)
	}
	if state.Wins != 1 {
		t.Fatalf("wins = %d, want 1 completed trip", state.Wins)
	}
}

func TestPositionEntryCoherence(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	portfolio.ApplyFill(&state, fill("a", 1, 100, 1, 0))
	portfolio.ApplyFill(&state, fill("b", 2, 95, -1, 0))

	if state.Position != 0 {
		t.Fatalf("position = %v, want flat", state.Position)
	}
	if state.EntryPrice != 0 {
		t.Fatalf("entry = %v, must be zero when flat", state.EntryPrice)
	}
	if state.Losses != 1 {
		t.Fatalf("losses = %d, want 1", state.Losses)
	}
	if state.LastLossTs != 2 {
		t.Fatalf("last loss ts = %d, want 2", state.LastLossTs)
	}
}

// A position closed across several partial fills of one order must
// count as exactly one round trip, not one per partial.
func TestPartialClosesScoreOneRoundTrip(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	portfolio.ApplyFill(&state, fill("open", 1, 100, 1, 0))
	portfolio.ApplyFill(&state, fill("close", 2, 105, -0.4, 0))
	portfolio.ApplyFill(&state, fill("close", 3, 105, -0.4, 0))
	portfolio.ApplyFill(&state, fill("close", 4, 105, -0.2, 0))

	if state.Position != 0 {
		t.Fatalf("position = %v, want flat", state.Position)
	}
	if got := state.Wins + state.Losses; got != 1 {
		t.Fatalf("wins+losses = %d, want exactly 1 completed trip", got)
	}
	if math.Abs(state.RealizedPnL-5) > 1e-9 {
		t.Fatalf("realized = %v, want 5", state.RealizedPnL)
	}
}

// Partial fills of one client order count as one trade against the
// daily limit; a second order counts again.
func TestTradesTodayCountsOrdersNotFills(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	portfolio.ApplyFill(&state, fill("a", 1, 100, 0.5, 0))
	portfolio.ApplyFill(&state, fill("a", 2, 100, 0.5, 0))
	portfolio.ApplyFill(&state, fill("b", 3, 100, -1, 0))

	if state.TradesToday != 2 {
		t.Fatalf("trades today = %d, want 2", state.TradesToday)
	}
}

// Invariant 2: after any fill and mark, equity equals cash plus
// position at the mark price.
func TestEquityIdentityAfterFillAndMark(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	portfolio.ApplyFill(&state, fill("a", 1, 100, 2, 1.5))
	portfolio.UpdateMark(&state, 103)

	want := state.Cash + state.Position*103
	if math.Abs(state.Equity-want) > 1e-6 {
		t.Fatalf("equity = %v, want %v", state.Equity, want)
	}
}

func TestDrawdownMonotonicity(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	portfolio.ApplyFill(&state, fill("a", 1, 100, 10, 0))

	prev := 0.0
	for _, mark := range []float64{100, 90, 95, 80, 110, 70} {
		portfolio.UpdateMark(&state, mark)
		if state.MaxDrawdown < prev {
			t.Fatalf("max drawdown shrank: %v -> %v at mark %v", prev, state.MaxDrawdown, mark)
		}
		prev = state.MaxDrawdown
	}
}

func TestRollDayResetsCounters(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	state.TradesToday = 7
	state.DayBoundary = 0

	if rolled := portfolio.RollDay(&state, 3600, 0); rolled {
		t.Fatalf("must not roll within the same UTC day")
	}
	if !portfolio.RollDay(&state, 86400+60, 0) {
		t.Fatalf("expected a roll after the UTC day boundary")
	}
	if state.TradesToday != 0 {
		t.Fatalf("trades today = %d, want reset to 0", state.TradesToday)
	}
	if state.DayBoundary != 86400 {
		t.Fatalf("day boundary = %d, want 86400", state.DayBoundary)
	}
}

func TestRollDayHonorsUTCOffset(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	portfolio.RollDay(&state, 3600, 7200) // boundary at 02:00 UTC

	if state.DayBoundary != 7200-86400 {
		t.Fatalf("day boundary = %d, want %d", state.DayBoundary, 7200-86400)
	}
	if !portfolio.RollDay(&state, 7200, 7200) {
		t.Fatalf("expected a roll exactly at the offset boundary")
	}
}

func TestMTMPnLBlendsRealizedAndUnrealized(t *testing.T) {
	state := types.NewStrategyState("s", 10000, 0)
	state.RealizedPnL = -5
	state.Position = 2
	state.EntryPrice = 100

	if got := portfolio.MTMPnL(&state, 90); math.Abs(got-(-25)) > 1e-9 {
		t.Fatalf("mtm = %v, want -25", got)
	}
}
