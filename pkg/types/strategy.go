package types

// ActionKind enumerates the four shapes an Action can take. Direction is
// encoded in the variant, not in a separate sign field.
type ActionKind int

const (
	ActionHold ActionKind = iota
	ActionBuy
	ActionSell
	ActionClose
)

func (k ActionKind) String() string {
	switch k {
	case ActionHold:
		return "hold"
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	case ActionClose:
		return "close"
	default:
		return "unknown"
	}
}

// Action is the decision a strategy reducer returns for one MarketView.
// Qty is always positive; Hold and Close carry a zero Qty.
type Action struct {
	Kind ActionKind
	Qty  float64
}

// Hold is the zero-value, side-effect-free action.
func Hold() Action { return Action{Kind: ActionHold} }

// Buy returns a Buy action for the given positive quantity.
func Buy(qty float64) Action { return Action{Kind: ActionBuy, Qty: qty} }

// Sell returns a Sell action for the given positive quantity.
func Sell(qty float64) Action { return Action{Kind: ActionSell, Qty: qty} }

// CloseAction returns a Close action (flattens the current position).
func CloseAction() Action { return Action{Kind: ActionClose} }

// StrategyState is the exclusively-owned, mutable state of one
// strategy. It is only ever mutated at the run-loop seam; strategies
// read an immutable MarketView and return an Action.
//
// Invariants:
//   - Position == 0 implies EntryPrice == 0.
//   - Equity == Cash + Position*lastMarkPrice, recomputed on every fill
//     and every price tick.
//   - Wins + Losses == completed round trips.
type StrategyState struct {
	ID string

	Position    float64
	EntryPrice  float64
	Cash        float64
	Equity      float64
	RealizedPnL float64

	Wins   uint64
	Losses uint64

	// OpenTripPnL accumulates realized PnL across the partial closes of
	// the current round trip; the trip is scored as a win or loss only
	// once the position fully closes or flips.
	OpenTripPnL float64
	// LastOrderID is the client order ID of the most recently applied
	// fill, so partial fills of one order count as one trade.
	LastOrderID string

	LastTradeTs  int64
	LastLossTs   int64
	TradesToday  uint64
	StartTs      int64
	DayBoundary  int64 // start-of-day epoch seconds for the current trading day

	// PeakEquity tracks the high-water mark used for drawdown bookkeeping.
	PeakEquity float64
	// MaxDrawdown is the largest (positive) fractional drawdown observed.
	MaxDrawdown float64
	// ForcedCloses counts Close actions issued by the risk gate rather
	// than by the strategy itself.
	ForcedCloses uint64
}

// NewStrategyState returns a fresh state seeded with initial cash as
// both cash and equity, consistent with a flat position.
func NewStrategyState(id string, initialCash float64, startTs int64) StrategyState {
	return StrategyState{
		ID:          id,
		Cash:        initialCash,
		Equity:      initialCash,
		PeakEquity:  initialCash,
		StartTs:     startTs,
		DayBoundary: startTs,
	}
}
