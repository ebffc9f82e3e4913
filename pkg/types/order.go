package types

import "fmt"

// Intent is an Action annotated with identifiers and a submission
// timestamp, ready for dispatch to the simulator or a live adapter.
type Intent struct {
	StrategyID    string
	ClientOrderID string
	SubmitTs      int64
	Action        Action
	// Forced marks a Close issued by the risk gate rather than the
	// strategy itself, so WAL replay reproduces the forced-close count.
	Forced bool
}

// ClientOrderID builds the fixed CID shape
// CID-{strategy_id}-{submit_ts}-{seq}. Seq must be unique per strategy
// per process for the global-uniqueness invariant to hold.
func ClientOrderID(strategyID string, submitTs int64, seq uint64) string {
	return fmt.Sprintf("CID-%s-%d-%d", strategyID, submitTs, seq)
}

// PendingOrder is simulator-owned bookkeeping for an Intent awaiting
// one or more fills. Partial fills decrement RemainingQty and
// reschedule EarliestFillTs.
type PendingOrder struct {
	Intent         Intent
	OriginalQty    float64
	RemainingQty   float64
	EarliestFillTs int64
	StrategyIdx    int
}

// Fill is an executed (possibly partial) order fill. Qty is signed by
// side: positive for buys, negative for sells. Fee is always
// non-negative.
type Fill struct {
	ClientOrderID string
	StrategyID    string
	Ts            int64
	Price         float64
	Qty           float64
	Fee           float64
}

// Side reports the direction implied by the signed Qty.
func (f Fill) Side() ActionKind {
	if f.Qty >= 0 {
		return ActionBuy
	}
	return ActionSell
}
