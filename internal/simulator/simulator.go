// Package simulator implements the deterministic friction-aware
// execution model: latency queueing, slippage, partial fills, and
// fees. Given the same candle sequence, the same
// intents, and the same config, two Simulators must produce
// byte-identical fill sequences — no wall-clock reads, no ambient
// randomness, nothing but the xorshift draw keyed off submitTs and
// strategyIdx.
package simulator

import "github.com/uprootiny/arbitragefx/pkg/types"

// modeParams is the resolved, effective friction parameters for one
// ExecMode preset, overriding the raw config fields.
type modeParams struct {
	feeRate          float64
	slipK            float64
	volSlipMult      float64
	latMin, latMax   float64
	fillRatio        float64
	adverseSelection float64
}

func resolveMode(cfg types.Config) modeParams {
	switch cfg.ExecMode {
	case types.ExecInstant:
		return modeParams{feeRate: 0, slipK: 0, volSlipMult: 0, latMin: 0, latMax: 0, fillRatio: 1}
	case types.ExecMarket:
		return modeParams{feeRate: cfg.FeeRate, slipK: cfg.SlipK, volSlipMult: cfg.VolSlipMult, latMin: cfg.LatMin, latMax: cfg.LatMax, fillRatio: 1}
	case types.ExecLimit:
		return modeParams{
			feeRate:          cfg.FeeRate * 0.5, // maker fee: half the configured taker rate
			slipK:            cfg.SlipK,
			volSlipMult:      cfg.VolSlipMult,
			latMin:           cfg.LatMin * 2,
			latMax:           cfg.LatMax * 2,
			fillRatio:        minF(cfg.MaxFillRatio, 0.3),
			adverseSelection: 0.3, // uncalibrated; exposed as a parameter, not tuned
		}
	case types.ExecRealistic:
		return modeParams{
			feeRate:     cfg.FeeRate * 0.75, // blended maker/taker
			slipK:       cfg.SlipK,
			volSlipMult: cfg.VolSlipMult,
			latMin:      cfg.LatMin,
			latMax:      cfg.LatMax,
			fillRatio:   minF(cfg.MaxFillRatio, 0.6),
		}
	default:
		return modeParams{feeRate: cfg.FeeRate, slipK: cfg.SlipK, volSlipMult: cfg.VolSlipMult, latMin: cfg.LatMin, latMax: cfg.LatMax, fillRatio: cfg.MaxFillRatio}
	}
}

// Simulator owns the set of PendingOrders awaiting fill. It is
// exclusively owned by the run loop; nothing else mutates it.
type Simulator struct {
	mode    modeParams
	pending []*types.PendingOrder
	oneBar  int64 // seconds per candle, used to reschedule partial fills
}

// New returns a simulator configured from cfg. oneBarSecs is the
// candle period, the "one bar" reschedule unit for partial fills.
func New(cfg types.Config, oneBarSecs int64) *Simulator {
	return &Simulator{mode: resolveMode(cfg), oneBar: oneBarSecs}
}

// Submit enqueues an intent as a PendingOrder, computing its earliest
// eligible fill time via the xorshift latency draw. strategyIdx
// differentiates strategies submitting at the same timestamp.
func (s *Simulator) Submit(intent types.Intent, strategyIdx int) {
	delay := Delay(intent.SubmitTs, strategyIdx, s.mode.latMin, s.mode.latMax)
	earliest := intent.SubmitTs + int64(delay)
	qty := intent.Action.Qty
	s.pending = append(s.pending, &types.PendingOrder{
		Intent:         intent,
		OriginalQty:    qty,
		RemainingQty:   qty,
		EarliestFillTs: earliest,
		StrategyIdx:    strategyIdx,
	})
}

// Cancel removes a pending order by client order ID, if still open. It
// returns a zero-qty CancelAck fill the run loop publishes as the
// order's terminal event; returns false if no matching order exists.
func (s *Simulator) Cancel(clientOrderID string) (types.Fill, bool) {
	for i, po := range s.pending {
		if po.Intent.ClientOrderID == clientOrderID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return types.Fill{
				ClientOrderID: clientOrderID,
				StrategyID:    po.Intent.StrategyID,
				Ts:            po.Intent.SubmitTs,
				Price:         0,
				Qty:           0,
				Fee:           0,
			}, true
		}
	}
	return types.Fill{}, false
}

// OnBar advances the simulator by one candle, filling every pending
// order whose EarliestFillTs has arrived up to mode.fillRatio of its
// original quantity. Residuals requeue with EarliestFillTs advanced by
// one bar. Orders are processed in the order they were submitted, so
// fills for a given client_order_id are emitted in submission order.
// sigmaPx is the indicator's current rolling price-return sigma, the
// "vol" term in the slippage formula; the run loop threads it
// through from the same IndicatorSnapshot the strategies see.
func (s *Simulator) OnBar(c types.Candle, sigmaPx float64) []types.Fill {
	var fills []types.Fill
	remaining := s.pending[:0]

	for _, po := range s.pending {
		if c.Ts < po.EarliestFillTs {
			remaining = append(remaining, po)
			continue
		}

		maxFillable := po.OriginalQty * s.mode.fillRatio
		fillQty := po.RemainingQty
		if fillQty > maxFillable {
			fillQty = maxFillable
		}
		if fillQty <= 0 {
			remaining = append(remaining, po)
			continue
		}

		price := fillPrice(po.Intent.Action, c, fillQty, s.mode, sigmaPx)
		fee := absF(fillQty) * price * s.mode.feeRate

		signedQty := fillQty
		if po.Intent.Action.Kind == types.ActionSell {
			signedQty = -fillQty
		}

		fills = append(fills, types.Fill{
			ClientOrderID: po.Intent.ClientOrderID,
			StrategyID:    po.Intent.StrategyID,
			Ts:            c.Ts,
			Price:         price,
			Qty:           signedQty,
			Fee:           fee,
		})

		po.RemainingQty -= fillQty
		if po.RemainingQty > 1e-9 {
			po.EarliestFillTs = c.Ts + s.oneBar
			remaining = append(remaining, po)
		}
	}

	s.pending = remaining
	return fills
}

// fillPrice applies the slippage formula, clamped to a hard 5%
// ceiling, against the candle's close as the reference price. By the
// time an Action reaches the simulator the run loop has already
// translated any Close into a concrete directional Buy/Sell, since
// Close carries no side of its own.
func fillPrice(action types.Action, c types.Candle, qty float64, mode modeParams, sigmaPx float64) float64 {
	ref := c.Close
	slipSign := 1.0
	if action.Kind == types.ActionSell {
		slipSign = -1.0
	}

	volDenom := c.Volume
	if volDenom < 1 {
		volDenom = 1
	}

	impact := mode.slipK*(qty/volDenom) + mode.volSlipMult*sigmaPx
	if impact > 0.05 {
		impact = 0.05
	}
	return ref * (1 + slipSign*impact)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
