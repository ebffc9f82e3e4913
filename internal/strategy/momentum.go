package strategy

import "github.com/uprootiny/arbitragefx/pkg/types"

// Momentum is the z-score-blend strategy: a trend/mean-reversion score
// gated by a minimum expected edge, with three opportunistic overlay
// branches (funding carry, liquidation cascade, depeg snapback) ahead
// of its own entries, and stop-loss/take-profit/time-stop exits once a
// position is open.
//
// Decide evaluates its fourteen branches in strict order; the first
// one whose condition holds returns. It never requires aux data — the
// overlay branches simply no-op when the relevant field is absent.
// Entry sizing is a fixed cfg.OrderQty; the risk gate's exposure limit
// clamps it further when equity cannot support the notional.
type Momentum struct{}

func NewMomentum() *Momentum { return &Momentum{} }

func (m *Momentum) Name() string { return "momentum" }

// AuxRequirements is empty: momentum operates purely on price/volume
// indicators and only opportunistically uses aux data when present.
func (m *Momentum) AuxRequirements() []string { return nil }

func (m *Momentum) Decide(view types.MarketView, state *types.StrategyState, cfg types.Config) types.Action {
	ind := view.Indicator
	aux := view.Aux
	now := view.Now

	// 1. warm-up delay
	if now-state.StartTs < cfg.StartDelay {
		return types.Hold()
	}

	// 2. vol spike pause
	if ind.ZVol > cfg.VolPauseMult {
		return types.Hold()
	}

	// 3. required aux fields (momentum requires none; kept for parity
	// with the carry strategy's identical gate at the same position).
	if !HasRequiredAux(aux, m.AuxRequirements()) {
		return types.Hold()
	}

	// 4. trend
	trend := sign(ind.EMAFast - ind.EMASlow)
	strongTrend := false
	if ind.EMASlow != 0 {
		strongTrend = abs(ind.EMAFast-ind.EMASlow)/abs(ind.EMASlow) > 0.01
	}

	// 5. composite score
	stretchAligned := sign(-ind.ZStretch) == trend
	stretchContrib := 0.0
	if stretchAligned || !strongTrend {
		stretchContrib = -0.4 * ind.ZStretch
	}
	score := 1.0*ind.ZMomentum + 0.3*ind.ZVol + 0.5*ind.ZVolumeSpike + stretchContrib

	// 6. edge hurdle
	expectedEdge := abs(score) * cfg.EdgeScale
	if expectedEdge < cfg.EdgeHurdle {
		return types.Hold()
	}

	// 7. funding carry overlay
	if aux.HasFunding && aux.HasBorrow && abs(aux.FundingRate) > cfg.FundingHigh &&
		aux.BorrowRate < abs(aux.FundingRate)-cfg.FundingSpread {
		if aux.FundingRate > 0 {
			return types.Sell(cfg.OrderQty)
		}
		return types.Buy(cfg.OrderQty)
	}

	// 8. liquidation cascade overlay
	if aux.HasLiquidation && aux.LiquidationScore > cfg.LiqTh {
		if ind.ZMomentum >= 0 {
			return types.Buy(cfg.OrderQty)
		}
		return types.Sell(cfg.OrderQty)
	}

	// 9. depeg snapback overlay
	if aux.HasDepeg && abs(aux.StableDepeg) > cfg.DepegTh {
		if aux.StableDepeg > 0 {
			return types.Sell(cfg.OrderQty)
		}
		return types.Buy(cfg.OrderQty)
	}

	// 10. position exits
	if state.Position != 0 {
		if action, exit := momentumExit(view, state, cfg); exit {
			return action
		}
	}

	// 11. regime switch. Quiet regime: pure momentum, entered off
	// z_momentum alone. Choppy regime: only mean-reversion aligned with
	// the prevailing trend may trade; everything else sits out.
	if ind.VolRatio < cfg.VolLow {
		if ind.ZMomentum > cfg.EntryTh {
			return types.Buy(cfg.OrderQty)
		}
		if ind.ZMomentum < -cfg.EntryTh {
			return types.Sell(cfg.OrderQty)
		}
	} else if ind.VolRatio > cfg.VolHigh {
		fade := sign(-ind.ZStretch)
		if fade != 0 && fade == trend && abs(ind.ZStretch) > cfg.EntryTh {
			if fade > 0 {
				return types.Buy(cfg.OrderQty)
			}
			return types.Sell(cfg.OrderQty)
		}
		return types.Hold()
	}

	// 12. score-based entry with trend confirmation
	if score > cfg.EntryTh && trend >= 0 {
		return types.Buy(cfg.OrderQty)
	}
	if score < -cfg.EntryTh && trend <= 0 {
		return types.Sell(cfg.OrderQty)
	}

	// 13. strong-trend override
	if strongTrend {
		if trend > 0 {
			return types.Buy(cfg.OrderQty)
		}
		return types.Sell(cfg.OrderQty)
	}

	// 14. default
	return types.Hold()
}

// momentumExit evaluates branch 10's sub-conditions. It returns
// (action, true) if an exit fires, (zero, false) otherwise so the
// caller falls through to the remaining branches.
func momentumExit(view types.MarketView, state *types.StrategyState, cfg types.Config) (types.Action, bool) {
	posSign := sign(state.Position)
	closePrice := view.Candle.Close
	movePct := 0.0
	if state.EntryPrice != 0 {
		movePct = (closePrice - state.EntryPrice) / state.EntryPrice * posSign
	}

	// stop-loss always fires, bypassing min_hold_candles
	if movePct <= -cfg.StopLoss {
		return types.CloseAction(), true
	}

	candlesHeld := int64(0)
	if cfg.CandleSecs > 0 {
		candlesHeld = (view.Now - state.LastTradeTs) / cfg.CandleSecs
	}
	if candlesHeld < int64(cfg.MinHoldCandles) {
		return types.Action{}, false
	}

	if movePct >= cfg.TakeProfit {
		return types.CloseAction(), true
	}
	if view.Now-state.LastTradeTs >= cfg.TimeStop {
		return types.CloseAction(), true
	}

	// exit-threshold: the score has flipped hard enough against the
	// open position to exit rather than ride it out.
	ind := view.Indicator
	score := ind.ZMomentum
	if posSign > 0 && score < -cfg.EntryTh {
		return types.CloseAction(), true
	}
	if posSign < 0 && score > cfg.EntryTh {
		return types.CloseAction(), true
	}

	return types.Action{}, false
}
