package strategy

import "github.com/uprootiny/arbitragefx/pkg/types"

// Carry is the funding/liquidation/depeg-driven strategy. Unlike
// Momentum it has no price-action entries of its own: every entry
// is sourced from the same three overlay conditions momentum treats
// as opportunistic add-ons, an open position is exited by momentum's
// exit rules, and it refuses to act at all when its
// required aux data is missing.
type Carry struct{}

func NewCarry() *Carry { return &Carry{} }

func (c *Carry) Name() string { return "carry" }

// AuxRequirements: carry is driven by funding/borrow data above all
// else, so it requires at least funding to be present; liquidation and
// depeg are consulted opportunistically when present.
func (c *Carry) AuxRequirements() []string { return []string{"funding"} }

func (c *Carry) Decide(view types.MarketView, state *types.StrategyState, cfg types.Config) types.Action {
	aux := view.Aux
	ind := view.Indicator

	if !HasRequiredAux(aux, c.AuxRequirements()) {
		return types.Hold()
	}

	if state.Position != 0 {
		if action, exit := momentumExit(view, state, cfg); exit {
			return action
		}
	}

	if aux.HasBorrow && abs(aux.FundingRate) > cfg.FundingHigh &&
		aux.BorrowRate < abs(aux.FundingRate)-cfg.FundingSpread {
		if aux.FundingRate > 0 {
			return types.Sell(cfg.OrderQty)
		}
		return types.Buy(cfg.OrderQty)
	}

	if aux.HasLiquidation && aux.LiquidationScore > cfg.LiqTh {
		if ind.ZMomentum >= 0 {
			return types.Buy(cfg.OrderQty)
		}
		return types.Sell(cfg.OrderQty)
	}

	if aux.HasDepeg && abs(aux.StableDepeg) > cfg.DepegTh {
		if aux.StableDepeg > 0 {
			return types.Sell(cfg.OrderQty)
		}
		return types.Buy(cfg.OrderQty)
	}

	return types.Hold()
}
