package strategy_test

import (
	"testing"

	"github.com/uprootiny/arbitragefx/internal/strategy"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

func baseCfg() types.Config {
	cfg := types.DefaultConfig()
	cfg.EdgeHurdle = 0
	cfg.MinHoldCandles = 0
	return cfg
}

func baseView(now int64) types.MarketView {
	return types.MarketView{
		Symbol: "X",
		Now:    now,
		Candle: types.Candle{Ts: now, Close: 100, Volume: 10},
		Indicator: types.IndicatorSnapshot{
			EMAFast: 100, EMASlow: 100, VolRatio: 1, Ready: true,
		},
		Aux: types.EmptyAuxBundle(),
	}
}

func TestBranch1StartDelay(t *testing.T) {
	cfg := baseCfg()
	cfg.StartDelay = 1000
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionHold {
		t.Fatalf("expected Hold during start delay, got %v", action.Kind)
	}
}

func TestBranch2VolPause(t *testing.T) {
	cfg := baseCfg()
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Indicator.ZVol = cfg.VolPauseMult + 1
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionHold {
		t.Fatalf("expected Hold on vol pause, got %v", action.Kind)
	}
}

func TestBranch6EdgeHurdleBlocksEntry(t *testing.T) {
	cfg := baseCfg()
	cfg.EdgeHurdle = 1000 // unreachable
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Indicator.ZMomentum = 5
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionHold {
		t.Fatalf("expected Hold below edge hurdle, got %v", action.Kind)
	}
}

func TestBranch7FundingCarryOverlay(t *testing.T) {
	cfg := baseCfg()
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Aux = types.AuxBundle{
		HasFunding: true, FundingRate: 0.01,
		HasBorrow: true, BorrowRate: 0,
	}
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionSell {
		t.Fatalf("expected Sell on positive funding carry, got %v", action.Kind)
	}
}

func TestBranch8LiquidationCascade(t *testing.T) {
	cfg := baseCfg()
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Aux = types.AuxBundle{HasLiquidation: true, LiquidationScore: 0.9}
	view.Indicator.ZMomentum = 2
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionBuy {
		t.Fatalf("expected Buy on liquidation cascade with positive momentum, got %v", action.Kind)
	}
}

func TestBranch9DepegSnapback(t *testing.T) {
	cfg := baseCfg()
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Aux = types.AuxBundle{HasDepeg: true, StableDepeg: 0.02}
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionSell {
		t.Fatalf("expected Sell (fade) on positive depeg, got %v", action.Kind)
	}
}

func TestBranch10StopLossBypassesMinHold(t *testing.T) {
	cfg := baseCfg()
	cfg.MinHoldCandles = 100
	cfg.StopLoss = 0.01
	state := types.NewStrategyState("s", 1000, 0)
	state.Position = 1
	state.EntryPrice = 100
	state.LastTradeTs = 0
	view := baseView(10)
	view.Candle.Close = 98 // -2% move against a long
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionClose {
		t.Fatalf("expected stop-loss Close regardless of min-hold, got %v", action.Kind)
	}
}

func TestBranch10TakeProfitRespectsMinHold(t *testing.T) {
	cfg := baseCfg()
	cfg.MinHoldCandles = 5
	cfg.CandleSecs = 60
	cfg.TakeProfit = 0.01
	state := types.NewStrategyState("s", 1000, 0)
	state.Position = 1
	state.EntryPrice = 100
	state.LastTradeTs = 0
	view := baseView(60) // only 1 candle elapsed, below min hold
	view.Candle.Close = 102
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind == types.ActionClose {
		t.Fatalf("take-profit should not fire before min hold elapses")
	}
}

func TestBranch12ScoreEntryWithTrendConfirmation(t *testing.T) {
	cfg := baseCfg()
	cfg.EntryTh = 1.0
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Indicator.EMAFast = 101
	view.Indicator.EMASlow = 100
	view.Indicator.ZMomentum = 2
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionBuy {
		t.Fatalf("expected Buy on trend-confirmed positive score, got %v", action.Kind)
	}
}

func TestBranch13StrongTrendOverride(t *testing.T) {
	cfg := baseCfg()
	cfg.EntryTh = 1000 // make score-based entry unreachable
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Indicator.EMAFast = 110
	view.Indicator.EMASlow = 100 // 10% gap: strong trend
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionBuy {
		t.Fatalf("expected Buy on strong trend override, got %v", action.Kind)
	}
}

func TestBranch14DefaultHold(t *testing.T) {
	cfg := baseCfg()
	cfg.EntryTh = 1000
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionHold {
		t.Fatalf("expected default Hold, got %v", action.Kind)
	}
}

// S4 — aux freshness gating: carry must Hold without funding; momentum
// must still operate since it does not list funding as required.
func TestS4AuxFreshnessGating(t *testing.T) {
	cfg := baseCfg()
	cfg.EntryTh = 1.0
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Indicator.EMAFast = 110
	view.Indicator.EMASlow = 100
	view.Aux = types.AuxBundle{} // has_funding = false

	carryAction := strategy.NewCarry().Decide(view, &state, cfg)
	if carryAction.Kind != types.ActionHold {
		t.Fatalf("carry strategy must Hold without funding data, got %v", carryAction.Kind)
	}

	momentumAction := strategy.NewMomentum().Decide(view, &state, cfg)
	if momentumAction.Kind != types.ActionBuy {
		t.Fatalf("momentum strategy must still operate without funding data, got %v", momentumAction.Kind)
	}
}

// Branch 3 parity: momentum requires no aux fields, so an entirely
// empty bundle must not gate it the way it gates carry.
func TestBranch3MomentumNeedsNoAux(t *testing.T) {
	if reqs := strategy.NewMomentum().AuxRequirements(); len(reqs) != 0 {
		t.Fatalf("momentum must not require aux data, got %v", reqs)
	}
	if !strategy.HasRequiredAux(types.EmptyAuxBundle(), strategy.NewMomentum().AuxRequirements()) {
		t.Fatalf("empty aux bundle must satisfy momentum's requirements")
	}
}

// Branch 5: the stretch term joins the score only when mean-reversion
// aligns with the trend or the trend is weak. A strong uptrend with
// price stretched above VWAP must not have the stretch term drag the
// score below the entry threshold.
func TestBranch5StretchContribSuppressedAgainstStrongTrend(t *testing.T) {
	cfg := baseCfg()
	cfg.EntryTh = 1.0
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Indicator.EMAFast = 110
	view.Indicator.EMASlow = 100 // strong uptrend
	view.Indicator.ZMomentum = 1.5
	view.Indicator.ZStretch = 10 // would contribute -4 if counted
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionBuy {
		t.Fatalf("stretch term must be suppressed against a strong aligned trend, got %v", action.Kind)
	}
}

func TestBranch10TimeStopAfterMinHold(t *testing.T) {
	cfg := baseCfg()
	cfg.MinHoldCandles = 0
	cfg.CandleSecs = 60
	cfg.TimeStop = 600
	cfg.TakeProfit = 100 // unreachable
	cfg.StopLoss = 100   // unreachable
	state := types.NewStrategyState("s", 1000, 0)
	state.Position = 1
	state.EntryPrice = 100
	state.LastTradeTs = 0
	view := baseView(601)
	view.Candle.Close = 100
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionClose {
		t.Fatalf("expected time-stop Close after %ds held, got %v", cfg.TimeStop, action.Kind)
	}
}

func TestBranch10ExitThresholdOnScoreFlip(t *testing.T) {
	cfg := baseCfg()
	cfg.MinHoldCandles = 0
	cfg.EntryTh = 1.0
	cfg.TakeProfit = 100
	cfg.StopLoss = 100
	cfg.TimeStop = 1 << 40
	state := types.NewStrategyState("s", 1000, 0)
	state.Position = 1
	state.EntryPrice = 100
	state.LastTradeTs = 0
	view := baseView(60)
	view.Candle.Close = 100
	view.Indicator.ZMomentum = -2 // hard flip against a long
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionClose {
		t.Fatalf("expected exit-threshold Close on score flip, got %v", action.Kind)
	}
}

// Branch 11, quiet regime: entries follow z_momentum alone.
func TestBranch11LowVolRegimeFollowsMomentum(t *testing.T) {
	cfg := baseCfg()
	cfg.EntryTh = 1.0
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Indicator.VolRatio = cfg.VolLow / 2
	view.Indicator.ZMomentum = 1.5
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionBuy {
		t.Fatalf("expected momentum-following Buy in quiet regime, got %v", action.Kind)
	}
}

// Branch 11, choppy regime: only trend-aligned mean reversion trades;
// a strong trend alone must not (the branch 13 override is gated off).
func TestBranch11HighVolRegimeMeanRevertsOnlyWhenAligned(t *testing.T) {
	cfg := baseCfg()
	cfg.EntryTh = 1.0
	state := types.NewStrategyState("s", 1000, 0)

	view := baseView(10)
	view.Indicator.VolRatio = cfg.VolHigh * 2
	view.Indicator.EMAFast = 110
	view.Indicator.EMASlow = 100 // uptrend
	view.Indicator.ZStretch = -2 // price below VWAP: fade side is Buy, aligned
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionBuy {
		t.Fatalf("expected aligned mean-reversion Buy in choppy regime, got %v", action.Kind)
	}

	view.Indicator.ZStretch = 2 // fade side is Sell, against the uptrend
	action = strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionHold {
		t.Fatalf("expected Hold when mean reversion opposes the trend in choppy regime, got %v", action.Kind)
	}
}

func TestEntrySizingUsesOrderQty(t *testing.T) {
	cfg := baseCfg()
	cfg.EntryTh = 1.0
	cfg.OrderQty = 0.01
	state := types.NewStrategyState("s", 1000, 0)
	view := baseView(10)
	view.Indicator.EMAFast = 101
	view.Indicator.EMASlow = 100
	view.Indicator.ZMomentum = 2
	action := strategy.NewMomentum().Decide(view, &state, cfg)
	if action.Kind != types.ActionBuy || action.Qty != 0.01 {
		t.Fatalf("expected Buy of ORDER_QTY 0.01, got %v qty %v", action.Kind, action.Qty)
	}
}
