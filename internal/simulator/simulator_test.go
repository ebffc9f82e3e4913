package simulator_test

import (
	"testing"

	"github.com/uprootiny/arbitragefx/internal/simulator"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

func limitCfg() types.Config {
	cfg := types.DefaultConfig()
	cfg.ExecMode = types.ExecLimit
	cfg.MaxFillRatio = 1.0
	cfg.FeeRate = 0.001
	cfg.SlipK = 0
	cfg.VolSlipMult = 0
	cfg.LatMin = 0
	cfg.LatMax = 0
	return cfg
}

// TestPartialFillConservesQuantity covers invariant 9 and scenario S5:
// a limit order's remaining quantity is fully accounted for across
// however many bars it takes to exhaust it, no more and no less.
func TestPartialFillConservesQuantity(t *testing.T) {
	cfg := limitCfg()
	sim := simulator.New(cfg, 60)

	intent := types.Intent{
		StrategyID:    "momentum",
		ClientOrderID: "CID-momentum-0-1",
		SubmitTs:      0,
		Action:        types.Buy(10),
	}
	sim.Submit(intent, 0)

	var totalFilled float64
	for i := 0; i < 10; i++ {
		c := types.Candle{Ts: int64(i) * 60, Open: 100, High: 100, Low: 100, Close: 100, Volume: 100}
		for _, f := range sim.OnBar(c, 0) {
			totalFilled += f.Qty
		}
	}

	if diff := totalFilled - 10; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected total filled qty to converge to 10, got %v", totalFilled)
	}
}

// TestLatencyWithinConfiguredBounds covers invariant 10: an order's
// earliest fill time must land within [submitTs+LatMin, submitTs+LatMax]
// for every (submitTs, strategyIdx) draw.
func TestLatencyWithinConfiguredBounds(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.ExecMode = types.ExecMarket
	cfg.LatMin = 1
	cfg.LatMax = 5

	for submitTs := int64(0); submitTs < 50; submitTs++ {
		for strategyIdx := 0; strategyIdx < 3; strategyIdx++ {
			d := simulator.Delay(submitTs, strategyIdx, cfg.LatMin, cfg.LatMax)
			if d < cfg.LatMin || d > cfg.LatMax {
				t.Fatalf("delay %v out of bounds [%v,%v] for ts=%d idx=%d", d, cfg.LatMin, cfg.LatMax, submitTs, strategyIdx)
			}
		}
	}
}

// TestInstantModeFillsImmediatelyAtClose covers the ExecInstant preset:
// zero latency, zero fee, full fill ratio, fill price equal to the
// candle close.
func TestInstantModeFillsImmediatelyAtClose(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.ExecMode = types.ExecInstant
	sim := simulator.New(cfg, 60)

	intent := types.Intent{StrategyID: "momentum", ClientOrderID: "CID-1", SubmitTs: 0, Action: types.Buy(2)}
	sim.Submit(intent, 0)

	c := types.Candle{Ts: 0, Open: 100, High: 100, Low: 100, Close: 100, Volume: 10}
	fills := sim.OnBar(c, 0)
	if len(fills) != 1 {
		t.Fatalf("expected exactly one fill in instant mode, got %d", len(fills))
	}
	if fills[0].Price != 100 {
		t.Fatalf("expected fill at close price 100, got %v", fills[0].Price)
	}
	if fills[0].Fee != 0 {
		t.Fatalf("expected zero fee in instant mode, got %v", fills[0].Fee)
	}
	if fills[0].Qty != 2 {
		t.Fatalf("expected full qty 2 filled immediately, got %v", fills[0].Qty)
	}
}

// TestSlippageClampedAtFivePercent covers the slippage formula's hard
// ceiling: an extreme volume/size ratio must never push the fill price
// more than 5% away from the candle close.
func TestSlippageClampedAtFivePercent(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.ExecMode = types.ExecMarket
	cfg.SlipK = 1000 // deliberately extreme to force the clamp
	cfg.VolSlipMult = 0
	cfg.LatMin = 0
	cfg.LatMax = 0
	sim := simulator.New(cfg, 60)

	intent := types.Intent{StrategyID: "momentum", ClientOrderID: "CID-2", SubmitTs: 0, Action: types.Buy(5)}
	sim.Submit(intent, 0)

	c := types.Candle{Ts: 0, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	fills := sim.OnBar(c, 0)
	if len(fills) != 1 {
		t.Fatalf("expected one fill, got %d", len(fills))
	}
	maxPrice := 100 * 1.05
	if fills[0].Price > maxPrice+1e-9 {
		t.Fatalf("expected slippage clamped to 5%%, fill price %v exceeds %v", fills[0].Price, maxPrice)
	}
}

// TestCancelRemovesPendingOrder covers the simulator's cancel path: a
// cancelled order must never fill on a later bar.
func TestCancelRemovesPendingOrder(t *testing.T) {
	cfg := limitCfg()
	sim := simulator.New(cfg, 60)

	intent := types.Intent{StrategyID: "momentum", ClientOrderID: "CID-3", SubmitTs: 0, Action: types.Buy(10)}
	sim.Submit(intent, 0)

	if _, ok := sim.Cancel("CID-3"); !ok {
		t.Fatalf("expected cancel to find the pending order")
	}
	if _, ok := sim.Cancel("CID-3"); ok {
		t.Fatalf("expected second cancel of the same ID to fail")
	}

	c := types.Candle{Ts: 600, Open: 100, High: 100, Low: 100, Close: 100, Volume: 100}
	fills := sim.OnBar(c, 0)
	if len(fills) != 0 {
		t.Fatalf("expected no fills after cancel, got %d", len(fills))
	}
}
