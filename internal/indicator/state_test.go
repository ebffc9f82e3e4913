package indicator_test

import (
	"testing"

	"github.com/uprootiny/arbitragefx/internal/indicator"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

func candle(ts int64, close, volume float64) types.Candle {
	return types.Candle{Ts: ts, Open: close, High: close, Low: close, Close: close, Volume: volume}
}

func TestStateNotReadyBeforeWarmup(t *testing.T) {
	st := indicator.New(5)
	var snap types.IndicatorSnapshot
	for i := int64(0); i < 4; i++ {
		snap = st.Update(candle(i, 100+float64(i), 10))
	}
	if snap.Ready {
		t.Fatalf("expected not ready before warmup, got ready")
	}
}

func TestStateReadyAtWarmup(t *testing.T) {
	st := indicator.New(5)
	var snap types.IndicatorSnapshot
	for i := int64(0); i < 5; i++ {
		snap = st.Update(candle(i, 100, 10))
	}
	if !snap.Ready {
		t.Fatalf("expected ready at warmup boundary")
	}
}

func TestEMAConvergesTowardFlatPrice(t *testing.T) {
	st := indicator.New(1)
	var snap types.IndicatorSnapshot
	for i := int64(0); i < 60; i++ {
		snap = st.Update(candle(i, 50, 5))
	}
	if diff := abs(snap.EMAFast - 50); diff > 1e-6 {
		t.Fatalf("EMAFast did not converge: got %v", snap.EMAFast)
	}
	if diff := abs(snap.EMASlow - 50); diff > 1e-6 {
		t.Fatalf("EMASlow did not converge: got %v", snap.EMASlow)
	}
	if diff := abs(snap.VWAP - 50); diff > 1e-6 {
		t.Fatalf("VWAP did not converge: got %v", snap.VWAP)
	}
}

func TestZScoresFiniteOnFirstBar(t *testing.T) {
	st := indicator.New(1)
	snap := st.Update(candle(0, 100, 10))
	for name, v := range map[string]float64{
		"ZMomentum":    snap.ZMomentum,
		"ZVol":         snap.ZVol,
		"ZVolumeSpike": snap.ZVolumeSpike,
		"ZStretch":     snap.ZStretch,
	} {
		if v != v { // NaN check
			t.Fatalf("%s is NaN on first bar", name)
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
