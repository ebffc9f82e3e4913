package engine_test

import (
	"path/filepath"
	"testing"

	"github.com/uprootiny/arbitragefx/internal/engine"
	"github.com/uprootiny/arbitragefx/internal/strategy"
	"github.com/uprootiny/arbitragefx/internal/wal"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

// TestCrashRecoveryReproducesStateHash covers S3: run candles against a
// real WAL with a short snapshot interval, "crash" without the final
// shutdown snapshot, and verify recovery replays the post-snapshot
// records back to the exact live state hash.
func TestCrashRecoveryReproducesStateHash(t *testing.T) {
	cfg := s1Config()
	cfg.EntryTh = 0.5 // trade often enough to have fills in the replay tail
	cfg.SnapshotInterval = 7

	path := filepath.Join(t.TempDir(), "run.wal")
	walw, err := wal.Open(path)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}

	rl := engine.New(cfg, "BTC-PERP", walw, nil, nil)
	rl.RegisterStrategy(strategy.NewMomentum(), 10000, 0)
	rl.RegisterStrategy(strategy.NewCarry(), 10000, 0)

	closes := []float64{100, 101, 103, 102, 105, 108, 106, 109, 112, 110, 107, 111, 115, 113, 118}
	feedCloses(t, rl, closes)

	liveHashes := make(map[string]string)
	for _, id := range rl.StrategyIDs() {
		state, _ := rl.Strategy(id)
		liveHashes[id] = wal.StateHash(*state)
	}

	// Crash: close the handle without rl.Shutdown's terminal snapshot.
	if err := walw.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	recovered, err := wal.Recover(path, cfg.DayBoundaryUTC)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	for id, want := range liveHashes {
		rs, ok := recovered[id]
		if !ok {
			t.Fatalf("strategy %s not recovered", id)
		}
		if rs.StateHash != want {
			t.Fatalf("strategy %s: recovered hash %s != live hash %s", id, rs.StateHash, want)
		}
	}
}

// TestRecoveryMatchesShutdownSnapshot: with an orderly shutdown, the
// terminal snapshot restores directly and must hash-match the live
// state, exercising the JSON snapshot codec round trip.
func TestRecoveryMatchesShutdownSnapshot(t *testing.T) {
	cfg := s1Config()
	path := filepath.Join(t.TempDir(), "run.wal")
	walw, err := wal.Open(path)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}

	rl := engine.New(cfg, "BTC-PERP", walw, nil, nil)
	rl.RegisterStrategy(strategy.NewMomentum(), 10000, 0)
	feedCloses(t, rl, []float64{100, 101, 103, 102, 105, 108, 106, 109, 112, 110})
	if err := rl.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := walw.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	state, _ := rl.Strategy("momentum")
	want := wal.StateHash(*state)

	recovered, err := wal.Recover(path, cfg.DayBoundaryUTC)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if got := recovered["momentum"].StateHash; got != want {
		t.Fatalf("recovered hash %s != live hash %s", got, want)
	}
}

// TestDayBoundaryResetsTradeCounter: trades accumulated on day one must
// not count against day two's limit.
func TestDayBoundaryResetsTradeCounter(t *testing.T) {
	cfg := s1Config()
	rl := engine.New(cfg, "BTC-PERP", nil, nil, nil)
	rl.RegisterStrategy(strategy.NewMomentum(), 10000, 0)

	if _, err := rl.OnCandle(types.Candle{Ts: 60, Open: 100, High: 100, Low: 100, Close: 100, Volume: 10}, types.EmptyAuxBundle()); err != nil {
		t.Fatalf("OnCandle: %v", err)
	}
	state, _ := rl.Strategy("momentum")
	state.TradesToday = 40

	if _, err := rl.OnCandle(types.Candle{Ts: 86400 + 60, Open: 100, High: 100, Low: 100, Close: 100, Volume: 10}, types.EmptyAuxBundle()); err != nil {
		t.Fatalf("OnCandle: %v", err)
	}
	if state.TradesToday != 0 {
		t.Fatalf("trades today = %d, want reset on day boundary", state.TradesToday)
	}
}

// TestExternalRiskSignalHaltsTrading: a Risk event must latch the halt
// flag and force-close any open position.
func TestExternalRiskSignalHaltsTrading(t *testing.T) {
	cfg := s1Config()
	rl := engine.New(cfg, "BTC-PERP", nil, nil, nil)
	rl.RegisterStrategy(strategy.NewMomentum(), 10000, 0)

	feedCloses(t, rl, []float64{100, 101, 103, 102, 105, 108})
	state, _ := rl.Strategy("momentum")
	if state.Position == 0 {
		// Open a position by hand so the forced close has something to do.
		state.Position = 0.01
		state.EntryPrice = 108
		state.Cash -= 0.01 * 108
	}

	if _, err := rl.RaiseRisk("adapter circuit tripped", 6*60); err != nil {
		t.Fatalf("RaiseRisk: %v", err)
	}
	halted, reason := rl.Halted()
	if !halted || reason == "" {
		t.Fatalf("expected the halt flag latched with a reason")
	}

	// The forced close fills on the next bar in instant mode.
	if _, err := rl.OnCandle(types.Candle{Ts: 7 * 60, Open: 108, High: 108, Low: 108, Close: 108, Volume: 10}, types.EmptyAuxBundle()); err != nil {
		t.Fatalf("OnCandle: %v", err)
	}
	if state.Position != 0 {
		t.Fatalf("position = %v, want force-closed after risk halt", state.Position)
	}
	if state.ForcedCloses == 0 {
		t.Fatalf("forced close was not counted")
	}
}
