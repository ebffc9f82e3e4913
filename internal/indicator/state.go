// Package indicator maintains the online, streaming indicator state
// fed one candle at a time. Every accumulator here is O(1) per update
// and retains no candle history beyond what a fixed-size window
// requires, so replay from a WAL snapshot reproduces the exact same
// state as the original run.
package indicator

import (
	"math"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

const (
	emaFastSpan = 6.0
	emaSlowSpan = 24.0
	vwapWindow_ = 50

	// statsWindow bounds the sliding window behind the rolling
	// mean/variance accumulators, matching the VWAP window.
	statsWindow = 50

	// eps guards every z-score denominator against division by a
	// near-zero sigma during the first few post-warmup bars.
	eps = 1e-12
)

// State is one symbol's indicator accumulator set. It is owned
// exclusively by the run loop and updated once per candle; strategies
// only ever see the derived types.IndicatorSnapshot.
type State struct {
	warmupBars int
	barsSeen   int

	emaFast *ema
	emaSlow *ema
	vwap    *vwapWindow

	returns welford
	volume  welford

	// retShort tracks return sigma over a short window; its ratio to
	// the full-window sigma is the regime signal the momentum decision
	// tree switches on (current choppiness vs the recent baseline).
	// Both windows see the same samples early in a run, so the ratio
	// starts near 1 instead of spiking on the first few bars the way a
	// mismatched-span EMA pair would.
	retShort welford

	lastClose    float64
	hasLastClose bool
}

// New returns a fresh indicator accumulator requiring warmupBars
// candles before it reports Ready.
func New(warmupBars int) *State {
	return &State{
		warmupBars: warmupBars,
		emaFast:    newEMA(emaFastSpan),
		emaSlow:    newEMA(emaSlowSpan),
		vwap:       newVWAPWindow(vwapWindow_),
		returns:    newWelford(statsWindow),
		volume:     newWelford(statsWindow),
		retShort:   newWelford(int(emaFastSpan)),
	}
}

// Update folds one candle into the accumulator and returns the
// resulting snapshot. Candles must be fed in strictly increasing Ts
// order; the caller (the market state owner) enforces this.
func (s *State) Update(c types.Candle) types.IndicatorSnapshot {
	s.barsSeen++

	typical := (c.High + c.Low + c.Close) / 3.0
	vwap := s.vwap.update(typical, c.Volume)

	emaFast := s.emaFast.update(c.Close)
	emaSlow := s.emaSlow.update(c.Close)

	var ret float64
	if s.hasLastClose && s.lastClose != 0 {
		ret = (c.Close - s.lastClose) / s.lastClose
	}
	s.lastClose = c.Close
	s.hasLastClose = true

	s.returns.update(ret)
	s.retShort.update(ret)
	s.volume.update(c.Volume)

	sigmaPx := s.returns.stddev()
	sigmaVol := s.volume.stddev()
	volumeMean := s.volume.mean

	zMomentum := 0.0
	if emaSlow != 0 {
		zMomentum = (emaFast/emaSlow - 1.0) / (sigmaPx + eps)
	}
	zVol := (ret - s.returns.mean) / (sigmaPx + eps)
	zVolumeSpike := (c.Volume - volumeMean) / (sigmaVol + eps)
	zStretch := (c.Close - vwap) / math.Max(vwap, eps)

	volRatio := s.retShort.stddev() / (sigmaPx + eps)

	return types.IndicatorSnapshot{
		EMAFast:         emaFast,
		EMASlow:         emaSlow,
		RollingSigmaPx:  sigmaPx,
		RollingSigmaVol: sigmaVol,
		VolumeMean:      volumeMean,
		VWAP:            vwap,
		ZMomentum:       zMomentum,
		ZVol:            zVol,
		ZVolumeSpike:    zVolumeSpike,
		ZStretch:        zStretch,
		VolRatio:        volRatio,
		Ready:           s.barsSeen >= s.warmupBars,
	}
}
