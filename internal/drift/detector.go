// Package drift implements the optional drift/narrative detector:
// rolling z-scores of return, volatility, funding, and spread against
// a trailing baseline window, collapsed to the worst offending
// feature and mapped to a severity/multiplier pair. The thresholds
// are fixed and explicitly labeled uncalibrated — this is a simple,
// honest-about-its-limits overlay, not a fitted model.
package drift

import (
	"math"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

// Thresholds configures the z-score cutoffs for each severity step.
// They are intuition-based and uncalibrated; every DriftReport
// produced by Detector carries Calibrated=false regardless of how
// these are tuned.
type Thresholds struct {
	Low      float64
	Moderate float64
	Severe   float64
	Critical float64
}

// DefaultThresholds are a reasonable but explicitly unfitted starting
// point, matching the z-score scale the indicator package already
// uses elsewhere in this codebase.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 1.5, Moderate: 2.5, Severe: 3.5, Critical: 5.0}
}

func (t Thresholds) severity(absZ float64) types.DriftSeverity {
	switch {
	case absZ >= t.Critical:
		return types.DriftCritical
	case absZ >= t.Severe:
		return types.DriftSevere
	case absZ >= t.Moderate:
		return types.DriftModerate
	case absZ >= t.Low:
		return types.DriftLow
	default:
		return types.DriftNone
	}
}

// baseline is a fixed-size rolling window mean/variance accumulator
// used independently for each of the four tracked features. A z-score
// against fewer than minSamples observations is reported as 0: a
// handful of bars is not a baseline, and severity calls made off one
// would whipsaw the position multiplier during every run's first
// minutes.
type baseline struct {
	window     []float64
	size       int
	minSamples int
	sum        float64
	sumSq      float64
}

func newBaseline(size int) *baseline {
	min := size / 5
	if min < 2 {
		min = 2
	}
	return &baseline{window: make([]float64, 0, size), size: size, minSamples: min}
}

func (b *baseline) push(x float64) {
	b.window = append(b.window, x)
	b.sum += x
	b.sumSq += x * x
	if len(b.window) > b.size {
		old := b.window[0]
		b.window = b.window[1:]
		b.sum -= old
		b.sumSq -= old * old
	}
}

func (b *baseline) zscore(x float64) float64 {
	n := float64(len(b.window))
	if len(b.window) < b.minSamples {
		return 0
	}
	mean := b.sum / n
	variance := b.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	sigma := math.Sqrt(variance)
	if sigma < 1e-12 {
		sigma = 1e-12
	}
	return (x - mean) / sigma
}

// Detector tracks four feature baselines: return, volatility,
// funding, and spread (approximated here by the stretch signal, since
// the market view carries no order-book spread).
type Detector struct {
	thresholds Thresholds

	returnBase  *baseline
	volBase     *baseline
	fundingBase *baseline
	spreadBase  *baseline

	lastClose float64
	hasClose  bool
}

// New returns a detector with the given window size per feature; 100
// is a reasonable default.
func New(windowSize int, thresholds Thresholds) *Detector {
	return &Detector{
		thresholds:  thresholds,
		returnBase:  newBaseline(windowSize),
		volBase:     newBaseline(windowSize),
		fundingBase: newBaseline(windowSize),
		spreadBase:  newBaseline(windowSize),
	}
}

// Update folds the latest MarketView into the detector and returns the
// worst-feature DriftReport. Call once per candle, after the indicator
// and market state have both been updated for the same candle.
func (d *Detector) Update(symbol string, view types.MarketView) types.DriftReport {
	ret := 0.0
	if d.hasClose && d.lastClose != 0 {
		ret = (view.Candle.Close - d.lastClose) / d.lastClose
	}
	d.lastClose = view.Candle.Close
	d.hasClose = true

	funding := 0.0
	if view.Aux.HasFunding {
		funding = view.Aux.FundingRate
	}

	d.returnBase.push(ret)
	d.volBase.push(view.Indicator.RollingSigmaPx)
	d.fundingBase.push(funding)
	d.spreadBase.push(view.Indicator.ZStretch)

	// A fixed-order slice, not a map, keeps tie-breaking between
	// equal-magnitude z-scores deterministic across replay.
	type feature struct {
		name string
		z    float64
	}
	features := [4]feature{
		{"return", d.returnBase.zscore(ret)},
		{"volatility", d.volBase.zscore(view.Indicator.RollingSigmaPx)},
		{"funding", d.fundingBase.zscore(funding)},
		{"spread", d.spreadBase.zscore(view.Indicator.ZStretch)},
	}

	worstName := features[0].name
	worstZ := features[0].z
	for _, f := range features[1:] {
		if math.Abs(f.z) > math.Abs(worstZ) {
			worstZ = f.z
			worstName = f.name
		}
	}

	sev := d.thresholds.severity(math.Abs(worstZ))
	return types.DriftReport{
		Symbol:       symbol,
		WorstFeature: worstName,
		ZScore:       worstZ,
		Severity:     sev,
		Multiplier:   sev.Multiplier(),
		Calibrated:   false,
	}
}
