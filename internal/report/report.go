// Package report assembles the end-of-run types.BacktestResult from the
// deterministic float64 core's output: a strategy's final state plus
// its ordered fill and equity-sample history. This is the reporting
// boundary — the deterministic core never sees decimal.Decimal; this
// package converts from float64 once money leaves the hot path (Sharpe,
// Sortino, profit factor, VaR/CVaR over a single-position-per-strategy
// history).
package report

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

// StrategyInput bundles one strategy's raw run history for reporting.
type StrategyInput struct {
	StrategyID  string
	FinalState  types.StrategyState
	StateHash   string
	Fills       []types.Fill
	EquityCurve []types.EquityCurvePoint // one sample per processed candle
}

// barsPerYear scales per-bar volatility to a daily figure in
// computeRisk, assuming CandleSecs-sized bars trade continuously; a
// deliberate simplifying assumption. Sharpe/Sortino do not use it.
func barsPerYear(candleSecs int64) float64 {
	if candleSecs <= 0 {
		return 1
	}
	const secondsPerYear = 365.25 * 24 * 3600
	return secondsPerYear / float64(candleSecs)
}

// Build converts one strategy's raw history into a types.StrategyResult.
func Build(cfg types.Config, in StrategyInput) types.StrategyResult {
	trades := reconstructTrades(in.StrategyID, in.Fills)
	perf := computePerformance(trades, in.EquityCurve)
	risk := computeRisk(in.EquityCurve, cfg.CandleSecs)

	var friction float64
	for _, f := range in.Fills {
		friction += f.Fee
	}

	return types.StrategyResult{
		StrategyID:   in.StrategyID,
		FinalState:   in.FinalState,
		Trades:       trades,
		EquityCurve:  in.EquityCurve,
		Metrics:      perf,
		Risk:         risk,
		Friction:     decimal.NewFromFloat(friction),
		ForcedCloses: in.FinalState.ForcedCloses,
		StateHash:    in.StateHash,
	}
}

// BuildResult assembles the top-level types.BacktestResult across all
// strategies in a run.
func BuildResult(cfg types.Config, inputs []StrategyInput, eventsProcessed uint64, startedAt, completedAt time.Time, exitCode int) types.BacktestResult {
	strategies := make([]types.StrategyResult, 0, len(inputs))
	var totalPnL, maxDD float64
	for _, in := range inputs {
		sr := Build(cfg, in)
		strategies = append(strategies, sr)
		totalPnL += in.FinalState.Equity - cfg.InitialEquity
		if in.FinalState.MaxDrawdown > maxDD {
			maxDD = in.FinalState.MaxDrawdown
		}
	}
	return types.BacktestResult{
		ConfigHash:      cfg.Hash(),
		TotalPnL:        decimal.NewFromFloat(totalPnL),
		MaxDrawdown:     decimal.NewFromFloat(maxDD),
		Strategies:      strategies,
		EventsProcessed: eventsProcessed,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		ExitCode:        exitCode,
	}
}

// tradeAccumulator mirrors internal/portfolio.ApplyFill's weighted-
// average/flip-realization logic, duplicated here (rather than
// imported). Like portfolio it works in float64; each Trade's money
// fields convert to decimal.Decimal as the trade is recorded.
type tradeAccumulator struct {
	strategyID string
	position   float64
	entryPrice float64
	entryTs    int64
	trades     []types.Trade
}

func reconstructTrades(strategyID string, fills []types.Fill) []types.Trade {
	acc := &tradeAccumulator{strategyID: strategyID}
	for _, f := range fills {
		if f.Qty == 0 {
			continue // cancel-ack, no position change
		}
		acc.apply(f)
	}
	return acc.trades
}

func (a *tradeAccumulator) apply(f types.Fill) {
	oldPos := a.position
	newPos := oldPos + f.Qty

	if oldPos == 0 {
		a.entryPrice = f.Price
		a.entryTs = f.Ts
		a.position = newPos
		return
	}

	if sameSign(oldPos, f.Qty) {
		oldAbs := math.Abs(oldPos)
		fillAbs := math.Abs(f.Qty)
		a.entryPrice = (oldAbs*a.entryPrice + fillAbs*f.Price) / (oldAbs + fillAbs)
		a.position = newPos
		return
	}

	closedQty := math.Abs(f.Qty)
	if closedQty > math.Abs(oldPos) {
		closedQty = math.Abs(oldPos)
	}
	realized := closedQty * (f.Price - a.entryPrice) * sign(oldPos)

	a.trades = append(a.trades, types.Trade{
		StrategyID: a.strategyID,
		EntryTs:    a.entryTs,
		ExitTs:     f.Ts,
		EntryPrice: decimal.NewFromFloat(a.entryPrice),
		ExitPrice:  decimal.NewFromFloat(f.Price),
		Qty:        decimal.NewFromFloat(closedQty),
		PnL:        decimal.NewFromFloat(realized),
		Fees:       decimal.NewFromFloat(f.Fee),
	})

	a.position = newPos
	if newPos == 0 {
		a.entryPrice = 0
	} else if !sameSign(newPos, oldPos) {
		a.entryPrice = f.Price
		a.entryTs = f.Ts
	}
}

func computePerformance(trades []types.Trade, curve []types.EquityCurvePoint) types.PerformanceMetrics {
	m := types.PerformanceMetrics{}
	m.TotalTrades = len(trades)

	var sumWin, sumLoss, largestWin, largestLoss float64
	for _, t := range trades {
		pnl, _ := t.PnL.Float64()
		if pnl > 0 {
			m.WinningTrades++
			sumWin += pnl
			if pnl > largestWin {
				largestWin = pnl
			}
		} else if pnl < 0 {
			m.LosingTrades++
			sumLoss += -pnl
			if -pnl > largestLoss {
				largestLoss = -pnl
			}
		}
	}

	if m.WinningTrades > 0 {
		m.AvgWin = decimal.NewFromFloat(sumWin / float64(m.WinningTrades))
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = decimal.NewFromFloat(sumLoss / float64(m.LosingTrades))
	}
	m.LargestWin = decimal.NewFromFloat(largestWin)
	m.LargestLoss = decimal.NewFromFloat(largestLoss)
	if m.TotalTrades > 0 {
		m.WinRate = decimal.NewFromFloat(float64(m.WinningTrades) / float64(m.TotalTrades))
	}
	if sumLoss > 0 {
		m.ProfitFactor = decimal.NewFromFloat(sumWin / sumLoss)
	}
	if m.TotalTrades > 0 {
		m.Expectancy = decimal.NewFromFloat((sumWin - sumLoss) / float64(m.TotalTrades))
	}

	if len(curve) == 0 {
		return m
	}

	first := curve[0]
	last := curve[len(curve)-1]
	firstEq, _ := first.Equity.Float64()
	lastEq, _ := last.Equity.Float64()
	if firstEq != 0 {
		m.TotalReturn = decimal.NewFromFloat((lastEq - firstEq) / firstEq)
	}

	returns := barReturns(curve)
	meanR, stdR := meanStd(returns)
	if stdR > 1e-12 {
		m.SharpeRatio = decimal.NewFromFloat(meanR / stdR * math.Sqrt(float64(len(returns))))
	}

	downside := downsideReturns(returns)
	_, stdDown := meanStd(downside)
	if stdDown > 1e-12 {
		m.SortinoRatio = decimal.NewFromFloat(meanR / stdDown * math.Sqrt(float64(len(returns))))
	}

	maxDD := 0.0
	for _, p := range curve {
		dd, _ := p.Drawdown.Float64()
		if dd > maxDD {
			maxDD = dd
		}
	}
	m.MaxDrawdown = decimal.NewFromFloat(maxDD)

	return m
}

func computeRisk(curve []types.EquityCurvePoint, candleSecs int64) types.RiskMetrics {
	returns := barReturns(curve)
	if len(returns) == 0 {
		return types.RiskMetrics{}
	}
	_, stdR := meanStd(returns)
	annualized := stdR * math.Sqrt(barsPerYear(candleSecs)/365.25)

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(math.Floor(0.05 * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	var95 := -sorted[idx]

	var tailSum float64
	var tailN int
	for i := 0; i <= idx; i++ {
		tailSum += sorted[i]
		tailN++
	}
	cvar95 := 0.0
	if tailN > 0 {
		cvar95 = -tailSum / float64(tailN)
	}

	return types.RiskMetrics{
		DailyVolatility: decimal.NewFromFloat(annualized),
		VaR95:           decimal.NewFromFloat(var95),
		CVaR95:          decimal.NewFromFloat(cvar95),
	}
}

func barReturns(curve []types.EquityCurvePoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev, _ := curve[i-1].Equity.Float64()
		cur, _ := curve[i].Equity.Float64()
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (cur-prev)/prev)
	}
	return out
}

func downsideReturns(returns []float64) []float64 {
	out := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r < 0 {
			out = append(out, r)
		}
	}
	return out
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))
	var sqSum float64
	for _, x := range xs {
		d := x - mean
		sqSum += d * d
	}
	std = math.Sqrt(sqSum / float64(len(xs)))
	return mean, std
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
