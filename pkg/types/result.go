package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one completed round trip (entry through exit) reported at
// the end of a run. Money fields are decimal here — this is the
// reporting boundary; the deterministic core never touches
// decimal.Decimal, only float64.
type Trade struct {
	StrategyID   string
	EntryTs      int64
	ExitTs       int64
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	Qty          decimal.Decimal
	PnL          decimal.Decimal
	Fees         decimal.Decimal
	ForcedClose  bool
}

// EquityCurvePoint is one sample of a strategy's equity over time.
type EquityCurvePoint struct {
	Ts       int64
	Equity   decimal.Decimal
	Cash     decimal.Decimal
	Drawdown decimal.Decimal
}

// PerformanceMetrics summarizes a strategy's trading performance over
// a run. Sharpe and Sortino are per-bar ratios scaled by the square
// root of the number of bar returns; they are not annualized.
type PerformanceMetrics struct {
	TotalReturn   decimal.Decimal
	SharpeRatio   decimal.Decimal
	SortinoRatio  decimal.Decimal
	MaxDrawdown   decimal.Decimal
	WinRate       decimal.Decimal
	ProfitFactor  decimal.Decimal
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	AvgWin        decimal.Decimal
	AvgLoss       decimal.Decimal
	LargestWin    decimal.Decimal
	LargestLoss   decimal.Decimal
	Expectancy    decimal.Decimal
}

// RiskMetrics summarizes the dispersion and tail behavior of a
// strategy's per-bar returns.
type RiskMetrics struct {
	DailyVolatility decimal.Decimal
	VaR95           decimal.Decimal
	CVaR95          decimal.Decimal
}

// StrategyResult bundles one strategy's full output for a run.
// Friction is the total fees paid across the run; slippage is already
// embedded in each fill's price, so it is not separable here.
type StrategyResult struct {
	StrategyID   string
	FinalState   StrategyState
	Trades       []Trade
	EquityCurve  []EquityCurvePoint
	Metrics      PerformanceMetrics
	Risk         RiskMetrics
	Friction     decimal.Decimal
	ForcedCloses uint64
	StateHash    string
}

// BacktestResult is the top-level output of one run. RunID is a
// uuid.New().String() value stamped by the entrypoint, not computed
// here, so this package stays free of the uuid dependency.
type BacktestResult struct {
	RunID           string
	ConfigHash      string
	CandleCount     uint64
	TotalPnL        decimal.Decimal
	MaxDrawdown     decimal.Decimal
	BuyHoldPnL      decimal.Decimal
	Strategies      []StrategyResult
	EventsProcessed uint64
	StartedAt       time.Time
	CompletedAt     time.Time
	ExitCode        int
}
