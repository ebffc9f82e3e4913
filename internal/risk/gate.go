// Package risk implements the layered guard chain applied to every
// proposed Action before it reaches the simulator or a live adapter.
// Guards run in a fixed order and may only narrow an action
// (replace it with Hold, Close, or a Halt) — never widen one. Close on
// an open position always survives the chain unless an emergency kill
// is active, per the gate's one hard invariant.
package risk

import (
	"os"

	"github.com/uprootiny/arbitragefx/internal/portfolio"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

// GuardedAction is an Action after passage through the gate, plus the
// reason it was altered (empty if the strategy's own action passed
// unchanged).
type GuardedAction struct {
	Action     types.Action
	Altered    bool
	GuardName  string
	HaltReason string // non-empty only when the gate demands a Halt
}

// KillFileStat abstracts the kill-file presence check so the gate's
// hot path stays testable without touching the real filesystem; the
// run loop wires os.Stat in production. This is the gate's one
// legitimate I/O seam — everything else here is a pure function of
// (action, state, now).
type KillFileStat func(path string) bool

func statKillFile(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Gate runs the guard chain for one strategy's proposed action. now is
// the event timestamp driving the decision (never wall-clock time —
// the gate must be replay-deterministic).
type Gate struct {
	cfg      types.Config
	killStat KillFileStat
}

// New returns a risk gate bound to cfg. killStat defaults to a real
// os.Stat check.
func New(cfg types.Config, killStat KillFileStat) *Gate {
	if killStat == nil {
		killStat = statKillFile
	}
	return &Gate{cfg: cfg, killStat: killStat}
}

// Apply runs action through every guard in the fixed order.
// markPrice is the latest candle close for state's symbol; driftSev is
// the current drift-detector severity (types.DriftNone if unused); now
// is the decision timestamp (seconds).
func (g *Gate) Apply(action types.Action, state *types.StrategyState, markPrice float64, driftSev types.DriftSeverity, now int64) GuardedAction {
	cur := GuardedAction{Action: action}

	for _, guard := range []func(GuardedAction, *types.StrategyState, float64, types.DriftSeverity, int64) GuardedAction{
		g.killFile,
		g.lossCooldown,
		g.dailyTradeLimit,
		g.dailyLossLimit,
		g.exposureLimit,
		g.circuitBreaker,
	} {
		cur = guard(cur, state, markPrice, driftSev, now)
	}
	return cur
}

// isClose reports whether an action is a Close — the one action the
// gate must never silently convert to Hold outside of an active
// emergency kill.
func isClose(a types.Action) bool { return a.Kind == types.ActionClose }

// 1. Kill file: presence of cfg.KillFilePath blocks all actions only
// when EmergencyKill is set; otherwise Close still passes.
func (g *Gate) killFile(cur GuardedAction, state *types.StrategyState, markPrice float64, _ types.DriftSeverity, now int64) GuardedAction {
	if cur.Action.Kind == types.ActionHold {
		return cur
	}
	path := g.cfg.KillFilePath
	if path == "" {
		return cur
	}
	if !g.killStat(path) {
		return cur
	}
	if isClose(cur.Action) && !g.cfg.EmergencyKill {
		return cur
	}
	return replace(cur, types.Hold(), "kill_file")
}

// 2. Loss cooldown: for cfg.CooldownSecs after a losing trade, only
// Close is allowed.
func (g *Gate) lossCooldown(cur GuardedAction, state *types.StrategyState, markPrice float64, _ types.DriftSeverity, now int64) GuardedAction {
	if cur.Action.Kind == types.ActionHold || isClose(cur.Action) {
		return cur
	}
	if state.LastLossTs == 0 {
		return cur
	}
	if now-state.LastLossTs < g.cfg.CooldownSecs {
		return replace(cur, types.Hold(), "loss_cooldown")
	}
	return cur
}

// 3. Daily trade limit: once trades_today reaches the ceiling, only
// Close is allowed.
func (g *Gate) dailyTradeLimit(cur GuardedAction, state *types.StrategyState, markPrice float64, _ types.DriftSeverity, now int64) GuardedAction {
	if cur.Action.Kind == types.ActionHold || isClose(cur.Action) {
		return cur
	}
	if state.TradesToday >= g.cfg.MaxTradesDay {
		return replace(cur, types.Hold(), "daily_trade_limit")
	}
	return cur
}

// 4. Daily loss limit: once MTM PnL crosses -max_daily_loss_pct of
// initial equity, open positions are forced Closed and new entries
// blocked.
func (g *Gate) dailyLossLimit(cur GuardedAction, state *types.StrategyState, markPrice float64, _ types.DriftSeverity, now int64) GuardedAction {
	if isClose(cur.Action) {
		return cur
	}
	if g.cfg.InitialEquity <= 0 {
		return cur
	}
	mtm := portfolio.MTMPnL(state, markPrice)
	if mtm/g.cfg.InitialEquity <= -g.cfg.MaxDailyLossPct {
		if state.Position != 0 {
			return replace(cur, types.CloseAction(), "daily_loss_limit")
		}
		return replace(cur, types.Hold(), "daily_loss_limit")
	}
	return cur
}

// 5. Exposure limit: clamps Buy/Sell qty so the resulting notional
// never exceeds max_position_pct*equity.
func (g *Gate) exposureLimit(cur GuardedAction, state *types.StrategyState, markPrice float64, _ types.DriftSeverity, now int64) GuardedAction {
	if isClose(cur.Action) || cur.Action.Kind == types.ActionHold {
		return cur
	}
	if markPrice <= 0 || state.Equity <= 0 {
		return cur
	}
	delta := cur.Action.Qty
	if cur.Action.Kind == types.ActionSell {
		delta = -delta
	}
	targetPos := state.Position + delta
	maxNotional := g.cfg.MaxPosPct * state.Equity
	targetNotional := absF(targetPos) * markPrice
	if targetNotional <= maxNotional {
		return cur
	}

	maxPos := maxNotional / markPrice
	var clampedDelta float64
	if delta >= 0 {
		clampedDelta = maxPos - state.Position
	} else {
		clampedDelta = -maxPos - state.Position
	}
	if clampedDelta == 0 || sign(clampedDelta) != sign(delta) {
		return replace(cur, types.Hold(), "exposure_limit")
	}

	clamped := cur.Action
	clamped.Qty = absF(clampedDelta)
	return replace(cur, clamped, "exposure_limit")
}

// 6. Circuit breaker: Critical drift severity forces Close and raises
// a Halt.
func (g *Gate) circuitBreaker(cur GuardedAction, state *types.StrategyState, markPrice float64, driftSev types.DriftSeverity, now int64) GuardedAction {
	if driftSev != types.DriftCritical {
		return cur
	}
	out := cur
	out.HaltReason = "circuit_breaker: critical drift severity"
	if state.Position != 0 {
		out.Action = types.CloseAction()
		out.Altered = cur.Action.Kind != types.ActionClose
		out.GuardName = "circuit_breaker"
	} else {
		out.Action = types.Hold()
		out.Altered = cur.Action.Kind != types.ActionHold
		out.GuardName = "circuit_breaker"
	}
	return out
}

func replace(cur GuardedAction, action types.Action, guard string) GuardedAction {
	if cur.Action.Kind == action.Kind && cur.Action.Qty == action.Qty {
		return cur
	}
	cur.Action = action
	cur.Altered = true
	cur.GuardName = guard
	return cur
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
