package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/uprootiny/arbitragefx/internal/drift"
	"github.com/uprootiny/arbitragefx/internal/indicator"
	"github.com/uprootiny/arbitragefx/internal/market"
	"github.com/uprootiny/arbitragefx/internal/metrics"
	"github.com/uprootiny/arbitragefx/internal/portfolio"
	"github.com/uprootiny/arbitragefx/internal/risk"
	"github.com/uprootiny/arbitragefx/internal/simulator"
	"github.com/uprootiny/arbitragefx/internal/strategy"
	"github.com/uprootiny/arbitragefx/internal/wal"
	"github.com/uprootiny/arbitragefx/pkg/types"
)

// StrategySlot binds one strategy's decider to its exclusively-owned
// state and its position in the run loop's deterministic dispatch
// order (also the xorshift latency salt — the simulator's strategyIdx).
type StrategySlot struct {
	Decider strategy.Decider
	State   *types.StrategyState
	Idx     int

	cidSeq uint64
}

// RunLoop drives one symbol's candle -> indicator -> strategy -> risk
// -> order -> fill pipeline. It owns every piece of mutable state that
// must live at a single seam: the market/indicator state, every
// registered strategy's StrategyState, the simulator's pending orders,
// and the WAL writer. Strategies and the risk gate are pure with
// respect to this state; only the methods here ever mutate it.
type RunLoop struct {
	cfg    types.Config
	symbol string
	logger *zap.Logger
	mc     *metrics.Collectors

	market *market.State
	gate   *risk.Gate
	sim    *simulator.Simulator
	wal    *wal.Writer
	drift  *drift.Detector

	order []string // deterministic strategy dispatch order
	slots map[string]*StrategySlot

	halted     bool
	haltReason string

	eventsProcessed uint64
	log             []types.Event
	bus             *Bus
}

// New returns a run loop for symbol, wired from cfg. walw may be nil
// for tests that do not need durability; production callers always
// supply an open wal.Writer. logger and mc may also be nil (a no-op
// logger and no metrics).
func New(cfg types.Config, symbol string, walw *wal.Writer, logger *zap.Logger, mc *metrics.Collectors) *RunLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunLoop{
		cfg:    cfg,
		symbol: symbol,
		logger: logger,
		mc:     mc,
		market: market.New(symbol, indicator.New(cfg.WarmupBars)),
		gate:   risk.New(cfg, nil),
		sim:    simulator.New(cfg, cfg.CandleSecs),
		wal:    walw,
		drift:  drift.New(100, drift.DefaultThresholds()),
		slots:  make(map[string]*StrategySlot),
		bus:    NewBus(),
	}
}

// RegisterStrategy adds a strategy to the dispatch order. Registration
// order is the tie-break order for same-timestamp intents and the
// latency-model strategyIdx — callers must register strategies in a
// stable order across runs for replay determinism.
func (rl *RunLoop) RegisterStrategy(d strategy.Decider, initialCash float64, startTs int64) {
	id := d.Name()
	state := types.NewStrategyState(id, initialCash, startTs)
	rl.slots[id] = &StrategySlot{Decider: d, State: &state, Idx: len(rl.order)}
	rl.order = append(rl.order, id)
}

// Strategy returns the live state for id, for inspection after a run.
func (rl *RunLoop) Strategy(id string) (*types.StrategyState, bool) {
	s, ok := rl.slots[id]
	if !ok {
		return nil, false
	}
	return s.State, true
}

// StrategyIDs returns the registered strategies in dispatch order.
func (rl *RunLoop) StrategyIDs() []string {
	out := make([]string, len(rl.order))
	copy(out, rl.order)
	return out
}

// EventsProcessed returns the count used to trigger periodic snapshots.
func (rl *RunLoop) EventsProcessed() uint64 { return rl.eventsProcessed }

// Halted reports whether a risk halt has been raised, and its reason.
func (rl *RunLoop) Halted() (bool, string) { return rl.halted, rl.haltReason }

// Log returns the in-memory event log accumulated so far, in
// dispatch order (assigned Seq order). Used for post-run inspection
// and tests; the durable record of the same events lives in the WAL.
func (rl *RunLoop) Log() []types.Event {
	out := make([]types.Event, len(rl.log))
	copy(out, rl.log)
	return out
}

// OnCandle is the single entry point a backtest driver or live adapter
// calls once per candle. It publishes a Market event, dispatches it,
// and returns the fills produced on this bar (including fills for
// orders submitted on earlier bars that just became eligible).
func (rl *RunLoop) OnCandle(c types.Candle, aux types.AuxBundle) ([]types.Fill, error) {
	rl.bus.Publish(types.Event{
		Class:  types.ClassMarket,
		Symbol: rl.symbol,
		Ts:     c.Ts,
		Market: &types.MarketEventPayload{Candle: c, Aux: aux},
	})
	return rl.dispatch()
}

// dispatch drains the bus until empty, processing each event in
// priority order. Processing a Market event can publish Fill events
// that re-enter the bus; since Fill outranks Market, the heap ensures
// they drain before any later-queued Market event. The reducer
// (handleMarket/handleFill) is never re-entered while already running
// — dispatch is a single loop with no recursive calls back into
// itself.
func (rl *RunLoop) dispatch() ([]types.Fill, error) {
	var allFills []types.Fill

	for rl.bus.Len() > 0 {
		ev := rl.bus.Pop()
		rl.log = append(rl.log, ev)
		rl.eventsProcessed++
		if rl.mc != nil {
			rl.mc.EventsProcessed.Inc()
		}

		switch ev.Class {
		case types.ClassMarket:
			fills, err := rl.handleMarket(ev)
			if err != nil {
				return allFills, err
			}
			allFills = append(allFills, fills...)
			for _, f := range fills {
				f := f // each event points at its own fill
				rl.bus.Publish(types.Event{
					Class:  types.ClassFill,
					Symbol: rl.symbol,
					Ts:     f.Ts,
					Fill:   &f,
				})
			}
		case types.ClassFill:
			if err := rl.handleFill(*ev.Fill); err != nil {
				return allFills, err
			}
		case types.ClassRisk:
			// Risk signals from an external source (e.g. an adapter's
			// circuit breaker trip) force a Close on every open
			// strategy; the in-band Critical-drift case flows through
			// the gate's own circuit breaker instead.
			rl.raiseHalt(ev.Risk.Reason)
			rl.forceCloseAll(ev.Ts)
		case types.ClassSys:
			if ev.Sys != nil && *ev.Sys == types.SysShutdown {
				if err := rl.snapshotAll(); err != nil {
					return allFills, err
				}
			}
		}

		if rl.cfg.SnapshotInterval > 0 && rl.eventsProcessed%rl.cfg.SnapshotInterval == 0 {
			if err := rl.snapshotAll(); err != nil {
				return allFills, err
			}
		}
	}

	return allFills, nil
}

func (rl *RunLoop) handleMarket(ev types.Event) ([]types.Fill, error) {
	payload := ev.Market
	rl.market.MergeAux(payload.Aux)

	// The mark record goes to the WAL ahead of the day-roll and equity
	// mutations it implies, so recovery can replay them in the same
	// order.
	if rl.wal != nil {
		if err := rl.wal.Append(types.WalEntry{Kind: types.WalMark, MarkTs: payload.Candle.Ts, MarkPrice: payload.Candle.Close}); err != nil {
			return nil, fmt.Errorf("engine: wal append mark: %w", err)
		}
	}
	for _, id := range rl.order {
		portfolio.RollDay(rl.slots[id].State, payload.Candle.Ts, rl.cfg.DayBoundaryUTC)
	}

	view := rl.market.OnCandle(payload.Candle)
	driftReport := rl.drift.Update(rl.symbol, view)

	for _, id := range rl.order {
		slot := rl.slots[id]
		if err := rl.decideAndSubmit(slot, view, payload.Candle, driftReport); err != nil {
			return nil, err
		}
	}

	fills := rl.sim.OnBar(payload.Candle, view.Indicator.RollingSigmaPx)

	// Equity/drawdown must reflect the latest mark on every price
	// tick, not only for strategies that traded this bar.
	for _, id := range rl.order {
		slot := rl.slots[id]
		portfolio.UpdateMark(slot.State, payload.Candle.Close)
		if rl.mc != nil {
			rl.mc.Equity.WithLabelValues(id).Set(slot.State.Equity)
			rl.mc.Drawdown.WithLabelValues(id).Set(slot.State.MaxDrawdown)
		}
	}

	return fills, nil
}

func (rl *RunLoop) decideAndSubmit(slot *StrategySlot, view types.MarketView, c types.Candle, drift types.DriftReport) error {
	if !view.Indicator.Ready {
		return nil
	}
	if !strategy.HasRequiredAux(view.Aux, slot.Decider.AuxRequirements()) {
		return nil
	}

	action := slot.Decider.Decide(view, slot.State, rl.cfg)
	if rl.halted && action.Kind != types.ActionClose {
		// Trading is halted; only position exits may still reach the
		// simulator.
		action = types.Hold()
	}
	guarded := rl.gate.Apply(action, slot.State, c.Close, drift.Severity, c.Ts)

	if guarded.Altered && rl.mc != nil {
		rl.mc.GuardRejections.WithLabelValues(guarded.GuardName).Inc()
	}
	if guarded.HaltReason != "" {
		rl.raiseHalt(guarded.HaltReason)
	}

	resolved, ok := resolveAction(guarded.Action, slot.State.Position, drift.Multiplier)
	if !ok {
		return nil
	}
	forced := guarded.Altered && guarded.Action.Kind == types.ActionClose

	slot.cidSeq++
	intent := types.Intent{
		StrategyID:    slot.State.ID,
		ClientOrderID: types.ClientOrderID(slot.State.ID, c.Ts, slot.cidSeq),
		SubmitTs:      c.Ts,
		Action:        resolved,
		Forced:        forced,
	}

	if rl.wal != nil {
		if err := rl.wal.Append(types.WalEntry{Kind: types.WalPlaceIntent, Intent: intent}); err != nil {
			return fmt.Errorf("engine: wal append intent: %w", err)
		}
	}
	if forced {
		slot.State.ForcedCloses++
		if rl.mc != nil {
			rl.mc.ForcedCloses.Inc()
		}
	}
	rl.sim.Submit(intent, slot.Idx)
	return nil
}

// raiseHalt latches the halt flag and persists a RiskHalt record the
// first time a halt reason surfaces. Subsequent reasons do not
// overwrite the original cause.
func (rl *RunLoop) raiseHalt(reason string) {
	if rl.halted {
		return
	}
	rl.halted = true
	rl.haltReason = reason
	rl.logger.Warn("risk halt raised", zap.String("reason", reason))
	if rl.wal != nil {
		if err := rl.wal.Append(types.WalEntry{Kind: types.WalRiskHalt, HaltReason: reason}); err != nil {
			rl.logger.Error("wal append risk halt failed", zap.Error(err))
		}
	}
}

// resolveAction translates a post-gate Action into the concrete
// directional Buy/Sell the simulator expects: Close has no side of
// its own, so it is resolved against the strategy's current position,
// and Buy/Sell qty is scaled by the drift detector's position-size
// multiplier. Returns ok=false when there is nothing to submit (Hold,
// or a Close against a flat position).
func resolveAction(a types.Action, position float64, multiplier float64) (types.Action, bool) {
	switch a.Kind {
	case types.ActionHold:
		return types.Action{}, false
	case types.ActionClose:
		if position == 0 {
			return types.Action{}, false
		}
		if position > 0 {
			return types.Action{Kind: types.ActionSell, Qty: absF(position)}, true
		}
		return types.Action{Kind: types.ActionBuy, Qty: absF(position)}, true
	default:
		qty := a.Qty * multiplier
		if qty <= 0 {
			return types.Action{}, false
		}
		return types.Action{Kind: a.Kind, Qty: qty}, true
	}
}

func (rl *RunLoop) handleFill(f types.Fill) error {
	if rl.wal != nil {
		if err := rl.wal.Append(types.WalEntry{Kind: types.WalFill, Fill: f}); err != nil {
			return fmt.Errorf("engine: wal append fill: %w", err)
		}
	}

	slot, ok := rl.slots[f.StrategyID]
	if !ok {
		return fmt.Errorf("engine: fill for unknown strategy %q", f.StrategyID)
	}

	if f.Qty == 0 {
		// CancelAck: no price/fee effect.
		return nil
	}
	portfolio.ApplyFill(slot.State, f)
	// Equity must reflect the fill immediately, not wait for the next
	// candle's mark; the fill price is the latest traded price. WAL
	// recovery re-applies the same pair, so replayed equity matches.
	portfolio.UpdateMark(slot.State, f.Price)
	if rl.mc != nil {
		rl.mc.FillsApplied.Inc()
	}
	return nil
}

// RaiseRisk publishes an external risk signal (e.g. an adapter's
// circuit breaker trip) and drains it immediately, forcing a Close on
// every strategy with an open position.
func (rl *RunLoop) RaiseRisk(reason string, now int64) ([]types.Fill, error) {
	rl.bus.Publish(types.Event{
		Class:  types.ClassRisk,
		Symbol: rl.symbol,
		Ts:     now,
		Risk:   &types.RiskSignal{Reason: reason},
	})
	return rl.dispatch()
}

// Cancel requests cancellation of a still-pending order. The
// resulting CancelAck is routed through the same WAL-then-bus path as
// any other fill.
func (rl *RunLoop) Cancel(clientOrderID string) error {
	if rl.wal != nil {
		if err := rl.wal.Append(types.WalEntry{Kind: types.WalCancel, CancelID: clientOrderID}); err != nil {
			return fmt.Errorf("engine: wal append cancel: %w", err)
		}
	}
	ack, ok := rl.sim.Cancel(clientOrderID)
	if !ok {
		return nil
	}
	rl.bus.Publish(types.Event{
		Class:  types.ClassFill,
		Symbol: rl.symbol,
		Ts:     ack.Ts,
		Fill:   &ack,
	})
	_, err := rl.dispatch()
	return err
}

func (rl *RunLoop) forceCloseAll(now int64) {
	for _, id := range rl.order {
		slot := rl.slots[id]
		if slot.State.Position == 0 {
			continue
		}
		resolved, ok := resolveAction(types.CloseAction(), slot.State.Position, 1.0)
		if !ok {
			continue
		}
		slot.cidSeq++
		intent := types.Intent{
			StrategyID:    slot.State.ID,
			ClientOrderID: types.ClientOrderID(slot.State.ID, now, slot.cidSeq),
			SubmitTs:      now,
			Action:        resolved,
			Forced:        true,
		}
		if rl.wal != nil {
			_ = rl.wal.Append(types.WalEntry{Kind: types.WalPlaceIntent, Intent: intent})
		}
		slot.State.ForcedCloses++
		if rl.mc != nil {
			rl.mc.ForcedCloses.Inc()
		}
		rl.sim.Submit(intent, slot.Idx)
	}
}

// Restore applies wal.Recover's output to every registered strategy
// matching a recovered ID. Pending PlaceIntent entries without a
// matching fill are either reopened at the simulator/adapter
// (reopenPending=true, live mode) or dropped (reopenPending=false,
// backtest mode).
func (rl *RunLoop) Restore(recovered map[string]*wal.RecoveredStrategy, reopenPending bool) {
	for id, rs := range recovered {
		slot, ok := rl.slots[id]
		if !ok {
			continue
		}
		*slot.State = rs.State
		if reopenPending {
			for _, intent := range rs.PendingIntents {
				rl.sim.Submit(intent, slot.Idx)
			}
		}
	}
}

// Shutdown performs the orderly drain: a final snapshot per strategy.
// The WAL handle is left for the caller to Close (the run loop does
// not own lifecycle of a writer it did not open).
func (rl *RunLoop) Shutdown() error {
	return rl.snapshotAll()
}

func (rl *RunLoop) snapshotAll() error {
	if rl.wal == nil {
		return nil
	}
	for _, id := range rl.order {
		state := *rl.slots[id].State
		h := wal.StateHash(state)
		if err := rl.wal.Append(types.WalEntry{
			Kind:               types.WalSnapshot,
			SnapshotStrategyID: id,
			SnapshotState:      state,
			StateHash:          h,
		}); err != nil {
			return fmt.Errorf("engine: wal append snapshot: %w", err)
		}
	}
	return nil
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
