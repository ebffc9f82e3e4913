// Package metrics exposes prometheus counters and gauges for the run
// loop's own health: events processed, fills applied, risk-gate
// rejections per guard, equity, and maximum drawdown. No /metrics endpoint is
// served here; a caller embedding this engine in a longer-lived
// process registers these collectors against its own registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every metric the run loop updates. Registering
// them is the caller's responsibility — Collectors never touches a
// default or global registry on its own.
type Collectors struct {
	EventsProcessed prometheus.Counter
	FillsApplied    prometheus.Counter
	ForcedCloses    prometheus.Counter
	GuardRejections *prometheus.CounterVec
	Equity          *prometheus.GaugeVec
	Drawdown        *prometheus.GaugeVec
}

// New constructs a fresh Collectors set, namespaced under
// "arbitragefx", ready to be passed to a prometheus.Registerer.
func New() *Collectors {
	return &Collectors{
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbitragefx",
			Name:      "events_processed_total",
			Help:      "Total events dispatched by the run loop.",
		}),
		FillsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbitragefx",
			Name:      "fills_applied_total",
			Help:      "Total fills applied to strategy state.",
		}),
		ForcedCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbitragefx",
			Name:      "forced_closes_total",
			Help:      "Total Close actions issued by the risk gate rather than a strategy.",
		}),
		GuardRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbitragefx",
			Name:      "guard_rejections_total",
			Help:      "Actions altered or blocked by the risk gate, by guard name.",
		}, []string{"guard"}),
		Equity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "arbitragefx",
			Name:      "strategy_equity",
			Help:      "Current mark-to-market equity per strategy.",
		}, []string{"strategy_id"}),
		Drawdown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "arbitragefx",
			Name:      "strategy_drawdown",
			Help:      "Maximum fractional drawdown from peak equity so far per strategy.",
		}, []string{"strategy_id"}),
	}
}

// MustRegister registers every collector against reg, panicking on a
// duplicate registration.
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.EventsProcessed, c.FillsApplied, c.ForcedCloses, c.GuardRejections, c.Equity, c.Drawdown)
}
