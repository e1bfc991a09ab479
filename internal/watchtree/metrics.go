package watchtree

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus collectors: how many watches are
// live, how many events have been processed, how many overflow conditions
// were observed, and whether the adapter's quota has ever been exhausted.
// They are served on the optional HTTP /metrics endpoint; the STATS record
// does not read them, but reads the same live-watch and limit-reached
// values directly from the Engine.
type Metrics struct {
	watchesLive     prometheus.GaugeFunc
	eventsProcessed prometheus.Counter
	overflows       prometheus.Counter
	limitReached    prometheus.GaugeFunc
}

func newMetrics() *Metrics {
	return &Metrics{
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fswatchd",
			Name:      "events_processed_total",
			Help:      "Number of normalized filesystem events dispatched.",
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fswatchd",
			Name:      "overflows_total",
			Help:      "Number of kernel event queue overflow conditions observed.",
		}),
	}
}

// RegisterMetrics attaches watchesLive/limitReached gauges bound to e and
// registers every collector with reg.
func (e *Engine) RegisterMetrics(reg prometheus.Registerer) {
	m := e.metrics
	m.watchesLive = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "fswatchd",
		Name:      "watches_live",
		Help:      "Number of live kernel watch registrations.",
	}, func() float64 { return float64(e.StoreLen()) })
	m.limitReached = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "fswatchd",
		Name:      "limit_reached",
		Help:      "1 if the kernel watch quota has ever been exhausted.",
	}, func() float64 {
		if e.LimitReached() {
			return 1
		}
		return 0
	})
	reg.MustRegister(m.eventsProcessed, m.overflows, m.watchesLive, m.limitReached)
}
