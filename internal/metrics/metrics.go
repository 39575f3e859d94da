package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	eventsFetched     *prometheus.CounterVec
	eventsDispatched  *prometheus.CounterVec
	strategyOutcomes  *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	zoneFetchFailures *prometheus.CounterVec
	cursorWrites      *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
	lastCycle         prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfnotifier",
			Name:      "events_fetched_total",
			Help:      "Raw security events returned by the upstream, by zone and strategy.",
		}, []string{"zone", "strategy"}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfnotifier",
			Name:      "events_dispatched_total",
			Help:      "New security events handed to the dispatcher, by zone.",
		}, []string{"zone"}),
		strategyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfnotifier",
			Name:      "fetch_strategy_outcomes_total",
			Help:      "Fetch strategy results by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfnotifier",
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by channel and result.",
		}, []string{"channel", "result"}),
		zoneFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfnotifier",
			Name:      "zone_fetch_failures_total",
			Help:      "Poll cycles in which every fetch strategy failed for a zone.",
		}, []string{"zone"}),
		cursorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfnotifier",
			Name:      "cursor_writes_total",
			Help:      "Cursor persistence attempts by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cfnotifier",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of one poll cycle across all zones.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cfnotifier",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last poll cycle finished.",
		}),
	}

	reg.MustRegister(
		m.eventsFetched,
		m.eventsDispatched,
		m.strategyOutcomes,
		m.notifications,
		m.zoneFetchFailures,
		m.cursorWrites,
		m.cycleDuration,
		m.lastCycle,
	)
	return m
}

// EventsFetched adds n events returned by strategy for zone
func (m *Metrics) EventsFetched(zone, strategy string, n int) {
	if m == nil {
		return
	}
	m.eventsFetched.WithLabelValues(zone, strategy).Add(float64(n))
}

// EventDispatched counts one event handed to the dispatcher
func (m *Metrics) EventDispatched(zone string) {
	if m == nil {
		return
	}
	m.eventsDispatched.WithLabelValues(zone).Inc()
}

// StrategyOutcome records the outcome of one fetch strategy attempt
func (m *Metrics) StrategyOutcome(strategy, outcome string) {
	if m == nil {
		return
	}
	m.strategyOutcomes.WithLabelValues(strategy, outcome).Inc()
}

// Notification records a send on channel; a non-nil err counts as a failure
func (m *Metrics) Notification(channel string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

// ZoneFetchFailed counts a cycle in which every strategy failed for zone
func (m *Metrics) ZoneFetchFailed(zone string) {
	if m == nil {
		return
	}
	m.zoneFetchFailures.WithLabelValues(zone).Inc()
}

// CursorWrite records a cursor save and whether it succeeded
func (m *Metrics) CursorWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cursorWrites.WithLabelValues(result).Inc()
}

// CycleFinished records a completed poll cycle that started at start
func (m *Metrics) CycleFinished(start time.Time) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(time.Since(start).Seconds())
	m.lastCycle.SetToCurrentTime()
}
