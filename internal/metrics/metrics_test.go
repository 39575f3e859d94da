package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.EventsFetched("z", "s", 3)
	m.EventDispatched("z")
	m.StrategyOutcome("s", "success")
	m.Notification("webhook", nil)
	m.ZoneFetchFailed("z")
	m.CursorWrite(nil)
	m.CycleFinished(time.Now())
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EventsFetched("zone-a", "security-events", 2)
	m.EventsFetched("zone-a", "security-events", 3)
	m.Notification("webhook", nil)
	m.Notification("webhook", errors.New("boom"))
	m.Notification("webhook", errors.New("boom"))
	m.CursorWrite(nil)

	if got := testutil.ToFloat64(m.eventsFetched.WithLabelValues("zone-a", "security-events")); got != 5 {
		t.Errorf("events fetched = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("webhook", "error")); got != 2 {
		t.Errorf("webhook errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("webhook", "ok")); got != 1 {
		t.Errorf("webhook ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cursorWrites.WithLabelValues("ok")); got != 1 {
		t.Errorf("cursor writes = %v, want 1", got)
	}
}

func TestCycleFinished(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.CycleFinished(time.Now().Add(-time.Second))

	if got := testutil.CollectAndCount(m.cycleDuration); got != 1 {
		t.Errorf("histogram series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastCycle); got <= 0 {
		t.Errorf("last cycle gauge = %v, want > 0", got)
	}
}
