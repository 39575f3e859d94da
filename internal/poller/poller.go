package poller

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cfnotifier/cfnotifier/internal/classifier"
	"github.com/cfnotifier/cfnotifier/internal/cursor"
	"github.com/cfnotifier/cfnotifier/internal/metrics"
	"github.com/cfnotifier/cfnotifier/internal/types"
)

// EventSource fetches raw security events for a zone
type EventSource interface {
	FetchEvents(ctx context.Context, zoneID string, since time.Time, pageSize int) ([]types.RawEvent, error)
	ZoneName(ctx context.Context, zoneID string) string
}

// Dispatcher delivers a formatted notification
type Dispatcher interface {
	Send(ctx context.Context, n types.Notification) error
}

// CursorStore loads and persists the per-zone cursor
type CursorStore interface {
	Load() cursor.Cursor
	Save(c cursor.Cursor) error
}

// Options configures a Poller
type Options struct {
	Zones    []string
	Interval time.Duration
	Lookback time.Duration
	PageSize int
	Now      func() time.Time
}

// Poller runs the fetch, filter, dispatch and persist cycle over all zones
type Poller struct {
	opts       Options
	source     EventSource
	dispatcher Dispatcher
	store      CursorStore
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	// owned by the loop goroutine
	initOnce     sync.Once
	cursor       cursor.Cursor
	initialSince time.Time

	mu     sync.RWMutex
	status Status
}

// Status is a point-in-time view of the poller for the status API
type Status struct {
	Zones     []ZoneStatus `json:"zones"`
	Cycles    int          `json:"cycles"`
	Delivered int          `json:"delivered"`
	LastCycle time.Time    `json:"last_cycle"`
	Interval  string       `json:"interval"`
}

// ZoneStatus is the per-zone part of Status
type ZoneStatus struct {
	types.Zone
	Cursor    time.Time `json:"cursor"`
	LastPoll  time.Time `json:"last_poll"`
	LastError string    `json:"last_error,omitempty"`
	Delivered int       `json:"delivered"`
}

// CycleResult summarizes one cycle
type CycleResult struct {
	Delivered   int
	FailedZones []string
	Persisted   bool
}

// New creates a Poller
func New(opts Options, source EventSource, dispatcher Dispatcher, store CursorStore, logger zerolog.Logger, m *metrics.Metrics) *Poller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	zones := make([]ZoneStatus, len(opts.Zones))
	for i, z := range opts.Zones {
		zones[i] = ZoneStatus{Zone: types.Zone{ID: z}}
	}

	return &Poller{
		opts:       opts,
		source:     source,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger.With().Str("component", "poller").Logger(),
		metrics:    m,
		now:        now,
		status: Status{
			Zones:    zones,
			Interval: opts.Interval.String(),
		},
	}
}

// Run polls until ctx is cancelled. A panic inside a cycle is logged and the
// loop carries on with the next cycle.
func (p *Poller) Run(ctx context.Context) error {
	p.init()

	p.logger.Info().
		Int("zones", len(p.opts.Zones)).
		Dur("interval", p.opts.Interval).
		Dur("lookback", p.opts.Lookback).
		Msg("Poller started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return nil
		case <-timer.C:
		}

		p.safeCycle(ctx)
		timer.Reset(p.opts.Interval)
	}
}

// Status returns a copy of the current status
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.status
	s.Zones = append([]ZoneStatus(nil), p.status.Zones...)
	return s
}

func (p *Poller) init() {
	p.initOnce.Do(func() {
		p.cursor = p.store.Load()
		p.initialSince = p.now().Add(-p.opts.Lookback)

		p.mu.Lock()
		for i := range p.status.Zones {
			p.status.Zones[i].Cursor = p.cursor[p.status.Zones[i].ID]
		}
		p.mu.Unlock()
	})
}

func (p *Poller) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Poll cycle panicked, continuing with next cycle")
		}
	}()
	p.RunCycle(ctx)
}

// RunCycle polls every zone once and persists the cursor if any zone
// advanced. It must only be called from one goroutine at a time.
func (p *Poller) RunCycle(ctx context.Context) CycleResult {
	p.init()

	start := time.Now()
	logger := p.logger.With().Str("cycle_id", uuid.NewString()).Logger()
	var result CycleResult
	advanced := false

	for _, zone := range p.opts.Zones {
		if ctx.Err() != nil {
			logger.Debug().Msg("Cycle interrupted")
			break
		}

		delivered, moved, err := p.pollZone(ctx, logger, zone)
		result.Delivered += delivered
		if err != nil {
			result.FailedZones = append(result.FailedZones, zone)
		}
		advanced = advanced || moved
	}

	if advanced {
		err := p.store.Save(p.cursor)
		p.metrics.CursorWrite(err)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to persist cursor")
		} else {
			result.Persisted = true
			logger.Debug().Msg("Cursor persisted")
		}
	}

	p.metrics.CycleFinished(start)

	p.mu.Lock()
	p.status.Cycles++
	p.status.Delivered += result.Delivered
	p.status.LastCycle = p.now()
	p.mu.Unlock()

	if result.Delivered > 0 || len(result.FailedZones) > 0 {
		logger.Info().
			Int("delivered", result.Delivered).
			Strs("failed_zones", result.FailedZones).
			Dur("duration", time.Since(start)).
			Msg("Poll cycle complete")
	}
	return result
}

// pollZone fetches, filters and dispatches one zone. It reports how many
// events were dispatched and whether the zone's cursor moved. Once ctx is
// cancelled no further events are sent and the cursor only covers events
// whose send ran to completion.
func (p *Poller) pollZone(ctx context.Context, logger zerolog.Logger, zoneID string) (int, bool, error) {
	since, known := p.cursor[zoneID]
	if !known {
		since = p.initialSince
	}

	name := p.source.ZoneName(ctx, zoneID)
	zlog := logger.With().Str("zone", zoneID).Str("zone_name", name).Logger()

	raws, err := p.source.FetchEvents(ctx, zoneID, since, p.opts.PageSize)
	if err != nil {
		zlog.Error().Err(err).Time("since", since).Msg("Failed to fetch security events")
		p.metrics.ZoneFetchFailed(zoneID)
		p.updateZone(zoneID, func(z *ZoneStatus) {
			z.Name = name
			z.LastPoll = p.now()
			z.LastError = err.Error()
		})
		return 0, false, err
	}

	pending := selectNew(raws, since, p.now())
	if len(pending) > 0 {
		zlog.Info().
			Int("fetched", len(raws)).
			Int("new", len(pending)).
			Msg("New security events")
	}

	// below is the newest dispatched timestamp strictly older than newest
	var newest, below time.Time
	dispatched := 0
	for _, ev := range pending {
		interrupted := ctx.Err() != nil
		if !interrupted {
			err := p.deliver(ctx, zoneID, name, ev)
			if err != nil && ctx.Err() != nil {
				zlog.Warn().
					Err(err).
					Str("ray_id", ev.RayID).
					Msg("Event delivery interrupted")
				interrupted = true
			} else if err != nil {
				zlog.Warn().
					Err(err).
					Str("ray_id", ev.RayID).
					Msg("Event delivery incomplete")
			}
		}
		if interrupted {
			// siblings sharing this timestamp would be filtered out after a restart
			if ev.HasTimestamp() && !ev.Timestamp.After(newest) {
				newest = below
			}
			zlog.Info().
				Int("undelivered", len(pending)-dispatched).
				Msg("Dispatch interrupted, remaining events stay after the cursor")
			break
		}

		dispatched++
		p.metrics.EventDispatched(zoneID)
		if ev.Timestamp.After(newest) {
			below, newest = newest, ev.Timestamp
		}
	}

	moved := p.cursor.Advance(zoneID, newest)
	cur := p.cursor[zoneID]
	p.updateZone(zoneID, func(z *ZoneStatus) {
		z.Name = name
		z.LastPoll = p.now()
		z.LastError = ""
		z.Cursor = cur
		z.Delivered += dispatched
	})
	return dispatched, moved, nil
}

// deliver formats and sends one event. Panics are turned into errors so the
// remaining events still go out.
func (p *Poller) deliver(ctx context.Context, zoneID, zoneName string, ev types.NormalizedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	n := classifier.Format(zoneID, zoneName, ev)
	return p.dispatcher.Send(ctx, n)
}

func (p *Poller) updateZone(zoneID string, fn func(*ZoneStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.status.Zones {
		if p.status.Zones[i].ID == zoneID {
			fn(&p.status.Zones[i])
			return
		}
	}
}

// selectNew normalizes raws, drops events at or before since and returns the
// rest oldest first. Events without a timestamp are kept and sort as now.
func selectNew(raws []types.RawEvent, since, now time.Time) []types.NormalizedEvent {
	out := make([]types.NormalizedEvent, 0, len(raws))
	for _, raw := range raws {
		ev := types.Normalize(raw)
		if ev.HasTimestamp() && !ev.Timestamp.After(since) {
			continue
		}
		out = append(out, ev)
	}

	key := func(ev types.NormalizedEvent) time.Time {
		if ev.HasTimestamp() {
			return ev.Timestamp
		}
		return now
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]).Before(key(out[j]))
	})
	return out
}
