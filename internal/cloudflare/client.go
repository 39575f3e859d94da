package cloudflare

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/cfnotifier/cfnotifier/internal/metrics"
	"github.com/cfnotifier/cfnotifier/internal/types"
)

// ErrFetchFailed marks a zone whose every fetch strategy failed this cycle.
// It is distinct from an empty result, which means "no new events".
var ErrFetchFailed = errors.New("security events fetch failed")

const (
	defaultTimeout        = 15 * time.Second
	defaultFallbackWindow = 60 * time.Minute
)

// Options configures a Client
type Options struct {
	BaseURL        string
	APIToken       string
	APIKey         string
	Email          string
	VerifyTLS      bool
	Timeout        time.Duration
	FallbackWindow time.Duration
}

// Client talks to the Cloudflare v4 API. One Client is shared by the whole
// poll loop.
type Client struct {
	http           *resty.Client
	logger         zerolog.Logger
	metrics        *metrics.Metrics
	strategies     []restStrategy
	fallbackWindow time.Duration
	now            func() time.Time

	mu        sync.Mutex
	zoneNames map[string]string
}

// apiResponse is the common v4 response envelope
type apiResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []apiError      `json:"errors"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e apiError) String() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewClient creates a Cloudflare API client
func NewClient(opts Options, logger zerolog.Logger, m *metrics.Metrics) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	window := opts.FallbackWindow
	if window == 0 {
		window = defaultFallbackWindow
	}

	r := resty.New()
	r.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	r.SetTimeout(timeout)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	if opts.APIToken != "" {
		r.SetAuthToken(opts.APIToken)
	} else if opts.APIKey != "" && opts.Email != "" {
		r.SetHeader("X-Auth-Key", opts.APIKey)
		r.SetHeader("X-Auth-Email", opts.Email)
	}
	if !opts.VerifyTLS {
		r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		http:           r,
		logger:         logger.With().Str("component", "cloudflare").Logger(),
		metrics:        m,
		strategies:     restStrategies,
		fallbackWindow: window,
		now:            time.Now,
		zoneNames:      make(map[string]string),
	}
}

// FetchEvents returns the security events of a zone newer than since, trying
// the REST listings in order and then the GraphQL analytics dataset. An empty
// slice with a nil error means the zone has no new events. A non-nil error
// wraps ErrFetchFailed.
func (c *Client) FetchEvents(ctx context.Context, zoneID string, since time.Time, pageSize int) ([]types.RawEvent, error) {
	for _, s := range c.strategies {
		res := s.fetch(ctx, c.http, zoneID, since, pageSize)
		c.metrics.StrategyOutcome(s.name, res.Outcome.String())

		switch res.Outcome {
		case Success:
			c.metrics.EventsFetched(zoneID, s.name, len(res.Events))
			c.logger.Debug().
				Str("zone", zoneID).
				Str("strategy", s.name).
				Int("events", len(res.Events)).
				Msg("Fetched security events")
			return res.Events, nil
		case NotApplicable:
			c.logger.Debug().
				Str("zone", zoneID).
				Str("strategy", s.name).
				Msg("Endpoint not available, trying next strategy")
		case Failure:
			c.logger.Warn().
				Err(res.Err).
				Str("zone", zoneID).
				Str("strategy", s.name).
				Msg("Fetch strategy failed, trying next strategy")
		}
	}

	events, err := c.fetchAnalytics(ctx, zoneID, since, pageSize)
	if err != nil {
		c.metrics.StrategyOutcome(analyticsStrategy, Failure.String())
		return nil, fmt.Errorf("%w: zone %s: %v", ErrFetchFailed, zoneID, err)
	}
	c.metrics.StrategyOutcome(analyticsStrategy, Success.String())
	c.metrics.EventsFetched(zoneID, analyticsStrategy, len(events))
	return events, nil
}

// ZoneName returns the display name of a zone. Lookups happen once per zone;
// on any failure the zone id itself is cached and returned.
func (c *Client) ZoneName(ctx context.Context, zoneID string) string {
	c.mu.Lock()
	if name, ok := c.zoneNames[zoneID]; ok {
		c.mu.Unlock()
		return name
	}
	c.mu.Unlock()

	name, err := c.lookupZoneName(ctx, zoneID)
	if err != nil && ctx.Err() != nil {
		// cancelled, not a resolution failure; retry next time
		return zoneID
	}
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("zone", zoneID).
			Msg("Could not resolve zone name, using zone id")
		name = zoneID
	}

	c.mu.Lock()
	c.zoneNames[zoneID] = name
	c.mu.Unlock()
	return name
}

func (c *Client) lookupZoneName(ctx context.Context, zoneID string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("zone", zoneID).
		Get("/zones/{zone}")
	if err != nil {
		return "", err
	}

	var payload apiResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", fmt.Errorf("http %d: malformed body: %w", resp.StatusCode(), err)
	}
	if resp.StatusCode() != 200 || !payload.Success {
		return "", fmt.Errorf("http %d: %v", resp.StatusCode(), payload.Errors)
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(payload.Result, &result); err != nil {
		return "", fmt.Errorf("malformed zone result: %w", err)
	}
	if result.Name == "" {
		return zoneID, nil
	}
	return result.Name, nil
}
