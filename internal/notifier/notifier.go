package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cfnotifier/cfnotifier/internal/config"
	"github.com/cfnotifier/cfnotifier/internal/metrics"
	"github.com/cfnotifier/cfnotifier/internal/types"
)

// ErrChannelUnavailable is returned by channel constructors that cannot run
// on this host.
var ErrChannelUnavailable = errors.New("channel unavailable on this platform")

// Channel delivers notifications to one destination
type Channel interface {
	Name() string
	Send(ctx context.Context, n types.Notification) error
}

// Dispatcher fans notifications out to every available channel
type Dispatcher struct {
	channels []Channel
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	warnOnce sync.Once
}

// New builds a Dispatcher from the notification config. Channels that fail
// to initialize are logged and left out.
func New(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	nc := cfg.Notifications
	var channels []Channel

	if url := cfg.WebhookURL(); url != "" {
		channels = append(channels, NewWebhook(url, nc.Webhook.Timeout, logger))
	}

	if nc.Desktop.Enabled {
		ch, err := NewDesktop(nc.Desktop.AppID, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("channel", "desktop").
				Msg("Desktop notifications enabled but unavailable")
		} else {
			channels = append(channels, ch)
		}
	}

	if len(nc.Kafka.Brokers) > 0 && nc.Kafka.Topic != "" {
		channels = append(channels, NewKafka(nc.Kafka.Brokers, nc.Kafka.Topic, logger))
	}

	return NewWithChannels(channels, logger, m)
}

// NewWithChannels builds a Dispatcher over an explicit channel list
func NewWithChannels(channels []Channel, logger zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		channels: channels,
		logger:   logger.With().Str("component", "notifier").Logger(),
		metrics:  m,
	}
	for _, ch := range channels {
		d.logger.Info().Str("channel", ch.Name()).Msg("Notification channel ready")
	}
	return d
}

// Channels returns the names of the active channels
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Send delivers n to every channel. A failing channel does not stop the
// others; the returned error joins every channel failure, each of which has
// already been logged. With no channels the notification is dropped.
func (d *Dispatcher) Send(ctx context.Context, n types.Notification) error {
	if len(d.channels) == 0 {
		d.warnOnce.Do(func() {
			d.logger.Warn().Msg("No notification channels available, notifications will be dropped")
		})
		return nil
	}

	var errs []error
	for _, ch := range d.channels {
		err := sendSafe(ctx, ch, n)
		d.metrics.Notification(ch.Name(), err)
		if err != nil {
			d.logger.Error().
				Err(err).
				Str("channel", ch.Name()).
				Str("notification_id", n.ID).
				Str("zone", n.ZoneID).
				Msg("Failed to send notification")
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		d.logger.Info().
			Str("channel", ch.Name()).
			Str("notification_id", n.ID).
			Str("title", n.Title).
			Msg("Notification sent")
	}
	return errors.Join(errs...)
}

// Close releases channels that hold connections
func (d *Dispatcher) Close() error {
	var errs []error
	for _, ch := range d.channels {
		if c, ok := ch.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func sendSafe(ctx context.Context, ch Channel, n types.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ch.Send(ctx, n)
}
