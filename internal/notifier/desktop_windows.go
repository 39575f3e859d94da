//go:build windows

package notifier

import (
	"context"

	"github.com/go-toast/toast"
	"github.com/rs/zerolog"

	"github.com/cfnotifier/cfnotifier/internal/types"
)

// Desktop shows notifications as Windows toasts
type Desktop struct {
	appID  string
	logger zerolog.Logger
}

// NewDesktop creates the Windows toast channel
func NewDesktop(appID string, logger zerolog.Logger) (Channel, error) {
	return &Desktop{
		appID:  appID,
		logger: logger.With().Str("channel", "desktop").Logger(),
	}, nil
}

// Name implements Channel
func (d *Desktop) Name() string {
	return "desktop"
}

// Send implements Channel
func (d *Desktop) Send(_ context.Context, n types.Notification) error {
	t := toast.Notification{
		AppID:   d.appID,
		Title:   n.Title,
		Message: n.Body,
	}
	if err := t.Push(); err != nil {
		return err
	}
	d.logger.Debug().Str("notification_id", n.ID).Msg("Toast shown")
	return nil
}
