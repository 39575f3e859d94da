//go:build !windows

package notifier

import "github.com/rs/zerolog"

// NewDesktop reports that toast notifications need Windows
func NewDesktop(_ string, _ zerolog.Logger) (Channel, error) {
	return nil, ErrChannelUnavailable
}
