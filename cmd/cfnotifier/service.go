package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cfnotifier/cfnotifier/internal/logbuffer"
)

// program adapts the poller to the service manager
type program struct {
	configPath string
	logger     zerolog.Logger
	logBuffer  *logbuffer.Buffer
	cancel     context.CancelFunc
	done       chan struct{}
}

// Start must not block
func (p *program) Start(s service.Service) error {
	a, err := newApp(p.configPath, p.logger, p.logBuffer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := a.run(ctx, false); err != nil {
			p.logger.Error().Err(err).Msg("Poller exited with error")
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.logger.Info().Msg("Stopping service")
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.done:
	case <-time.After(10 * time.Second):
		p.logger.Warn().Msg("Poller did not stop in time")
	}
	return nil
}

var serviceCmd = &cobra.Command{
	Use:       "service {install|uninstall|start|stop|restart|run}",
	Short:     "Manage cfnotifier as an OS service",
	Long:      "Install, control or run cfnotifier under the system service manager (systemd, launchd, Windows SCM).",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: append([]string{"run"}, service.ControlAction[:]...),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(configPath())
		if err != nil {
			return err
		}

		logger, logBuffer := newLogger()
		prg := &program{
			configPath: path,
			logger:     logger,
			logBuffer:  logBuffer,
		}

		s, err := service.New(prg, &service.Config{
			Name:        "cfnotifier",
			DisplayName: "Cloudflare Security Notifier",
			Description: "Forwards new Cloudflare security events to notification channels",
			Arguments: []string{
				"service", "run",
				"--config", path,
				"--log-level", viper.GetString("log_level"),
			},
		})
		if err != nil {
			return err
		}

		action := args[0]
		if action == "run" {
			return s.Run()
		}
		if err := service.Control(s, action); err != nil {
			return fmt.Errorf("failed to %s service: %w", action, err)
		}
		fmt.Printf("Service action '%s' completed successfully.\n", action)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
}
