package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cfnotifier/cfnotifier/internal/api"
	"github.com/cfnotifier/cfnotifier/internal/cloudflare"
	"github.com/cfnotifier/cfnotifier/internal/config"
	"github.com/cfnotifier/cfnotifier/internal/cursor"
	"github.com/cfnotifier/cfnotifier/internal/logbuffer"
	"github.com/cfnotifier/cfnotifier/internal/metrics"
	"github.com/cfnotifier/cfnotifier/internal/notifier"
	"github.com/cfnotifier/cfnotifier/internal/poller"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll Cloudflare and deliver new security events",
	RunE:  runE,
}

func init() {
	runCmd.Flags().Bool("once", false, "run a single poll cycle and exit")
	rootCmd.AddCommand(runCmd)
}

func runE(cmd *cobra.Command, _ []string) error {
	logger, logBuffer := newLogger()
	logger.Info().Msg("Starting cfnotifier")

	a, err := newApp(configPath(), logger, logBuffer)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("config_path", configPath()).
			Msg("Failed to load configuration")
	}

	return a.run(cmd.Context(), onceRequested(cmd))
}

func onceRequested(cmd *cobra.Command) bool {
	if f := cmd.Flags().Lookup("once"); f != nil && f.Changed {
		once, _ := cmd.Flags().GetBool("once")
		return once
	}
	return viper.GetBool("once")
}

// app holds the wired components of one notifier process
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	dispatcher *notifier.Dispatcher
	poller     *poller.Poller
	api        *api.Server
}

// newApp loads the config and wires every component. A missing config file
// is replaced by the commented template and reported as an error.
func newApp(path string, logger zerolog.Logger, logBuffer *logbuffer.Buffer) (*app, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if _, werr := config.WriteTemplate(path); werr != nil {
			return nil, werr
		}
		return nil, fmt.Errorf("config file created at %s; fill in credentials and zone ids, then run again", path)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	cred := cfg.ResolveCredentials()
	client := cloudflare.NewClient(cloudflare.Options{
		BaseURL:        cfg.Cloudflare.BaseURL,
		APIToken:       cred.APIToken,
		APIKey:         cred.APIKey,
		Email:          cred.Email,
		VerifyTLS:      cfg.VerifyTLS(),
		Timeout:        cfg.Cloudflare.Timeout,
		FallbackWindow: cfg.Cloudflare.FallbackWindow,
	}, logger, m)
	if !cfg.VerifyTLS() {
		logger.Warn().Msg("TLS certificate verification is disabled for the Cloudflare API")
	}

	dispatcher := notifier.New(cfg, logger, m)
	store := cursor.NewStore(cfg.Polling.StatePath, logger)
	logger.Info().
		Int("zones", len(cfg.Zones)).
		Strs("channels", dispatcher.Channels()).
		Str("state_path", store.Path()).
		Msg("Configuration loaded")

	p := poller.New(poller.Options{
		Zones:    cfg.Zones,
		Interval: cfg.Polling.Interval,
		Lookback: cfg.Polling.Lookback,
		PageSize: cfg.Cloudflare.PageSize,
	}, client, dispatcher, store, logger, m)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		poller:     p,
	}

	if cfg.API.Enabled {
		srv := api.NewServer(cfg.API.Listen, p, registry, logger)
		srv.SetLogBuffer(logBuffer)
		srv.SetChannels(dispatcher.Channels())
		a.api = srv
	}
	return a, nil
}

// run polls until ctx is cancelled, or for one cycle when once is set
func (a *app) run(ctx context.Context, once bool) error {
	defer func() {
		if err := a.dispatcher.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close notification channels")
		}
	}()

	if once {
		res := a.poller.RunCycle(ctx)
		a.logger.Info().
			Int("delivered", res.Delivered).
			Strs("failed_zones", res.FailedZones).
			Msg("Single poll cycle finished")
		if len(res.FailedZones) == len(a.cfg.Zones) {
			return errors.New("fetch failed for every zone")
		}
		return nil
	}

	if a.api != nil {
		go func() {
			if err := a.api.Start(ctx); err != nil {
				a.logger.Error().Err(err).Msg("API server failed")
			}
		}()
	}

	err := a.poller.Run(ctx)
	a.logger.Info().Msg("Shutting down")
	return err
}
