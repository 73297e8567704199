package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"go-icewatch/collectors"
	"go-icewatch/config"
	"go-icewatch/correlation"
	"go-icewatch/db"
	"go-icewatch/geocode"
	"go-icewatch/monitoring"
	"go-icewatch/nlp"
	"go-icewatch/notifications"
	"go-icewatch/pipeline"
	"go-icewatch/processor"
	"go-icewatch/routes"
	"go-icewatch/scheduler"
	"go-icewatch/types"
)

const (
	exitOK     = 0
	exitConfig = 1
	exitStore  = 2
	exitSignal = 130
)

var (
	flagDryRun   bool
	flagLogLevel string
	flagConfig   string
)

// errSignalShutdown marks a clean signal-driven exit (code 130).
var errSignalShutdown = errors.New("terminated by signal")

func main() {
	rootCmd := &cobra.Command{
		Use:   "icewatch",
		Short: "Monitors community and media sources for ICE enforcement activity",
		Long: "icewatch ingests reports of immigration enforcement activity from " +
			"community platforms, social media, and local news, correlates reports " +
			"that describe the same incident, and forwards corroborated alerts to a " +
			"chat webhook.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "log alerts instead of sending to the webhook")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "override log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to env config file (default .env)")

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errSignalShutdown) {
			os.Exit(exitSignal)
		}
		monitoring.Errorf("fatal: %v", err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitOK)
}

func exitCodeFor(err error) int {
	var (
		cfgErr   *types.ConfigError
		storeErr *types.StoreError
		invErr   *types.InvariantViolation
	)
	switch {
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &storeErr), errors.As(err, &invErr):
		return exitStore
	default:
		return exitConfig
	}
}

func run() error {
	envFile := flagConfig
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && flagConfig != "" {
		// An explicit --config that cannot be read is a hard error; a
		// missing default .env is fine.
		return &types.ConfigError{Field: "config", Err: err}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagDryRun {
		cfg.DryRun = true
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	monitoring.SetLevel(monitoring.ParseLevel(cfg.LogLevel))

	monitoring.Infof("icewatch starting: locale=%s dry_run=%v", cfg.Locale.Name, cfg.DryRun)

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return &types.StoreError{Op: "open", Err: err}
	}
	defer store.Close()

	ctx := context.Background()

	gaz, err := geocode.LoadGazetteer()
	if err != nil {
		return &types.ConfigError{Field: "geodata", Err: err}
	}

	// NER and the maps fallback are optional capabilities: without them
	// the extractor runs gazetteer-only.
	var recognizer nlp.Recognizer
	nlpClient, err := nlp.NewClient(ctx, cfg.NLPCredentials)
	if err != nil {
		monitoring.Warnf("nlp unavailable, extractor degrades to gazetteer-only: %v", err)
	} else if nlpClient != nil {
		recognizer = nlpClient
		defer nlpClient.Close()
	}

	var resolver geocode.CityResolver
	mapsResolver, err := geocode.NewMapsResolver(cfg.MapsAPIKey, cfg.Locale.DisplayName)
	if err != nil {
		monitoring.Warnf("maps geocoding unavailable: %v", err)
	} else if mapsResolver != nil {
		resolver = mapsResolver
	}

	extractor := geocode.NewExtractor(gaz, recognizer, resolver,
		cfg.Locale.CenterLat, cfg.Locale.CenterLon, cfg.MaxDistanceKM)
	filter := processor.NewFilter(cfg, gaz, store)
	correlator := correlation.New(cfg)
	notifier := notifications.New(cfg, store, notifications.NewSummarizer(cfg.OpenAIKey))

	sched := scheduler.New(cfg)
	pipe := pipeline.New(store, filter, extractor, correlator, notifier, sched.Queue())
	if err := pipe.WarmStart(); err != nil {
		return err
	}

	var enabled []collectors.Collector
	for _, c := range []collectors.Collector{
		collectors.NewIceout(cfg, ""),
		collectors.NewStopICE(cfg, ""),
		collectors.NewBluesky(cfg, ""),
		collectors.NewInstagram(cfg, ""),
		collectors.NewRSS(cfg, nil),
	} {
		if cfg.Sources[c.Name()].Enabled {
			sched.Register(c)
			enabled = append(enabled, c)
		}
	}
	if len(enabled) == 0 {
		return &types.ConfigError{Field: "sources", Err: fmt.Errorf("no collectors enabled")}
	}

	// Daily retention sweep.
	maintenance := cron.New()
	if _, err := maintenance.AddFunc("30 4 * * *", func() {
		if err := store.PurgeOlderThan(time.Now().Add(-7 * 24 * time.Hour)); err != nil {
			monitoring.Errorf("retention purge failed: %v", err)
		}
	}); err != nil {
		return &types.ConfigError{Field: "maintenance", Err: err}
	}
	maintenance.Start()
	defer maintenance.Stop()

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: routes.SetupRouter(store, sched.DisabledSources),
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Errorf("status api: %v", err)
		}
	}()

	pipeErr := make(chan error, 1)
	go func() {
		pipeErr <- pipe.Run(ctx)
	}()

	sched.Start(enabled)
	monitoring.Infof("icewatch running with %d collector(s)", len(enabled))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}

	select {
	case <-sigCtx.Done():
		monitoring.Infof("shutdown signal received, draining")
		sched.Stop()
		if err := <-pipeErr; err != nil {
			shutdownHTTP()
			return err
		}
		shutdownHTTP()
		monitoring.Infof("shutdown complete")
		return errSignalShutdown
	case err := <-pipeErr:
		sched.Stop()
		shutdownHTTP()
		if err == nil {
			err = fmt.Errorf("pipeline stopped unexpectedly")
		}
		return err
	}
}
