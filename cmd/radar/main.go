// Package main is the entry point for the Kava yield radar, a pipeline that
// aggregates yield opportunities from multiple providers into a categorized
// report delivered over Telegram.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-radar/internal/aggregate"
	"github.com/yourorg/yield-radar/internal/circuitbreaker"
	"github.com/yourorg/yield-radar/internal/config"
	"github.com/yourorg/yield-radar/internal/fetch"
	"github.com/yourorg/yield-radar/internal/history"
	"github.com/yourorg/yield-radar/internal/otel"
	"github.com/yourorg/yield-radar/internal/pipeline"
	"github.com/yourorg/yield-radar/internal/report"
	"github.com/yourorg/yield-radar/internal/telegram"
	"github.com/yourorg/yield-radar/internal/validation"
)

var startTime = time.Now()

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	once := flag.Bool("once", false, "run one pipeline pass, print the report, and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	shutdownTracer := otel.InitTracer(cfg.Tracing.Endpoint)
	defer shutdownTracer()

	runner, store, breaker, err := buildRunner(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		rep, err := runner.RunOnce(ctx)
		if err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		if rep.Message != "" {
			fmt.Println(rep.Message)
		} else {
			logrus.WithField("reason", rep.SkipReason).Warn("No report produced")
		}
		return
	}

	metrics := registerMetrics()
	server := startServer(cfg.Server.ListenAddr, breaker)

	logrus.WithFields(logrus.Fields{
		"interval":    cfg.Schedule.Interval,
		"listen_addr": cfg.Server.ListenAddr,
		"telegram":    cfg.Telegram.Enabled,
	}).Info("Yield radar started")

	runLoop(ctx, runner, metrics, breaker, cfg.Schedule.Interval)

	logrus.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
	if err := store.Flush(); err != nil {
		logrus.WithError(err).Error("Final history flush failed")
	}
	logrus.Info("Stopped")
}

// buildRunner assembles the pipeline from configuration.
func buildRunner(cfg *config.Config) (*pipeline.Runner, *history.FileStore, *circuitbreaker.CircuitBreaker, error) {
	adapters := buildAdapters(cfg)
	if len(adapters) == 0 {
		return nil, nil, nil, fmt.Errorf("no source adapters enabled")
	}

	store, err := history.NewFileStore(cfg.History.FilePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening history store: %w", err)
	}

	breaker := circuitbreaker.New(circuitbreaker.Thresholds{
		MinProviders: cfg.Breaker.MinProviders,
		MaxTVLChange: cfg.Breaker.MaxTVLChange,
	}).WithResetDelay(cfg.Breaker.ResetDelay)

	var notifier pipeline.Notifier
	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating telegram client: %w", err)
		}
		notifier = client
	}

	rules := make([]aggregate.OverlapRule, 0, len(cfg.Aggregate.OverlapRules))
	for _, rule := range cfg.Aggregate.OverlapRules {
		rules = append(rules, aggregate.OverlapRule{
			ProtocolPattern: rule.ProtocolPattern,
			ExcludeFrom:     rule.ExcludeFrom,
		})
	}

	aggregator := aggregate.New(adapters, aggregate.Options{
		Rules: rules,
		TopN:  cfg.Aggregate.TopN,
		Validity: validation.Options{
			MinAPY: cfg.Filters.MinAPY,
			MaxAPY: cfg.Filters.MaxAPY,
		},
		AdapterTimeout: cfg.Aggregate.AdapterTimeout,
	})

	runner := pipeline.NewRunner(
		aggregator,
		breaker,
		history.NewTracker(store),
		report.NewFormatter("Kava Yield Radar"),
		notifier,
		cfg.History.WindowDays,
	).WithFlush(store.Flush)

	return runner, store, breaker, nil
}

// buildAdapters creates the enabled source adapters.
func buildAdapters(cfg *config.Config) []fetch.Adapter {
	thresholds := fetch.Thresholds{
		MinAPY: cfg.Filters.MinAPY,
		MinTVL: cfg.Filters.MinTVL,
	}

	var adapters []fetch.Adapter
	if cfg.Sources.DefiLlama.Enabled {
		adapters = append(adapters, fetch.NewDefiLlamaClient(fetch.DefiLlamaConfig{
			BaseURL:         cfg.Sources.DefiLlama.BaseURL,
			Chain:           cfg.Sources.DefiLlama.Chain,
			ExcludedSymbols: cfg.Sources.DefiLlama.Excluded,
			Thresholds:      thresholds,
			Timeout:         cfg.Sources.Timeout,
		}))
	}
	if cfg.Sources.Rise.Enabled {
		adapters = append(adapters, fetch.NewRiseClient(fetch.RiseConfig{
			BaseURL:    cfg.Sources.Rise.BaseURL,
			Thresholds: thresholds,
			Timeout:    cfg.Sources.Timeout,
		}))
	}
	if cfg.Sources.Hover.Enabled {
		adapters = append(adapters, fetch.NewHoverClient(fetch.HoverConfig{
			GraphURL:   cfg.Sources.Hover.BaseURL,
			SourceLink: cfg.Sources.Hover.SourceLink,
			Thresholds: thresholds,
			Timeout:    cfg.Sources.Timeout,
		}))
	}
	if cfg.Sources.Kinetix.Enabled {
		vaults := make([]fetch.VaultConfig, 0, len(cfg.Sources.Kinetix.Vaults))
		for _, v := range cfg.Sources.Kinetix.Vaults {
			vaults = append(vaults, fetch.VaultConfig{
				Address:       v.Address,
				Symbol:        v.Symbol,
				Label:         v.Label,
				RateDecimals:  v.RateDecimals,
				AssetDecimals: v.AssetDecimals,
			})
		}
		adapters = append(adapters, fetch.NewKinetixClient(fetch.KinetixConfig{
			RPCURL:     cfg.Sources.Kinetix.RPCEndpoint,
			Vaults:     vaults,
			SourceLink: cfg.Sources.Kinetix.SourceLink,
			Thresholds: thresholds,
			BatchDelay: cfg.Sources.Kinetix.BatchDelay,
		}))
	}
	if cfg.Sources.Beefy.Enabled {
		adapters = append(adapters, fetch.NewBeefyClient(fetch.BeefyConfig{
			BaseURL:    cfg.Sources.Beefy.BaseURL,
			SourceLink: cfg.Sources.Beefy.SourceLink,
			Thresholds: thresholds,
			Timeout:    cfg.Sources.Timeout,
		}))
	}
	return adapters
}

// runLoop executes the pipeline immediately and then on every tick until the
// context is cancelled.
func runLoop(ctx context.Context, runner *pipeline.Runner, metrics *radarMetrics, breaker *circuitbreaker.CircuitBreaker, interval time.Duration) {
	run := func() {
		start := time.Now()
		rep, err := runner.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			logrus.WithError(err).Error("Pipeline run failed")
		}
		metrics.observe(rep, time.Since(start).Seconds(), err)
		metrics.breakerState.Set(float64(breaker.State()))
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// startServer exposes the health and metrics endpoints on a side listener.
func startServer(addr string, breaker *circuitbreaker.CircuitBreaker) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":        "OK",
			"uptime":        time.Since(startTime).String(),
			"circuit_state": breaker.State().String(),
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()
	return server
}

// setupLogging configures the logging for the application
func setupLogging(cfg config.LoggingConfig) {
	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch cfg.Level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}
