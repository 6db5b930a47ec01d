package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"arena-terminal/internal/api"
	"arena-terminal/internal/cfg"
	"arena-terminal/internal/dashboard"
	"arena-terminal/internal/metrics"
	"arena-terminal/internal/store"
	"arena-terminal/internal/stream"
	"arena-terminal/internal/view"
	"arena-terminal/internal/ws"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	startMetricsServer(ctx, c)

	cache := initializeCache(c)
	if cache != nil {
		defer cache.Close()
	}

	// The three stream channels and their manager
	opts := ws.Options{ReconnectDelay: c.ReconnectDelay, Recorder: m}
	priceCh := ws.NewChannel("price", c.PriceWSURL, stream.DecodePrice, opts)
	modelCh := ws.NewChannel("model", c.ModelWSURL, stream.DecodeModelEvent, opts)
	dataCh := ws.NewChannel("modeldata", c.ModelDataWSURL, stream.DecodeModelData, opts)
	manager := ws.NewManager(priceCh, modelCh, dataCh)

	// View feeds
	ticker := view.NewTickerFeed()
	chart := view.NewChartFeed(c.MaxSeriesPoints)
	summary := view.NewSummaryFeed()
	leaderboard := view.NewLeaderboardFeed()
	sidebar := view.NewSidebarFeed(sidebarCache(cache))

	priceCh.Subscribe(ticker.Apply)
	modelCh.Subscribe(sidebar.Apply)
	dataCh.Subscribe(func(p stream.ModelDataPayload) {
		chart.Apply(p)
		summary.Apply(p)
		leaderboard.Apply(p)
	})

	manager.SubscribeStatus(func(s ws.Status) {
		m.SetChannelsOpen(manager.OpenChannels())
		log.Info().Str("status", string(s)).Msg("connection status changed")
	})

	// Static model metadata over REST; stream channels operate regardless.
	details := make(map[string]*view.DetailFeed)
	client := api.NewClient(c.APIBaseURL, c.RESTTimeout)
	if models, err := client.Models(); err != nil {
		m.RESTFailures.Inc()
		log.Error().Err(err).Msg("model list fetch failed, leaderboard will be stream-only")
	} else {
		leaderboard.SetModels(models)
		for _, model := range models {
			id := strconv.Itoa(model.ID)
			details[id] = view.NewDetailFeed(id)
		}
		log.Info().Int("models", len(models)).Msg("model metadata loaded")
	}
	dataCh.Subscribe(func(p stream.ModelDataPayload) {
		for _, d := range details {
			d.Apply(p)
		}
	})

	dash := dashboard.New(manager, dashboard.Feeds{
		Ticker:      ticker,
		Chart:       chart,
		Summary:     summary,
		Leaderboard: leaderboard,
		Sidebar:     sidebar,
		Details:     details,
	}, c.DashboardPort)
	if err := dash.Start(); err != nil {
		log.Error().Err(err).Msg("dashboard start failed")
	}

	manager.ConnectAll()

	go reportLoop(ctx, manager, chart, summary, ticker, c.TopModels)

	waitForShutdown(manager, dash)
}

// initializeCache opens the warm cache if DATA_PATH is configured.
func initializeCache(c cfg.Settings) *store.Store {
	if c.DataPath == "" {
		return nil
	}
	cache, err := store.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("cache initialization failed, continuing without persistence")
		return nil
	}
	return cache
}

// sidebarCache keeps the typed-nil pitfall out of the feed constructor.
func sidebarCache(s *store.Store) view.SidebarCache {
	if s == nil {
		return nil
	}
	return s
}

// startMetricsServer starts the Prometheus metrics HTTP server.
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// reportLoop periodically logs the derived view state so a headless run is
// observable without scraping metrics.
func reportLoop(ctx context.Context, manager *ws.Manager, chart *view.ChartFeed, summary *view.SummaryFeed, ticker *view.TickerFeed, topModels int) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap := chart.Snapshot()
			top := summary.TopPerformers(topModels)
			ev := log.Info().
				Str("status", string(manager.OverallStatus())).
				Int("series_points", len(snap.Points)).
				Int("models", len(snap.EntityNames)).
				Int("symbols", len(ticker.Symbols()))
			if len(top) > 0 {
				ev = ev.Str("leader", top[0].DisplayName)
			}
			ev.Msg("terminal state")
		}
	}
}

// waitForShutdown blocks until a shutdown signal arrives, then tears the
// channels down cleanly so no reconnect timers survive.
func waitForShutdown(manager *ws.Manager, dash *dashboard.Dashboard) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutdown signal received, disconnecting streams")
	manager.DisconnectAll()
	if err := dash.Stop(); err != nil {
		log.Warn().Err(err).Msg("dashboard shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
