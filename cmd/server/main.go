// Package main is the entry point for the autonomous spot-trading engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/spotengine/internal/backfill"
	"github.com/aristath/spotengine/internal/botstate"
	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/collectors"
	"github.com/aristath/spotengine/internal/config"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/engine"
	"github.com/aristath/spotengine/internal/events"
	"github.com/aristath/spotengine/internal/exchangeclient"
	"github.com/aristath/spotengine/internal/exchangesync"
	"github.com/aristath/spotengine/internal/features"
	"github.com/aristath/spotengine/internal/gates"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/aristath/spotengine/internal/registry"
	"github.com/aristath/spotengine/internal/reliability"
	"github.com/aristath/spotengine/internal/risk"
	"github.com/aristath/spotengine/internal/router"
	"github.com/aristath/spotengine/internal/server"
	"github.com/aristath/spotengine/internal/sizing"
	"github.com/aristath/spotengine/internal/strategy"
	"github.com/aristath/spotengine/internal/tiering"
	"github.com/aristath/spotengine/internal/universe"
	"github.com/aristath/spotengine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	logger.SetGlobalLogger(log)
	log.Info().Str("mode", cfg.TradingMode).Msg("starting spot engine")

	mode := domain.TradingMode(cfg.TradingMode)
	layout, err := paths.New(cfg.DataDir, mode)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve data layout")
	}
	if err := layout.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to create data/log directories")
	}

	runtimeStore, err := config.NewStore(layout, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load runtime config store")
	}

	now := time.Now()
	cooldowns, err := risk.NewCooldowns(layout, float64(cfg.OrderCooldownMinSeconds), float64(cfg.OrderCooldownSeconds), now)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load cooldown state")
	}
	dailyStats, err := risk.NewDailyStatsTracker(layout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load daily stats")
	}
	circuitBreaker := risk.NewCircuitBreaker(5, 5*time.Minute)
	killSwitch := &risk.KillSwitch{}
	rejectionTracker := risk.NewRejectionTracker()

	candleStore := candles.NewStore(layout, log)
	buffers := candles.NewBufferManager(candleStore)

	tieringCfg := tiering.DefaultConfig()
	tierScheduler := tiering.New(tieringCfg, log)

	universeCfg := universe.Config{
		Min24hVolumeUSD: 1_000_000,
		SpreadMaxBps:    cfg.SpreadMaxBps,
		Stablecoins:     stablecoinSet(),
		IgnoredSymbols:  map[string]struct{}{},
	}
	universeScanner := universe.New(universeCfg)

	featuresEngine := features.New()
	strategies := strategy.All()

	gatesChecker := gates.New()
	sizer := sizing.New(sizingConfigFrom(cfg))

	bus := events.NewBus(log)
	recorder, err := events.NewRecorder(layout.LogsDir(), bus)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open event recorder")
	}

	reg := registry.New(registry.Limits{
		MinPositionUSD:          cfg.MinPositionUSD,
		DustThresholdUSD:        cfg.DustThresholdUSD,
		MaxPositions:            12,
		MaxPositionsPerStrategy: 0,
		MinHoldSeconds:          30,
	})

	var client exchangeclient.Client
	var sync exchangesync.Sync
	var candleStream exchangeclient.CandleStream

	switch mode {
	case domain.ModePaper:
		paperClient := exchangeclient.NewPaperClient(5)
		client = paperClient
		paperSync, err := exchangesync.NewPaper(layout, cfg.PaperStartBalance, cfg.PaperResetState, cfg.DustThresholdUSD, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load paper portfolio state")
		}
		sync = paperSync
		// Paper mode still streams real market data to drive signals;
		// it just never places real orders. No live credentials are
		// required, so without them candleStream stays nil and the
		// engine falls back to REST-only ingestion (degraded but
		// functional, spec.md §4.5's tiered fallback).
		if cfg.APIKey != "" && cfg.APISecret != "" {
			if signer, err := exchangeclient.NewJWTSigner(cfg.APIKey, cfg.APISecret); err == nil {
				candleStream = exchangeclient.NewCoinbaseCandleStream(coinbaseWSURL, signer, log)
			} else {
				log.Warn().Err(err).Msg("failed to build jwt signer for paper-mode market data stream, falling back to rest polling only")
			}
		}

	case domain.ModeLive:
		signer, err := exchangeclient.NewJWTSigner(cfg.APIKey, cfg.APISecret)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build jwt signer for live trading")
		}
		liveClient := exchangeclient.NewLiveClient(signer)
		client = liveClient
		portfolioUUID := defaultPortfolioUUID(liveClient, log)
		sync = exchangesync.NewLive(liveClient, portfolioUUID, layout, 5*time.Second, 10*time.Second, float64(cfg.TruthStalenessSeconds), log)
		candleStream = exchangeclient.NewCoinbaseCandleStream(coinbaseWSURL, signer, log)

	default:
		log.Fatal().Str("mode", cfg.TradingMode).Msg("unknown trading mode")
	}

	routerCfg := router.DefaultConfig()
	orderRouter := router.New(routerCfg, mode, client, sync, reg, recorder, log)
	stopManager := router.NewStopManager(orderRouter, routerCfg.StopHealthCheckInterval, log)

	var wsCollector *collectors.WSCollector
	if candleStream != nil {
		wsCollector = collectors.NewWSCollector(candleStream, buffers, tierScheduler, log)
	}
	restPoller := collectors.NewRESTPoller(restCandleFetcher{client: client}, tierScheduler, buffers, log)

	backfillCfg := backfill.DefaultConfig()
	backfillTask := backfill.New(backfillCfg, client, tierScheduler, buffers, log)
	smokeTester := backfill.NewSmokeTester(strategies, log)

	health := reliability.NewHealthReporter(log)
	throttle := reliability.NewThrottledLogger(log, 5*time.Second)

	backupCfg := reliability.BackupConfig{
		Bucket:          os.Getenv("BACKUP_BUCKET"),
		Endpoint:        os.Getenv("BACKUP_ENDPOINT"),
		Region:          os.Getenv("BACKUP_REGION"),
		AccessKeyID:     os.Getenv("BACKUP_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("BACKUP_SECRET_ACCESS_KEY"),
		RetentionDays:   14,
	}
	var backupUploader *reliability.BackupUploader
	if backupCfg.Enabled() {
		backupUploader, err = reliability.NewBackupUploader(context.Background(), backupCfg, layout.DataDir(), log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize backup uploader, backups disabled")
		}
	}

	botStateStore := botstate.NewStore(mode)
	controlQueue := botstate.NewQueue(32)

	deps := engine.Deps{
		Settings:     cfg,
		RuntimeStore: runtimeStore,
		Layout:       layout,
		Mode:         mode,

		Buffers:     buffers,
		CandleStore: candleStore,
		Tiering:     tierScheduler,
		Universe:    universeScanner,

		Features:   featuresEngine,
		Strategies: strategies,

		Gates: gatesChecker,
		Sizer: sizer,

		Router:      orderRouter,
		StopManager: stopManager,
		Registry:    reg,
		Sync:        sync,

		DailyStats:       dailyStats,
		CircuitBreaker:   circuitBreaker,
		Cooldowns:        cooldowns,
		KillSwitch:       killSwitch,
		RejectionTracker: rejectionTracker,

		Recorder: recorder,

		BotStateStore: botStateStore,
		ControlQueue:  controlQueue,

		WSCollector: wsCollector,
		RESTPoller:  restPoller,

		Backfill:    backfillTask,
		SmokeTester: smokeTester,

		Health:   health,
		Throttle: throttle,
		Backup:   backupUploader,

		// Products has no wired source: the exchange client exposes
		// GetProduct per symbol but no bulk catalogue listing, and
		// spec.md's watch list already names the tradable set via
		// WATCH_COINS. See DESIGN.md for the full tradeoff.
		Products: nil,

		Stablecoins: universeCfg.Stablecoins,

		Log: log,
	}

	coordinator := engine.New(deps, engine.DefaultConfig())

	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		Store:   botStateStore,
		Queue:   controlQueue,
		DevMode: cfg.LogLevel == "debug",
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("http control surface started")

	ctx, cancel := context.WithCancel(context.Background())
	engineErrCh := make(chan error, 1)
	go func() {
		engineErrCh <- coordinator.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-engineErrCh:
		if err != nil {
			log.Error().Err(err).Msg("coordinator exited unexpectedly")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown error")
	}

	select {
	case <-engineErrCh:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("coordinator did not stop within the shutdown deadline")
	}

	log.Info().Msg("shutdown complete")
}

// coinbaseWSURL is the Advanced Trade market-data WS endpoint
// CoinbaseCandleStream dials.
const coinbaseWSURL = "wss://advanced-trade-ws.coinbase.com"

func stablecoinSet() map[string]struct{} {
	names := []string{"USDC", "USDT", "DAI", "USD", "PYUSD"}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func sizingConfigFrom(cfg *config.Settings) sizing.Config {
	base := sizing.DefaultConfig()
	base.PositionMinPct = cfg.PositionMinPct
	base.PositionMaxPct = cfg.PositionMaxPct
	base.MaxTradeUSD = cfg.MaxTradeUSD
	base.PortfolioMaxExposurePct = cfg.PortfolioMaxExposurePct
	base.MinPositionUSD = cfg.MinPositionUSD
	base.MinRRRatio = cfg.MinRRRatio
	base.Scout.ScoreMin = cfg.ScoutScoreMin
	base.Normal.ScoreMin = cfg.EntryScoreMin
	base.Strong.ScoreMin = cfg.StrongScoreMin
	base.Whale.ScoreMin = cfg.WhaleScoreMin
	base.WhaleConfluenceMin = cfg.WhaleConfluenceMin
	return base
}

// defaultPortfolioUUID picks the account's first DEFAULT-type portfolio.
// A missing/failed lookup falls back to an empty UUID, which the
// breakdown endpoint treats as "the default portfolio".
func defaultPortfolioUUID(client *exchangeclient.LiveClient, log zerolog.Logger) string {
	portfolios, err := client.GetPortfolios(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("failed to list portfolios, falling back to default portfolio")
		return ""
	}
	for _, p := range portfolios {
		if p.Type == "DEFAULT" {
			return p.UUID
		}
	}
	if len(portfolios) > 0 {
		return portfolios[0].UUID
	}
	return ""
}

// restCandleFetcher adapts exchangeclient.Client's GetProductCandles to
// the narrower CandleFetcher interface the REST poller depends on.
type restCandleFetcher struct {
	client exchangeclient.Client
}

func (f restCandleFetcher) FetchCandles(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Candle, error) {
	end := time.Now().UTC()
	start := end.Add(-200 * time.Minute)
	bars, err := f.client.GetProductCandles(ctx, symbol, start, end, granularitySecondsFor(tf))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		out = append(out, domain.Candle{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return out, nil
}

func granularitySecondsFor(tf domain.Timeframe) int {
	switch tf {
	case domain.TF1m:
		return 60
	default:
		return 60
	}
}
