package backfill

import (
	"context"
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/exchangeclient"
	"github.com/aristath/spotengine/internal/tiering"
	"github.com/rs/zerolog"
)

// Task periodically scans the tier scheduler for symbols flagged
// IsBackfilling (set when ReassignTiers promotes a symbol onto the WS
// tier) and pulls recent historical candles for them so the symbol's
// buffer is warm before its first live tick, without wiping whatever is
// already buffered (spec.md §3 "existing buffers are not wiped").
type Task struct {
	cfg       Config
	client    exchangeclient.Client
	scheduler *tiering.Scheduler
	buffers   *candles.BufferManager
	log       zerolog.Logger
}

// New creates a backfill Task.
func New(cfg Config, client exchangeclient.Client, scheduler *tiering.Scheduler, buffers *candles.BufferManager, log zerolog.Logger) *Task {
	return &Task{
		cfg: cfg, client: client, scheduler: scheduler, buffers: buffers,
		log: log.With().Str("component", "backfill").Logger(),
	}
}

// Run scans for symbols needing backfill and fills each in turn. The
// engine's backfill task calls it on the engine's BackfillInterval.
func (t *Task) Run(ctx context.Context, now time.Time) {
	symbols := t.scheduler.SymbolsNeedingBackfill()
	for _, symbol := range symbols {
		if err := t.backfillOne(ctx, symbol, now); err != nil {
			t.log.Warn().Err(err).Str("symbol", symbol).Msg("backfill failed, will retry next scan")
			continue
		}
		t.scheduler.BackfillComplete(symbol)
	}
}

func (t *Task) backfillOne(ctx context.Context, symbol string, now time.Time) error {
	start := now.Add(-time.Duration(t.cfg.LookbackHours) * time.Hour)
	bars, err := t.client.GetProductCandles(ctx, symbol, start, now, t.cfg.GranularitySeconds)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	buf := t.buffers.Buffer(symbol)
	for _, bar := range bars {
		c := domain.Candle{
			Timestamp: bar.Timestamp, Open: bar.Open, High: bar.High,
			Low: bar.Low, Close: bar.Close, Volume: bar.Volume,
		}
		if !c.Valid() {
			continue
		}
		buf.Push(domain.TF1m, c)
		if err := t.buffers.WriteCandle(symbol, domain.TF1m, domain.SourceREST, c); err != nil {
			return err
		}
	}

	t.log.Info().Str("symbol", symbol).Int("bars", len(bars)).Msg("backfill complete")
	return nil
}
