// Package exchangesync implements the Exchange Sync & Portfolio Manager
// (spec.md §4.13): two implementations of a shared interface, Paper
// (pure in-memory, atomically persisted) and Live (pulls the exchange's
// authoritative accounts/portfolio breakdown, caches product info via
// msgpack, throttles refresh, and drives the truth-staleness gate).
package exchangesync

import (
	"context"
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

// Sync is the interface the gate funnel, sizer, and router depend on
// instead of either concrete implementation (spec.md §4.13).
type Sync interface {
	GetAvailableBalance(ctx context.Context) (float64, error)
	GetTotalPortfolioValue(ctx context.Context) (float64, error)
	UpdatePortfolioState(ctx context.Context) error
	HasExchangeHolding(symbol string) bool
	GetProductInfo(ctx context.Context, symbol string) (ProductInfo, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
	ValidateBeforeTrade(ctx context.Context, symbol string) (bool, error)
	Snapshot() domain.PortfolioSnapshot
	SnapshotAgeSeconds() float64
	TruthStale() bool
	// ApplyFill debits/credits the portfolio on an executed trade (no-op
	// for Live, whose truth comes from the next exchange pull; Paper's
	// only mutator besides a raw reset). isBuy=false means the fill
	// reduces the holding (close or partial close).
	ApplyFill(ctx context.Context, symbol string, isBuy bool, sizeUSD, qty, price float64) error
}

// ProductInfo is the cached per-symbol exchange metadata both
// implementations expose (min sizes, increments) — a narrower local
// alias of exchangeclient.ProductInfo so this package never needs to
// import exchangeclient's order-placement surface.
type ProductInfo struct {
	Price         float64
	QuoteMinSize  float64
	BaseMinSize   float64
	BaseIncrement float64
}

// throttle is a tiny reusable "at most once per interval" guard shared
// by both implementations' refresh paths.
type throttle struct {
	interval time.Duration
	last     time.Time
}

func (t *throttle) ready(now time.Time) bool {
	return now.Sub(t.last) >= t.interval
}

func (t *throttle) mark(now time.Time) {
	t.last = now
}
