package exchangesync

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/exchangeclient"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// productInfoCache is the on-disk shape of product_info.cache (spec.md
// §4.13 "msgpack-cached product info" — a rebuildable cache, never
// audited state, so msgpack over JSON matches the teacher's split
// between audit-facing and cache-facing persistence).
type productInfoCache struct {
	Entries map[string]ProductInfo `msgpack:"entries"`
}

// Live is the Sync implementation used by TRADING_MODE=live: it treats
// the exchange's accounts + portfolio breakdown as ground truth and
// only ever refreshes on a throttle, never per-call (spec.md §4.13).
type Live struct {
	client        exchangeclient.Client
	portfolioUUID string
	layout        paths.Layout
	log           zerolog.Logger

	priceTTL       time.Duration
	updateInterval time.Duration
	truthStaleS    float64

	mu            sync.RWMutex
	snapshot      domain.PortfolioSnapshot
	snapshotAt    time.Time
	updateGate    throttle
	prices        map[string]priceEntry
	productInfo   map[string]ProductInfo
	exchangeAsset map[string]struct{} // non-zero balances, for HasExchangeHolding
}

type priceEntry struct {
	price float64
	at    time.Time
}

// NewLive constructs a Live sync, loading any cached product info from
// disk (best-effort: a missing or corrupt cache just starts empty).
func NewLive(client exchangeclient.Client, portfolioUUID string, layout paths.Layout, priceTTL, updateInterval time.Duration, truthStaleS float64, log zerolog.Logger) *Live {
	l := &Live{
		client:         client,
		portfolioUUID:  portfolioUUID,
		layout:         layout,
		log:            log.With().Str("component", "live_exchange_sync").Logger(),
		priceTTL:       priceTTL,
		updateInterval: updateInterval,
		truthStaleS:    truthStaleS,
		updateGate:     throttle{interval: updateInterval},
		prices:         make(map[string]priceEntry),
		productInfo:    make(map[string]ProductInfo),
		exchangeAsset:  make(map[string]struct{}),
	}
	l.loadProductInfoCache()
	return l
}

func (l *Live) loadProductInfoCache() {
	data, err := os.ReadFile(l.layout.ProductInfoCacheFile())
	if err != nil {
		return
	}
	var cache productInfoCache
	if err := msgpack.Unmarshal(data, &cache); err != nil {
		l.log.Warn().Err(err).Msg("product info cache corrupt, starting empty")
		return
	}
	l.productInfo = cache.Entries
}

func (l *Live) saveProductInfoCache() {
	l.mu.RLock()
	entries := make(map[string]ProductInfo, len(l.productInfo))
	for k, v := range l.productInfo {
		entries[k] = v
	}
	l.mu.RUnlock()

	data, err := msgpack.Marshal(productInfoCache{Entries: entries})
	if err != nil {
		l.log.Error().Err(err).Msg("marshal product info cache")
		return
	}
	if err := os.WriteFile(l.layout.ProductInfoCacheFile(), data, 0o644); err != nil {
		l.log.Error().Err(err).Msg("write product info cache")
	}
}

func (l *Live) GetAvailableBalance(ctx context.Context) (float64, error) {
	accounts, err := l.client.GetAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("get accounts: %w", err)
	}
	for _, a := range accounts {
		if a.Currency == "USD" || a.Currency == "USDC" {
			return a.Available.Value, nil
		}
	}
	return 0, nil
}

func (l *Live) GetTotalPortfolioValue(ctx context.Context) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot.TotalValue, nil
}

// UpdatePortfolioState pulls the authoritative breakdown from the
// exchange, throttled to at most once per updateInterval (spec.md
// §4.13 "≤10s update throttle").
func (l *Live) UpdatePortfolioState(ctx context.Context) error {
	now := time.Now().UTC()
	l.mu.Lock()
	if !l.updateGate.ready(now) {
		l.mu.Unlock()
		return nil
	}
	l.updateGate.mark(now)
	l.mu.Unlock()

	breakdown, err := l.client.GetPortfolioBreakdown(ctx, l.portfolioUUID)
	if err != nil {
		return fmt.Errorf("get portfolio breakdown: %w", err)
	}

	positions := make(map[string]domain.SpotPosition, len(breakdown.SpotPositions))
	assets := make(map[string]struct{}, len(breakdown.SpotPositions))
	var totalValue, totalCash, totalCrypto, totalUnrealized float64
	for _, sp := range breakdown.SpotPositions {
		pos := domain.SpotPosition{
			Asset: sp.Asset, TotalBalanceCrypto: sp.TotalBalanceCrypto, TotalBalanceFiat: sp.TotalBalanceFiat,
			AverageEntryPrice: sp.AverageEntryPrice.Value, CostBasis: sp.CostBasis.Value,
			UnrealizedPnL: sp.UnrealizedPnL, IsCash: sp.IsCash,
		}
		positions[sp.Asset] = pos
		totalValue += sp.TotalBalanceFiat
		if sp.IsCash {
			totalCash += sp.TotalBalanceFiat
		} else {
			totalCrypto += sp.TotalBalanceFiat
			totalUnrealized += sp.UnrealizedPnL
			assets[sp.Asset] = struct{}{}
		}
	}

	l.mu.Lock()
	l.snapshot = domain.PortfolioSnapshot{
		Timestamp: now, TotalValue: totalValue, TotalCash: totalCash,
		TotalCrypto: totalCrypto, TotalUnrealizedPnL: totalUnrealized, Positions: positions,
	}
	l.snapshotAt = now
	l.exchangeAsset = assets
	l.mu.Unlock()
	return nil
}

func (l *Live) HasExchangeHolding(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.exchangeAsset[symbol]
	return ok
}

// GetProductInfo returns the cached entry when one exists (cached
// entries do not expire), otherwise pulls and re-caches it (spec.md
// §4.13).
func (l *Live) GetProductInfo(ctx context.Context, symbol string) (ProductInfo, error) {
	l.mu.RLock()
	cached, ok := l.productInfo[symbol]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	info, err := l.client.GetProduct(ctx, symbol)
	if err != nil {
		return ProductInfo{}, fmt.Errorf("get product %s: %w", symbol, err)
	}
	out := ProductInfo{Price: info.Price, QuoteMinSize: info.QuoteMinSize, BaseMinSize: info.BaseMinSize, BaseIncrement: info.BaseIncrement}

	l.mu.Lock()
	l.productInfo[symbol] = out
	l.mu.Unlock()
	l.saveProductInfoCache()
	return out, nil
}

// GetPrice returns the cached last price if within priceTTL, otherwise
// pulls a fresh quote via GetProduct (spec.md §4.13 "≤30s price cache").
func (l *Live) GetPrice(ctx context.Context, symbol string) (float64, error) {
	now := time.Now().UTC()
	l.mu.RLock()
	entry, ok := l.prices[symbol]
	l.mu.RUnlock()
	if ok && now.Sub(entry.at) < l.priceTTL {
		return entry.price, nil
	}

	info, err := l.client.GetProduct(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("get price for %s: %w", symbol, err)
	}
	l.mu.Lock()
	l.prices[symbol] = priceEntry{price: info.Price, at: now}
	l.mu.Unlock()
	return info.Price, nil
}

// ValidateBeforeTrade refuses to let a trade proceed against stale truth
// (spec.md §4.13 "truth-staleness gate").
func (l *Live) ValidateBeforeTrade(ctx context.Context, symbol string) (bool, error) {
	if l.TruthStale() {
		return false, nil
	}
	return true, nil
}

func (l *Live) Snapshot() domain.PortfolioSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

func (l *Live) SnapshotAgeSeconds() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snapshotAt.IsZero() {
		return l.truthStaleS + 1 // never synced: treat as stale immediately
	}
	return time.Since(l.snapshotAt).Seconds()
}

func (l *Live) TruthStale() bool {
	return l.SnapshotAgeSeconds() > l.truthStaleS
}

// ApplyFill is a no-op for Live: the next UpdatePortfolioState pull is
// the only source of truth, so an in-process debit/credit here would
// just be overwritten (and could race the real fill settling).
func (l *Live) ApplyFill(ctx context.Context, symbol string, isBuy bool, sizeUSD, qty, price float64) error {
	return nil
}
