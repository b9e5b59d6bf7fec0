package exchangesync

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/rs/zerolog"
)

// PaperState is the atomically persisted snapshot of the paper account
// (spec.md §4.13: "pure in-memory with atomic persistence to
// paper_state.json; reset on PAPER_RESET_STATE=1").
type PaperState struct {
	Cash      float64            `json:"cash"`
	Holdings  map[string]float64 `json:"holdings"`   // symbol -> base qty
	CostBasis map[string]float64 `json:"cost_basis"` // symbol -> USD cost basis
}

// Paper is the in-memory Sync implementation used by TRADING_MODE=paper.
type Paper struct {
	mu          sync.RWMutex
	layout      paths.Layout
	log         zerolog.Logger
	state       PaperState
	lastPrices  map[string]float64
	dustUSD     float64
	lastUpdated time.Time
}

// NewPaper loads (or seeds) the paper account from paper_state.json. A
// startBalance is used only when no prior state exists or resetState is
// true.
func NewPaper(layout paths.Layout, startBalance float64, resetState bool, dustUSD float64, log zerolog.Logger) (*Paper, error) {
	p := &Paper{
		layout:     layout,
		log:        log.With().Str("component", "paper_exchange_sync").Logger(),
		lastPrices: make(map[string]float64),
		dustUSD:    dustUSD,
		state: PaperState{
			Cash:      startBalance,
			Holdings:  make(map[string]float64),
			CostBasis: make(map[string]float64),
		},
	}

	if !resetState {
		var loaded PaperState
		ok, err := paths.ReadJSON(layout.PaperStateFile(), &loaded)
		if err != nil {
			return nil, err
		}
		if ok {
			if loaded.Holdings == nil {
				loaded.Holdings = make(map[string]float64)
			}
			if loaded.CostBasis == nil {
				loaded.CostBasis = make(map[string]float64)
			}
			p.state = loaded
		}
	} else {
		p.log.Info().Msg("PAPER_RESET_STATE set, starting from a fresh paper account")
	}

	return p, p.persist()
}

func (p *Paper) persist() error {
	return paths.WriteJSONAtomic(p.layout.PaperStateFile(), p.state)
}

// SetPrice seeds/updates the last-known price for symbol, used for
// mark-to-market valuation (paper mode has no order book of its own —
// prices come from the candle collectors).
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPrices[symbol] = price
}

func (p *Paper) GetAvailableBalance(ctx context.Context) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Cash, nil
}

func (p *Paper) GetTotalPortfolioValue(ctx context.Context) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalValueLocked(), nil
}

func (p *Paper) totalValueLocked() float64 {
	total := p.state.Cash
	for sym, qty := range p.state.Holdings {
		total += qty * p.lastPrices[sym]
	}
	return total
}

// UpdatePortfolioState is a no-op for Paper: its state is always
// authoritative the instant ApplyFill/SetPrice run, so there is nothing
// to pull.
func (p *Paper) UpdatePortfolioState(ctx context.Context) error {
	p.mu.Lock()
	p.lastUpdated = time.Now().UTC()
	p.mu.Unlock()
	return nil
}

func (p *Paper) HasExchangeHolding(symbol string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	qty, ok := p.state.Holdings[symbol]
	if !ok {
		return false
	}
	return qty*p.lastPrices[symbol] >= p.dustUSD
}

// GetProductInfo returns synthetic, permissive product metadata — paper
// mode has no exchange minimums to respect.
func (p *Paper) GetProductInfo(ctx context.Context, symbol string) (ProductInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ProductInfo{Price: p.lastPrices[symbol], QuoteMinSize: 1, BaseMinSize: 0.0001, BaseIncrement: 0.00000001}, nil
}

func (p *Paper) GetPrice(ctx context.Context, symbol string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPrices[symbol], nil
}

// ValidateBeforeTrade always succeeds in paper mode — there is no
// staleness to guard against since state is updated synchronously.
func (p *Paper) ValidateBeforeTrade(ctx context.Context, symbol string) (bool, error) {
	return true, nil
}

func (p *Paper) Snapshot() domain.PortfolioSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	positions := make(map[string]domain.SpotPosition, len(p.state.Holdings))
	var totalCrypto, totalUnrealized float64
	for sym, qty := range p.state.Holdings {
		price := p.lastPrices[sym]
		fiat := qty * price
		cb := p.state.CostBasis[sym]
		positions[sym] = domain.SpotPosition{
			Asset: sym, TotalBalanceCrypto: qty, TotalBalanceFiat: fiat,
			CostBasis: cb, UnrealizedPnL: fiat - cb,
		}
		totalCrypto += fiat
		totalUnrealized += fiat - cb
	}
	return domain.PortfolioSnapshot{
		Timestamp: p.lastUpdated, TotalValue: p.state.Cash + totalCrypto, TotalCash: p.state.Cash,
		TotalCrypto: totalCrypto, TotalUnrealizedPnL: totalUnrealized, Positions: positions,
	}
}

func (p *Paper) SnapshotAgeSeconds() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastUpdated.IsZero() {
		return 0
	}
	return time.Since(p.lastUpdated).Seconds()
}

// TruthStale is always false for Paper: state is mutated in-process,
// synchronously, so there is no sync lag to go stale.
func (p *Paper) TruthStale() bool { return false }

// ApplyFill debits/credits cash and holdings immediately and persists
// atomically (spec.md §4.11 "debits/credits the PaperPortfolioManager's
// cash... persists paper account state atomically").
func (p *Paper) ApplyFill(ctx context.Context, symbol string, isBuy bool, sizeUSD, qty, price float64) error {
	p.mu.Lock()
	if isBuy {
		p.state.Cash -= sizeUSD
		p.state.Holdings[symbol] += qty
		p.state.CostBasis[symbol] += sizeUSD
	} else {
		p.state.Cash += sizeUSD
		p.state.Holdings[symbol] -= qty
		// Reduce cost basis proportionally to qty sold, floored at 0.
		remaining := p.state.Holdings[symbol]
		if remaining <= 0 {
			delete(p.state.Holdings, symbol)
			delete(p.state.CostBasis, symbol)
		} else {
			soldFrac := qty / (qty + remaining)
			p.state.CostBasis[symbol] *= (1 - soldFrac)
		}
	}
	p.lastPrices[symbol] = price
	snapshot := p.state
	p.mu.Unlock()

	return paths.WriteJSONAtomic(p.layout.PaperStateFile(), snapshot)
}
