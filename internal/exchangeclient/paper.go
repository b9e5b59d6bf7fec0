package exchangeclient

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperClient is an in-memory fake implementing Client, used when
// TRADING_MODE=paper and in tests. It never touches the network; prices
// are seeded/updated by the caller via SetPrice, matching how a paper
// engine derives "market" prices from the same candle feed it trades on.
type PaperClient struct {
	mu          sync.RWMutex
	prices      map[string]float64
	slippageBps float64
	orders      map[string]OrderResult
	rng         *rand.Rand
}

// NewPaperClient creates a PaperClient with the given simulated slippage
// in basis points applied to every fill.
func NewPaperClient(slippageBps float64) *PaperClient {
	return &PaperClient{
		prices:      make(map[string]float64),
		slippageBps: slippageBps,
		orders:      make(map[string]OrderResult),
		rng:         rand.New(rand.NewSource(1)),
	}
}

// SetPrice seeds the simulated market price for symbol.
func (p *PaperClient) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

func (p *PaperClient) price(symbol string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no simulated price seeded for %s", symbol)
	}
	return price, nil
}

// GetAccounts returns no accounts; paper mode tracks balances via
// exchangesync.Paper instead of this client.
func (p *PaperClient) GetAccounts(ctx context.Context) ([]Account, error) { return nil, nil }

// GetPortfolios returns a single synthetic default portfolio.
func (p *PaperClient) GetPortfolios(ctx context.Context) ([]Portfolio, error) {
	return []Portfolio{{Type: "DEFAULT", UUID: "paper-default"}}, nil
}

// GetPortfolioBreakdown returns an empty breakdown; paper holdings are
// tracked by the registry, not mirrored through this client.
func (p *PaperClient) GetPortfolioBreakdown(ctx context.Context, portfolioUUID string) (PortfolioBreakdown, error) {
	return PortfolioBreakdown{}, nil
}

// GetProduct returns the last seeded price with conservative synthetic
// sizing constraints.
func (p *PaperClient) GetProduct(ctx context.Context, symbol string) (ProductInfo, error) {
	price, err := p.price(symbol)
	if err != nil {
		return ProductInfo{}, err
	}
	return ProductInfo{Price: price, QuoteMinSize: 1, BaseMinSize: 0.0001, BaseIncrement: 0.00000001}, nil
}

// GetProductCandles is not implemented by the paper client; candle history
// in paper mode comes from the same real-market collectors as live mode.
func (p *PaperClient) GetProductCandles(ctx context.Context, symbol string, start, end time.Time, granularitySeconds int) ([]OHLCV, error) {
	return nil, fmt.Errorf("paper client does not serve historical candles")
}

func (p *PaperClient) fill(symbol string, side OrderSide, qty float64) (OrderResult, error) {
	price, err := p.price(symbol)
	if err != nil {
		return OrderResult{}, err
	}
	slip := price * (p.slippageBps / 10000)
	fillPrice := price
	switch side {
	case SideBuy:
		fillPrice = price + slip
	case SideSell:
		fillPrice = price - slip
	}

	result := OrderResult{
		OrderID:   uuid.New().String(),
		Symbol:    symbol,
		Side:      side,
		FilledQty: qty,
		FillPrice: fillPrice,
		Status:    "FILLED",
	}
	p.mu.Lock()
	p.orders[result.OrderID] = result
	p.mu.Unlock()
	return result, nil
}

// MarketOrderBuy simulates an immediate fill at the current simulated
// price plus slippage (spec.md §4.11 "Paper: fills immediately").
func (p *PaperClient) MarketOrderBuy(ctx context.Context, symbol string, quoteSizeUSD float64) (OrderResult, error) {
	price, err := p.price(symbol)
	if err != nil {
		return OrderResult{}, err
	}
	qty := quoteSizeUSD / price
	return p.fill(symbol, SideBuy, qty)
}

// MarketOrderSell simulates an immediate fill of baseSizeQty.
func (p *PaperClient) MarketOrderSell(ctx context.Context, symbol string, baseSizeQty float64) (OrderResult, error) {
	return p.fill(symbol, SideSell, baseSizeQty)
}

// LimitOrderGTCBuy fills immediately at the simulated price plus
// slippage, like a market buy; limitPrice is not used (paper mode has no
// resting order book).
func (p *PaperClient) LimitOrderGTCBuy(ctx context.Context, symbol string, baseSizeQty, limitPrice float64) (OrderResult, error) {
	return p.fill(symbol, SideBuy, baseSizeQty)
}

// LimitOrderGTCSell mirrors LimitOrderGTCBuy for sells.
func (p *PaperClient) LimitOrderGTCSell(ctx context.Context, symbol string, baseSizeQty, limitPrice float64) (OrderResult, error) {
	return p.fill(symbol, SideSell, baseSizeQty)
}

// CancelOrders is a no-op: every paper order fills synchronously, so
// there is never anything in-flight to cancel.
func (p *PaperClient) CancelOrders(ctx context.Context, orderIDs []string) error { return nil }

// GetOrder returns the previously recorded fill.
func (p *PaperClient) GetOrder(ctx context.Context, orderID string) (OrderResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result, ok := p.orders[orderID]
	if !ok {
		return OrderResult{}, fmt.Errorf("unknown paper order %s", orderID)
	}
	return result, nil
}
