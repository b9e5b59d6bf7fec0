// Package exchangeclient defines the typed exchange client interface
// consumed by the rest of the engine (spec.md §6) plus three concrete
// implementations: a JWT signer grounded on guyghost-constantine's
// Coinbase HTTP client, a paper in-memory fake used by tests and
// TRADING_MODE=paper, and LiveClient, a JWT-signed REST adapter over the
// same Coinbase Advanced Trade API CoinbaseCandleStream streams from.
package exchangeclient

import (
	"context"
	"time"
)

// Money mirrors the exchange's {value} wrapper around a decimal string
// amount, represented here as a float64 per the teacher's idiom (see
// DESIGN.md for the shopspring/decimal trade-off).
type Money struct {
	Value float64
}

// Account is one entry from get_accounts().
type Account struct {
	Currency  string
	Available Money
}

// Portfolio identifies one of the account's portfolios.
type Portfolio struct {
	Type string
	UUID string
}

// SpotPositionDTO is one entry of a portfolio breakdown's spot_positions.
type SpotPositionDTO struct {
	Asset              string
	TotalBalanceCrypto float64
	TotalBalanceFiat   float64
	AverageEntryPrice  Money
	CostBasis          Money
	UnrealizedPnL      float64
	IsCash             bool
}

// PortfolioBreakdown is the response of get_portfolio_breakdown(uuid).
type PortfolioBreakdown struct {
	SpotPositions []SpotPositionDTO
}

// ProductInfo is the response of get_product(symbol).
type ProductInfo struct {
	Price         float64
	QuoteMinSize  float64
	BaseMinSize   float64
	BaseIncrement float64
}

// OHLCV is one bar from get_product_candles.
type OHLCV struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// OrderSide is BUY or SELL (spot engine only ever issues BUY in v1, but
// closes are sells).
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderResult is the exchange's acknowledgement of an order placement.
type OrderResult struct {
	OrderID   string
	Symbol    string
	Side      OrderSide
	FilledQty float64
	FillPrice float64
	Status    string
}

// Client is the capability interface every component depends on instead
// of a concrete exchange SDK type — spec.md §9's "polymorphism instead of
// dynamic duck typing": two concrete variants exist (paper, live).
type Client interface {
	GetAccounts(ctx context.Context) ([]Account, error)
	GetPortfolios(ctx context.Context) ([]Portfolio, error)
	GetPortfolioBreakdown(ctx context.Context, portfolioUUID string) (PortfolioBreakdown, error)
	GetProduct(ctx context.Context, symbol string) (ProductInfo, error)
	GetProductCandles(ctx context.Context, symbol string, start, end time.Time, granularitySeconds int) ([]OHLCV, error)

	MarketOrderBuy(ctx context.Context, symbol string, quoteSizeUSD float64) (OrderResult, error)
	MarketOrderSell(ctx context.Context, symbol string, baseSizeQty float64) (OrderResult, error)
	LimitOrderGTCBuy(ctx context.Context, symbol string, baseSizeQty, limitPrice float64) (OrderResult, error)
	LimitOrderGTCSell(ctx context.Context, symbol string, baseSizeQty, limitPrice float64) (OrderResult, error)
	CancelOrders(ctx context.Context, orderIDs []string) error
	GetOrder(ctx context.Context, orderID string) (OrderResult, error)
}

// CandleStream is the WS channel interface for streaming candles
// (spec.md §6). Implementations own their own reconnect policy.
type CandleStream interface {
	// UpdateSymbols atomically diffs against the current subscription
	// set; duplicates in symbols are deduplicated by the implementation.
	UpdateSymbols(symbols []string) error
	// Candles returns the channel new closed candles are delivered on.
	Candles() <-chan StreamCandle
	Start(ctx context.Context) error
	Stop() error
	// LastMsgAge reports how long it has been since the last inbound
	// message, for ws_last_age health reporting (spec.md §4.5).
	LastMsgAge() time.Duration
	ReconnectCount() int
}

// StreamCandle is one closed candle delivered over a CandleStream.
type StreamCandle struct {
	Symbol    string
	Timeframe string
	Candle    OHLCV
}
