package exchangeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// liveBaseURL is the Coinbase Advanced Trade REST host. Grounded on the
// same host the WS signer already targets in jwt.go's SignREST uri
// claim; CoinbaseCandleStream covers the market-data half of this same
// API, LiveClient covers the REST half.
const liveBaseURL = "https://api.coinbase.com"

// LiveClient implements Client against the Coinbase Advanced Trade REST
// API, JWT-signed per request via the shared JWTSigner. It is the
// TRADING_MODE=live counterpart to PaperClient.
type LiveClient struct {
	http   *http.Client
	signer *JWTSigner
	base   string
}

// NewLiveClient creates a LiveClient signing every request with signer.
func NewLiveClient(signer *JWTSigner) *LiveClient {
	return &LiveClient{
		http:   &http.Client{Timeout: 15 * time.Second},
		signer: signer,
		base:   liveBaseURL,
	}
}

func (c *LiveClient) do(ctx context.Context, method, path string, query map[string]string, body any, out any) error {
	u := c.base + path
	if len(query) > 0 {
		q := "?"
		first := true
		for k, v := range query {
			if !first {
				q += "&"
			}
			q += k + "=" + v
			first = false
		}
		u += q
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.signer.SignREST(method, "api.coinbase.com", path)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

type accountsResponse struct {
	Accounts []struct {
		Currency         string `json:"currency"`
		AvailableBalance struct {
			Value string `json:"value"`
		} `json:"available_balance"`
	} `json:"accounts"`
}

func (c *LiveClient) GetAccounts(ctx context.Context) ([]Account, error) {
	var resp accountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v3/brokerage/accounts", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		v, _ := strconv.ParseFloat(a.AvailableBalance.Value, 64)
		out = append(out, Account{Currency: a.Currency, Available: Money{Value: v}})
	}
	return out, nil
}

type portfoliosResponse struct {
	Portfolios []struct {
		Type string `json:"type"`
		UUID string `json:"uuid"`
	} `json:"portfolios"`
}

func (c *LiveClient) GetPortfolios(ctx context.Context) ([]Portfolio, error) {
	var resp portfoliosResponse
	if err := c.do(ctx, http.MethodGet, "/api/v3/brokerage/portfolios", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Portfolio, 0, len(resp.Portfolios))
	for _, p := range resp.Portfolios {
		out = append(out, Portfolio{Type: p.Type, UUID: p.UUID})
	}
	return out, nil
}

type portfolioBreakdownResponse struct {
	Breakdown struct {
		SpotPositions []struct {
			Asset              string  `json:"asset"`
			TotalBalanceCrypto float64 `json:"total_balance_crypto"`
			TotalBalanceFiat   float64 `json:"total_balance_fiat"`
			AverageEntryPrice  struct {
				Value string `json:"value"`
			} `json:"average_entry_price"`
			CostBasis struct {
				Value string `json:"value"`
			} `json:"cost_basis"`
			UnrealizedPnl float64 `json:"unrealized_pnl"`
			IsCash        bool    `json:"is_cash"`
		} `json:"spot_positions"`
	} `json:"breakdown"`
}

func (c *LiveClient) GetPortfolioBreakdown(ctx context.Context, portfolioUUID string) (PortfolioBreakdown, error) {
	var resp portfolioBreakdownResponse
	path := "/api/v3/brokerage/portfolios/" + portfolioUUID
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return PortfolioBreakdown{}, err
	}
	out := PortfolioBreakdown{SpotPositions: make([]SpotPositionDTO, 0, len(resp.Breakdown.SpotPositions))}
	for _, p := range resp.Breakdown.SpotPositions {
		entry, _ := strconv.ParseFloat(p.AverageEntryPrice.Value, 64)
		cost, _ := strconv.ParseFloat(p.CostBasis.Value, 64)
		out.SpotPositions = append(out.SpotPositions, SpotPositionDTO{
			Asset:              p.Asset,
			TotalBalanceCrypto: p.TotalBalanceCrypto,
			TotalBalanceFiat:   p.TotalBalanceFiat,
			AverageEntryPrice:  Money{Value: entry},
			CostBasis:          Money{Value: cost},
			UnrealizedPnL:      p.UnrealizedPnl,
			IsCash:             p.IsCash,
		})
	}
	return out, nil
}

type productResponse struct {
	Price         string `json:"price"`
	QuoteMinSize  string `json:"quote_min_size"`
	BaseMinSize   string `json:"base_min_size"`
	BaseIncrement string `json:"base_increment"`
}

func (c *LiveClient) GetProduct(ctx context.Context, symbol string) (ProductInfo, error) {
	var resp productResponse
	path := "/api/v3/brokerage/products/" + symbol
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return ProductInfo{}, err
	}
	price, _ := strconv.ParseFloat(resp.Price, 64)
	quoteMin, _ := strconv.ParseFloat(resp.QuoteMinSize, 64)
	baseMin, _ := strconv.ParseFloat(resp.BaseMinSize, 64)
	baseIncr, _ := strconv.ParseFloat(resp.BaseIncrement, 64)
	return ProductInfo{Price: price, QuoteMinSize: quoteMin, BaseMinSize: baseMin, BaseIncrement: baseIncr}, nil
}

type productCandlesResponse struct {
	Candles []struct {
		Start  string `json:"start"`
		Low    string `json:"low"`
		High   string `json:"high"`
		Open   string `json:"open"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
	} `json:"candles"`
}

func (c *LiveClient) GetProductCandles(ctx context.Context, symbol string, start, end time.Time, granularitySeconds int) ([]OHLCV, error) {
	var resp productCandlesResponse
	path := "/api/v3/brokerage/products/" + symbol + "/candles"
	query := map[string]string{
		"start":       strconv.FormatInt(start.Unix(), 10),
		"end":         strconv.FormatInt(end.Unix(), 10),
		"granularity": granularityName(granularitySeconds),
	}
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]OHLCV, 0, len(resp.Candles))
	for _, bar := range resp.Candles {
		ts, _ := strconv.ParseInt(bar.Start, 10, 64)
		o, _ := strconv.ParseFloat(bar.Open, 64)
		h, _ := strconv.ParseFloat(bar.High, 64)
		l, _ := strconv.ParseFloat(bar.Low, 64)
		cl, _ := strconv.ParseFloat(bar.Close, 64)
		v, _ := strconv.ParseFloat(bar.Volume, 64)
		out = append(out, OHLCV{Timestamp: time.Unix(ts, 0).UTC(), Open: o, High: h, Low: l, Close: cl, Volume: v})
	}
	return out, nil
}

// granularityName maps a bar width in seconds to Coinbase's named
// granularity enum; this engine only ever requests 1m bars (domain.TF1m)
// but the mapping is kept general rather than hardcoded to one value.
func granularityName(seconds int) string {
	switch seconds {
	case 60:
		return "ONE_MINUTE"
	case 300:
		return "FIVE_MINUTE"
	case 900:
		return "FIFTEEN_MINUTE"
	case 3600:
		return "ONE_HOUR"
	case 21600:
		return "SIX_HOUR"
	case 86400:
		return "ONE_DAY"
	default:
		return "ONE_MINUTE"
	}
}

type orderResponse struct {
	SuccessResponse struct {
		OrderID string `json:"order_id"`
	} `json:"success_response"`
	Success bool `json:"success"`
}

func (c *LiveClient) placeOrder(ctx context.Context, symbol string, side OrderSide, cfg map[string]any) (OrderResult, error) {
	body := map[string]any{
		"client_order_id": uuid.New().String(),
		"product_id":      symbol,
		"side":            string(side),
		"order_configuration": cfg,
	}
	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/api/v3/brokerage/orders", nil, body, &resp); err != nil {
		return OrderResult{}, err
	}
	if !resp.Success {
		return OrderResult{}, fmt.Errorf("order rejected for %s", symbol)
	}
	return c.GetOrder(ctx, resp.SuccessResponse.OrderID)
}

func (c *LiveClient) MarketOrderBuy(ctx context.Context, symbol string, quoteSizeUSD float64) (OrderResult, error) {
	return c.placeOrder(ctx, symbol, SideBuy, map[string]any{
		"market_market_ioc": map[string]any{"quote_size": formatAmount(quoteSizeUSD)},
	})
}

func (c *LiveClient) MarketOrderSell(ctx context.Context, symbol string, baseSizeQty float64) (OrderResult, error) {
	return c.placeOrder(ctx, symbol, SideSell, map[string]any{
		"market_market_ioc": map[string]any{"base_size": formatAmount(baseSizeQty)},
	})
}

func (c *LiveClient) LimitOrderGTCBuy(ctx context.Context, symbol string, baseSizeQty, limitPrice float64) (OrderResult, error) {
	return c.placeOrder(ctx, symbol, SideBuy, map[string]any{
		"limit_limit_gtc": map[string]any{
			"base_size":   formatAmount(baseSizeQty),
			"limit_price": formatAmount(limitPrice),
		},
	})
}

func (c *LiveClient) LimitOrderGTCSell(ctx context.Context, symbol string, baseSizeQty, limitPrice float64) (OrderResult, error) {
	return c.placeOrder(ctx, symbol, SideSell, map[string]any{
		"limit_limit_gtc": map[string]any{
			"base_size":   formatAmount(baseSizeQty),
			"limit_price": formatAmount(limitPrice),
		},
	})
}

func (c *LiveClient) CancelOrders(ctx context.Context, orderIDs []string) error {
	body := map[string]any{"order_ids": orderIDs}
	return c.do(ctx, http.MethodPost, "/api/v3/brokerage/orders/batch_cancel", nil, body, nil)
}

type getOrderResponse struct {
	Order struct {
		OrderID            string `json:"order_id"`
		ProductID          string `json:"product_id"`
		Side               string `json:"side"`
		Status             string `json:"status"`
		FilledSize         string `json:"filled_size"`
		AverageFilledPrice string `json:"average_filled_price"`
	} `json:"order"`
}

func (c *LiveClient) GetOrder(ctx context.Context, orderID string) (OrderResult, error) {
	var resp getOrderResponse
	path := "/api/v3/brokerage/orders/historical/" + orderID
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return OrderResult{}, err
	}
	qty, _ := strconv.ParseFloat(resp.Order.FilledSize, 64)
	price, _ := strconv.ParseFloat(resp.Order.AverageFilledPrice, 64)
	return OrderResult{
		OrderID:   resp.Order.OrderID,
		Symbol:    resp.Order.ProductID,
		Side:      OrderSide(resp.Order.Side),
		FilledQty: qty,
		FillPrice: price,
		Status:    resp.Order.Status,
	}, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}
