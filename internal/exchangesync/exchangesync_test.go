package exchangesync

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/exchangeclient"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) paths.Layout {
	t.Helper()
	l, err := paths.New(t.TempDir(), domain.ModeLive)
	require.NoError(t, err)
	require.NoError(t, l.EnsureDirs())
	return l
}

func TestPaper_ApplyFillDebitsCashAndCreditsHoldings(t *testing.T) {
	layout := testLayout(t)
	p, err := NewPaper(layout, 1000, true, 1.0, zerolog.Nop())
	require.NoError(t, err)
	p.SetPrice("BTC-USD", 100)

	err = p.ApplyFill(context.Background(), "BTC-USD", true, 100, 1, 100)
	require.NoError(t, err)

	bal, err := p.GetAvailableBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 900, bal, 1e-9)
	assert.True(t, p.HasExchangeHolding("BTC-USD"))
}

func TestPaper_ApplyFillSellReducesHoldingAndCostBasis(t *testing.T) {
	layout := testLayout(t)
	p, err := NewPaper(layout, 1000, true, 1.0, zerolog.Nop())
	require.NoError(t, err)
	p.SetPrice("BTC-USD", 100)
	require.NoError(t, p.ApplyFill(context.Background(), "BTC-USD", true, 200, 2, 100))

	err = p.ApplyFill(context.Background(), "BTC-USD", false, 100, 1, 100)
	require.NoError(t, err)

	snap := p.Snapshot()
	pos, ok := snap.Positions["BTC-USD"]
	require.True(t, ok)
	assert.InDelta(t, 1, pos.TotalBalanceCrypto, 1e-9)
	assert.InDelta(t, 100, pos.CostBasis, 1e-9)
}

func TestPaper_SellingEntirePositionRemovesIt(t *testing.T) {
	layout := testLayout(t)
	p, err := NewPaper(layout, 1000, true, 1.0, zerolog.Nop())
	require.NoError(t, err)
	p.SetPrice("BTC-USD", 100)
	require.NoError(t, p.ApplyFill(context.Background(), "BTC-USD", true, 100, 1, 100))
	require.NoError(t, p.ApplyFill(context.Background(), "BTC-USD", false, 100, 1, 100))
	assert.False(t, p.HasExchangeHolding("BTC-USD"))
}

func TestPaper_StateSurvivesReload(t *testing.T) {
	layout := testLayout(t)
	p, err := NewPaper(layout, 1000, true, 1.0, zerolog.Nop())
	require.NoError(t, err)
	p.SetPrice("ETH-USD", 50)
	require.NoError(t, p.ApplyFill(context.Background(), "ETH-USD", true, 500, 10, 50))

	reloaded, err := NewPaper(layout, 1000, false, 1.0, zerolog.Nop())
	require.NoError(t, err)
	bal, err := reloaded.GetAvailableBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 500, bal, 1e-9)
}

func TestPaper_ResetStateDiscardsPriorState(t *testing.T) {
	layout := testLayout(t)
	p, err := NewPaper(layout, 1000, true, 1.0, zerolog.Nop())
	require.NoError(t, err)
	p.SetPrice("ETH-USD", 50)
	require.NoError(t, p.ApplyFill(context.Background(), "ETH-USD", true, 500, 10, 50))

	fresh, err := NewPaper(layout, 1000, true, 1.0, zerolog.Nop())
	require.NoError(t, err)
	bal, err := fresh.GetAvailableBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1000, bal, 1e-9)
}

func TestPaper_TruthNeverStale(t *testing.T) {
	layout := testLayout(t)
	p, err := NewPaper(layout, 1000, true, 1.0, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, p.TruthStale())
}

// fakeClient is a test-local exchangeclient.Client double with
// controllable accounts/breakdown/product responses, independent from
// exchangeclient.PaperClient (which deliberately stubs those calls out).
type fakeClient struct {
	exchangeclient.Client
	accounts  []exchangeclient.Account
	breakdown exchangeclient.PortfolioBreakdown
	products  map[string]exchangeclient.ProductInfo
	calls     int
}

func (f *fakeClient) GetAccounts(ctx context.Context) ([]exchangeclient.Account, error) {
	return f.accounts, nil
}

func (f *fakeClient) GetPortfolioBreakdown(ctx context.Context, uuid string) (exchangeclient.PortfolioBreakdown, error) {
	f.calls++
	return f.breakdown, nil
}

func (f *fakeClient) GetProduct(ctx context.Context, symbol string) (exchangeclient.ProductInfo, error) {
	return f.products[symbol], nil
}

func TestLive_UpdatePortfolioStateBuildsSnapshot(t *testing.T) {
	layout := testLayout(t)
	fc := &fakeClient{
		breakdown: exchangeclient.PortfolioBreakdown{
			SpotPositions: []exchangeclient.SpotPositionDTO{
				{Asset: "USD", TotalBalanceFiat: 400, IsCash: true},
				{Asset: "BTC-USD", TotalBalanceCrypto: 1, TotalBalanceFiat: 600,
					CostBasis: exchangeclient.Money{Value: 500}, UnrealizedPnL: 100},
			},
		},
	}
	l := NewLive(fc, "portfolio-1", layout, 30*time.Second, 10*time.Second, 120, zerolog.Nop())

	require.NoError(t, l.UpdatePortfolioState(context.Background()))
	snap := l.Snapshot()
	assert.InDelta(t, 1000, snap.TotalValue, 1e-9)
	assert.InDelta(t, 400, snap.TotalCash, 1e-9)
	assert.InDelta(t, 600, snap.TotalCrypto, 1e-9)
	assert.True(t, l.HasExchangeHolding("BTC-USD"))
	assert.False(t, l.HasExchangeHolding("ETH-USD"))
}

func TestLive_UpdatePortfolioStateIsThrottled(t *testing.T) {
	layout := testLayout(t)
	fc := &fakeClient{}
	l := NewLive(fc, "portfolio-1", layout, 30*time.Second, 10*time.Second, 120, zerolog.Nop())

	require.NoError(t, l.UpdatePortfolioState(context.Background()))
	require.NoError(t, l.UpdatePortfolioState(context.Background()))
	assert.Equal(t, 1, fc.calls, "second call within the throttle window should be a no-op")
}

func TestLive_TruthStaleBeforeFirstSync(t *testing.T) {
	layout := testLayout(t)
	fc := &fakeClient{}
	l := NewLive(fc, "portfolio-1", layout, 30*time.Second, 10*time.Second, 120, zerolog.Nop())
	assert.True(t, l.TruthStale())
}

func TestLive_TruthFreshAfterSync(t *testing.T) {
	layout := testLayout(t)
	fc := &fakeClient{}
	l := NewLive(fc, "portfolio-1", layout, 30*time.Second, 10*time.Second, 120, zerolog.Nop())
	require.NoError(t, l.UpdatePortfolioState(context.Background()))
	assert.False(t, l.TruthStale())
}

func TestLive_GetProductInfoCachesAcrossCalls(t *testing.T) {
	layout := testLayout(t)
	fc := &fakeClient{products: map[string]exchangeclient.ProductInfo{
		"BTC-USD": {Price: 50000, QuoteMinSize: 1, BaseMinSize: 0.0001, BaseIncrement: 0.00000001},
	}}
	l := NewLive(fc, "portfolio-1", layout, 30*time.Second, 10*time.Second, 120, zerolog.Nop())

	info, err := l.GetProductInfo(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, info.Price)

	l2 := NewLive(fc, "portfolio-1", layout, 30*time.Second, 10*time.Second, 120, zerolog.Nop())
	cached, err := l2.GetProductInfo(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, cached.Price, "should load from the msgpack cache written by the first instance")
}

func TestLive_GetAvailableBalancePrefersUSD(t *testing.T) {
	layout := testLayout(t)
	fc := &fakeClient{accounts: []exchangeclient.Account{
		{Currency: "BTC", Available: exchangeclient.Money{Value: 2}},
		{Currency: "USD", Available: exchangeclient.Money{Value: 250}},
	}}
	l := NewLive(fc, "portfolio-1", layout, 30*time.Second, 10*time.Second, 120, zerolog.Nop())

	bal, err := l.GetAvailableBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250.0, bal)
}
