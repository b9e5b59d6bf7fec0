package universe

import (
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Min24hVolumeUSD: 100000,
		SpreadMaxBps:    50,
		Stablecoins:     map[string]struct{}{"USDC": {}, "USDT": {}},
		IgnoredSymbols:  map[string]struct{}{"IGNORE-USD": {}},
	}
}

func TestScanner_Filter_ExcludesNonUSDAndStablecoins(t *testing.T) {
	s := New(testConfig())
	products := []ProductSummary{
		{Symbol: "BTC-USD", QuoteAsset: "USD", BaseAsset: "BTC", Volume24hUSD: 1e9, AvgSpreadBps: 5},
		{Symbol: "ETH-EUR", QuoteAsset: "EUR", BaseAsset: "ETH", Volume24hUSD: 1e9, AvgSpreadBps: 5},
		{Symbol: "USDC-USD", QuoteAsset: "USD", BaseAsset: "USDC", Volume24hUSD: 1e9, AvgSpreadBps: 1},
		{Symbol: "IGNORE-USD", QuoteAsset: "USD", BaseAsset: "IGNORE", Volume24hUSD: 1e9, AvgSpreadBps: 1},
	}
	infos := s.Filter(products)
	require.Len(t, infos, 1)
	assert.Equal(t, "BTC-USD", infos[0].Symbol)
}

func TestScanner_Filter_MarksEligibility(t *testing.T) {
	s := New(testConfig())
	products := []ProductSummary{
		{Symbol: "BTC-USD", QuoteAsset: "USD", BaseAsset: "BTC", Volume24hUSD: 1e9, AvgSpreadBps: 5},
		{Symbol: "TINY-USD", QuoteAsset: "USD", BaseAsset: "TINY", Volume24hUSD: 1000, AvgSpreadBps: 5},
		{Symbol: "WIDE-USD", QuoteAsset: "USD", BaseAsset: "WIDE", Volume24hUSD: 1e9, AvgSpreadBps: 500},
	}
	infos := s.Filter(products)
	byBym := map[string]Info{}
	for _, i := range infos {
		byBym[i.Symbol] = i
	}
	assert.True(t, byBym["BTC-USD"].Eligible)
	assert.False(t, byBym["TINY-USD"].Eligible)
	assert.False(t, byBym["WIDE-USD"].Eligible)
}

func TestScanner_Rank_OrdersByVolumeAndSpread(t *testing.T) {
	s := New(testConfig())
	infos := []Info{
		{Symbol: "LOW-VOL", Volume24hUSD: 200000, AvgSpreadBps: 5, Eligible: true},
		{Symbol: "HIGH-VOL", Volume24hUSD: 5000000, AvgSpreadBps: 5, Eligible: true},
		{Symbol: "NOT-ELIGIBLE", Volume24hUSD: 9000000, AvgSpreadBps: 5, Eligible: false},
	}
	ranked := s.Rank(infos)
	require.Len(t, ranked, 2)
	assert.Equal(t, "HIGH-VOL", ranked[0].Symbol)
	assert.Equal(t, "LOW-VOL", ranked[1].Symbol)
}

func TestRankedSymbols_ExtractsOrder(t *testing.T) {
	infos := []Info{{Symbol: "A"}, {Symbol: "B"}}
	assert.Equal(t, []string{"A", "B"}, RankedSymbols(infos))
}

func TestComputeBurstMetrics_InsufficientHistoryReturnsZeroValue(t *testing.T) {
	buf := candles.NewCandleBuffer("BTC-USD")
	metrics := ComputeBurstMetrics("BTC-USD", buf, time.Now())
	assert.Equal(t, 0.0, metrics.VolumeSpikeRatio)
}

func TestComputeBurstMetrics_DetectsVolumeSpike(t *testing.T) {
	buf := candles.NewCandleBuffer("BTC-USD")
	base := time.Now().UTC().Add(-50 * 5 * time.Minute)
	for i := 0; i < 49; i++ {
		ts := base.Add(time.Duration(i) * 5 * time.Minute)
		buf.Push(domain.TF5m, domain.Candle{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100, Volume: 10})
	}
	// final candle has a 10x volume and range spike
	ts := base.Add(49 * 5 * time.Minute)
	buf.Push(domain.TF5m, domain.Candle{Timestamp: ts, Open: 100, High: 110, Low: 90, Close: 105, Volume: 100})

	metrics := ComputeBurstMetrics("BTC-USD", buf, time.Now())
	assert.Greater(t, metrics.VolumeSpikeRatio, 5.0)
	assert.Greater(t, metrics.RangeSpikeRatio, 5.0)
}
