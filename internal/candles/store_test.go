package candles

import (
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	layout, err := paths.New(t.TempDir(), domain.ModePaper)
	require.NoError(t, err)
	require.NoError(t, layout.EnsureDirs())
	return NewStore(layout, zerolog.Nop())
}

func TestStore_WriteAndLoadCandles_RoundTrip(t *testing.T) {
	s := testStore(t)
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	cs := []domain.Candle{
		mkCandle(base, 100, 101, 99, 100.5, 10),
		mkCandle(base.Add(time.Minute), 100.5, 102, 100, 101.5, 12),
	}
	require.NoError(t, s.WriteCandles("BTC-USD", domain.TF1m, domain.SourceREST, cs))

	loaded, err := s.LoadCandles("BTC-USD", domain.TF1m, 0, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, cs[0].Close, loaded[0].Close)
	assert.Equal(t, cs[1].Close, loaded[1].Close)
}

func TestStore_WriteCandles_DropsInvalidEntries(t *testing.T) {
	s := testStore(t)
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	valid := mkCandle(base, 100, 101, 99, 100.5, 10)
	invalid := domain.Candle{Timestamp: base.Add(time.Minute), Open: 100, High: 90, Low: 99, Close: 100, Volume: 1}

	require.NoError(t, s.WriteCandles("ETH-USD", domain.TF1m, domain.SourceREST, []domain.Candle{valid, invalid}))

	loaded, err := s.LoadCandles("ETH-USD", domain.TF1m, 0, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestStore_LoadCandles_MissingFileIsNotError(t *testing.T) {
	s := testStore(t)
	loaded, err := s.LoadCandles("NOPE-USD", domain.TF1m, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_LoadCandles_FiltersByMaxAge(t *testing.T) {
	s := testStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC().Add(-time.Minute)

	require.NoError(t, s.WriteCandles("BTC-USD", domain.TF1m, domain.SourceREST, []domain.Candle{
		mkCandle(old, 100, 101, 99, 100, 1),
		mkCandle(recent, 100, 101, 99, 100, 1),
	}))

	loaded, err := s.LoadCandles("BTC-USD", domain.TF1m, 24, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, recent.Unix(), loaded[0].Timestamp.Unix())
}

func TestStore_LoadCandles_TruncatesToMaxCount(t *testing.T) {
	s := testStore(t)
	base := time.Now().UTC().Add(-time.Hour)
	var cs []domain.Candle
	for i := 0; i < 10; i++ {
		cs = append(cs, mkCandle(base.Add(time.Duration(i)*time.Minute), 100, 101, 99, 100+float64(i), 1))
	}
	require.NoError(t, s.WriteCandles("BTC-USD", domain.TF1m, domain.SourceREST, cs))

	loaded, err := s.LoadCandles("BTC-USD", domain.TF1m, 0, 3)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	// the most recent 3 candles are kept
	assert.Equal(t, 107.0, loaded[0].Close)
	assert.Equal(t, 109.0, loaded[2].Close)
}

func TestStore_LoadCandles_DedupesByTimestampFirstWins(t *testing.T) {
	s := testStore(t)
	ts := time.Now().UTC().Add(-time.Minute)

	require.NoError(t, s.WriteCandles("BTC-USD", domain.TF1m, domain.SourceREST, []domain.Candle{
		mkCandle(ts, 100, 101, 99, 100, 1),
	}))
	require.NoError(t, s.WriteCandles("BTC-USD", domain.TF1m, domain.SourceWS, []domain.Candle{
		mkCandle(ts, 100, 101, 99, 999, 1),
	}))

	loaded, err := s.LoadCandles("BTC-USD", domain.TF1m, 0, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 100.0, loaded[0].Close)
}

func TestStore_RehydrateBuffers_SeedsBothTimeframes(t *testing.T) {
	s := testStore(t)
	base := time.Now().UTC().Add(-10 * time.Minute)

	var m1, m5 []domain.Candle
	for i := 0; i < 5; i++ {
		m1 = append(m1, mkCandle(base.Add(time.Duration(i)*time.Minute), 100, 101, 99, 100, 1))
		m5 = append(m5, mkCandle(base.Add(time.Duration(i)*5*time.Minute), 100, 101, 99, 100, 1))
	}
	require.NoError(t, s.WriteCandles("BTC-USD", domain.TF1m, domain.SourceREST, m1))
	require.NoError(t, s.WriteCandles("BTC-USD", domain.TF5m, domain.SourceREST, m5))

	buffers, err := s.RehydrateBuffers([]string{"BTC-USD"}, 0)
	require.NoError(t, err)
	buf, ok := buffers["BTC-USD"]
	require.True(t, ok)
	assert.Equal(t, 5, buf.Len(domain.TF1m))
	assert.Equal(t, 5, buf.Len(domain.TF5m))
}
