package config

import (
	"testing"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() *Settings {
	return &Settings{
		TradingMode:             "paper",
		PaperStartBalance:       1000,
		MaxTradeUSD:             50,
		DailyMaxLossUSD:         30,
		PositionMinPct:          0.005,
		PositionBasePct:         0.015,
		PositionMaxPct:          0.05,
		PortfolioMaxExposurePct: 0.85,
		MinRRRatio:              1.5,
		EntryScoreMin:           60,
		SpreadMaxBps:            25,
	}
}

func TestSettings_Validate_SizingChain(t *testing.T) {
	s := testSettings()
	s.PositionBasePct = 0.002 // below min
	assert.Error(t, s.Validate())
}

func TestSettings_Validate_LiveRequiresCreds(t *testing.T) {
	s := testSettings()
	s.TradingMode = "live"
	assert.Error(t, s.Validate())
	s.APIKey, s.APISecret = "k", "s"
	assert.NoError(t, s.Validate())
}

func TestSettings_Redacted(t *testing.T) {
	s := testSettings()
	s.APIKey = "super-secret"
	red := s.Redacted()
	assert.Equal(t, redactedSecret, red.APIKey)
}

func TestStore_UpdateParam_RejectsUnknown(t *testing.T) {
	layout, err := paths.New(t.TempDir(), domain.ModePaper)
	require.NoError(t, err)
	st, err := NewStore(layout, testSettings(), zerolog.Nop())
	require.NoError(t, err)

	err = st.UpdateParam("not_a_real_param", 1, "test")
	assert.Error(t, err)
}

func TestStore_UpdateParam_PersistsAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	layout, err := paths.New(dir, domain.ModePaper)
	require.NoError(t, err)
	st, err := NewStore(layout, testSettings(), zerolog.Nop())
	require.NoError(t, err)

	var fired []string
	st.OnChange(func(param string, value float64, source string) {
		fired = append(fired, param)
	})

	require.NoError(t, st.UpdateParam("entry_score_min", 72, "api"))
	assert.Equal(t, 72.0, st.Get().EntryScoreMin)
	assert.Equal(t, []string{"entry_score_min"}, fired)

	// percentage param converts UI 0-100 to stored fraction
	require.NoError(t, st.UpdateParam("position_base_pct", 2.0, "api"))
	assert.InDelta(t, 0.02, st.Get().PositionBasePct, 1e-9)

	// re-open a fresh store against the same dir and confirm it persisted
	st2, err := NewStore(layout, testSettings(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 72.0, st2.Get().EntryScoreMin)
}

func TestStore_UpdateParam_ValidatorRejectsOutOfRange(t *testing.T) {
	layout, err := paths.New(t.TempDir(), domain.ModePaper)
	require.NoError(t, err)
	st, err := NewStore(layout, testSettings(), zerolog.Nop())
	require.NoError(t, err)

	err = st.UpdateParam("min_rr_ratio", 0.5, "api")
	assert.Error(t, err)
	assert.Equal(t, 1.5, st.Get().MinRRRatio) // unchanged
}
