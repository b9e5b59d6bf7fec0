package paths

import (
	"path/filepath"
	"testing"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONAtomic_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, domain.ModePaper)
	require.NoError(t, err)

	type payload struct {
		Foo string `json:"foo"`
		N   int    `json:"n"`
	}
	want := payload{Foo: "bar", N: 7}
	path := filepath.Join(l.DataDir(), "thing.json")

	require.NoError(t, WriteJSONAtomic(path, want))

	var got payload
	ok, err := ReadJSON(path, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestReadJSON_MissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	var v map[string]any
	ok, err := ReadJSON(filepath.Join(dir, "missing.json"), &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayout_SafeSymbolDirs(t *testing.T) {
	l, err := New(t.TempDir(), domain.ModeLive)
	require.NoError(t, err)
	got := l.CandleFile("BTC/USD:PERP", domain.TF1m)
	assert.Contains(t, got, "BTC-USD-PERP")
	assert.Contains(t, got, filepath.Join("candles", "BTC-USD-PERP", "1m.jsonl"))
}

func TestWriteJSONAtomic_Idempotent(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, domain.ModePaper)
	require.NoError(t, err)
	path := l.DailyStatsFile()

	require.NoError(t, WriteJSONAtomic(path, map[string]int{"a": 1}))
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"a": 2}))

	var got map[string]int
	ok, err := ReadJSON(path, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got["a"])
}
