// Package universe implements the tradable-set rebuild (spec.md §4.6):
// eligibility filtering, composite ranking, and per-symbol burst metrics.
// Ranking uses gonum/stat for the rolling-median baseline the teacher's
// pack brings in (gonum.org/v1/gonum/stat), generalized from the
// teacher's dividend/rebalancing statistics to volume/range spike ratios.
package universe

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ProductSummary is what the scanner needs per product from the
// exchange's product list + a 24h sample (spec.md §4.6 step 1-2).
type ProductSummary struct {
	Symbol        string
	QuoteAsset    string
	BaseAsset     string
	Volume24hUSD  float64
	AvgSpreadBps  float64
}

// Config holds the scanner's eligibility thresholds.
type Config struct {
	Min24hVolumeUSD float64
	SpreadMaxBps    float64
	Stablecoins     map[string]struct{}
	IgnoredSymbols  map[string]struct{}
}

// Info is the per-symbol eligibility/ranking record (spec.md §3's
// UniverseInfo).
type Info struct {
	Symbol       string
	AvgSpreadBps float64
	Volume24hUSD float64
	Eligible     bool
	Score        float64
}

// Scanner rebuilds the eligible universe and ranks it.
type Scanner struct {
	cfg Config
}

// New creates a Scanner with cfg.
func New(cfg Config) *Scanner {
	return &Scanner{cfg: cfg}
}

// Filter applies step 1-3 of spec.md §4.6: USD-quoted pairs, excluding
// stablecoins and ignored symbols, then the eligibility predicate.
func (s *Scanner) Filter(products []ProductSummary) []Info {
	var out []Info
	for _, p := range products {
		if p.QuoteAsset != "USD" {
			continue
		}
		if _, stable := s.cfg.Stablecoins[p.BaseAsset]; stable {
			continue
		}
		if _, ignored := s.cfg.IgnoredSymbols[p.Symbol]; ignored {
			continue
		}
		eligible := p.Volume24hUSD >= s.cfg.Min24hVolumeUSD && p.AvgSpreadBps <= s.cfg.SpreadMaxBps
		out = append(out, Info{
			Symbol:       p.Symbol,
			AvgSpreadBps: p.AvgSpreadBps,
			Volume24hUSD: p.Volume24hUSD,
			Eligible:     eligible,
		})
	}
	return out
}

// Rank scores and sorts eligible symbols best-first (step 4): preference
// for high volume, low spread, with tier diversity achieved by a log-
// dampened volume term so mid/small caps aren't crowded out entirely by
// the largest-cap symbols.
func (s *Scanner) Rank(infos []Info) []Info {
	var eligible []Info
	var volumes []float64
	for _, info := range infos {
		if info.Eligible {
			eligible = append(eligible, info)
			volumes = append(volumes, info.Volume24hUSD)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	medianVol := stat.Quantile(0.5, stat.Empirical, append([]float64(nil), volumes...), nil)
	if medianVol <= 0 {
		medianVol = 1
	}

	for i := range eligible {
		volRatio := eligible[i].Volume24hUSD / medianVol
		volScore := dampedLog(volRatio)
		spreadPenalty := eligible[i].AvgSpreadBps / 100.0
		eligible[i].Score = volScore - spreadPenalty
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Score > eligible[j].Score
	})
	return eligible
}

// dampedLog compresses large ratios (≥1) so a single mega-cap symbol
// doesn't dominate the volume term, preserving the scanner's "keep some
// mid- and small-caps" tier-diversity goal.
func dampedLog(ratio float64) float64 {
	if ratio <= 0 {
		return 0
	}
	// log(1+ratio) grows slowly for large ratio while still rewarding
	// higher volume monotonically.
	return math.Log(1 + ratio)
}

// RankedSymbols returns just the symbol strings of infos, best-first —
// the shape TierScheduler.ReassignTiers expects.
func RankedSymbols(infos []Info) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Symbol
	}
	return out
}

// BurstMetrics is the per-symbol spike/trend snapshot the orchestrator
// and hot-list leaderboard consume (spec.md §4.6 step 6).
type BurstMetrics struct {
	Symbol          string
	VolumeSpikeRatio float64
	RangeSpikeRatio  float64
	Trend15m         float64
	VWAPDistance     float64
	ComputedAt       time.Time
}
