// Package sizing implements the tiered position sizer and trade planner
// (spec.md §4.10): score -> tier -> session multiplier -> guardrail
// clamps -> exposure clamp -> minimum-order check -> stop/TP geometry
// -> R:R validation. Grounded on original_source/execution/entry_gates.py's
// calculate_size/calculate_stops and original_source/core/asset_class.py's
// tier profile table.
package sizing

import "strings"

// AssetTier classifies a symbol by market-cap/liquidity bracket, which
// drives its default stop/TP geometry when no fast-breakout override
// applies.
type AssetTier string

const (
	TierLargeCap AssetTier = "large_cap"
	TierMidCap   AssetTier = "mid_cap"
	TierSmallCap AssetTier = "small_cap"
	TierMicroCap AssetTier = "micro_cap"
)

// RiskProfile is one asset tier's stop/TP/hold-time defaults.
type RiskProfile struct {
	Tier              AssetTier
	StopLossPct       float64
	TakeProfitPct     float64
	MaxHoldHours      int
	ConfidenceMult    float64
}

var tierProfiles = map[AssetTier]RiskProfile{
	TierLargeCap: {Tier: TierLargeCap, StopLossPct: 0.08, TakeProfitPct: 0.12, MaxHoldHours: 168, ConfidenceMult: 1.2},
	TierMidCap:   {Tier: TierMidCap, StopLossPct: 0.06, TakeProfitPct: 0.09, MaxHoldHours: 72, ConfidenceMult: 1.0},
	TierSmallCap: {Tier: TierSmallCap, StopLossPct: 0.05, TakeProfitPct: 0.075, MaxHoldHours: 24, ConfidenceMult: 0.8},
	TierMicroCap: {Tier: TierMicroCap, StopLossPct: 0.04, TakeProfitPct: 0.06, MaxHoldHours: 8, ConfidenceMult: 0.6},
}

var largeCapSymbols = toSet([]string{
	"BTC", "ETH", "BNB", "XRP", "USDT", "USDC", "SOL", "ADA", "DOGE", "TRX",
	"AVAX", "SHIB", "DOT", "LINK", "TON", "MATIC", "BCH", "LTC", "UNI", "ATOM",
})

var midCapSymbols = toSet([]string{
	"XLM", "ETC", "FIL", "HBAR", "APT", "IMX", "NEAR", "INJ", "OP", "ARB",
	"AAVE", "MKR", "ALGO", "VET", "RENDER", "GRT", "FTM", "SAND", "MANA",
	"AXS", "STX", "QNT", "SNX", "CRV", "LDO", "RUNE", "KAVA", "FLOW", "CFX",
	"THETA", "XTZ", "EOS", "NEO", "IOTA", "ZEC", "HNT", "ENS", "COMP", "YFI",
	"PAXG", "CBETH",
})

var microCapSymbols = toSet([]string{
	"SYRUP", "SQD", "SKY", "WELL", "SUPER", "ORCA", "FLR", "CRO",
})

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

// baseAsset strips a "-USD"-style quote suffix from a trading symbol.
func baseAsset(symbol string) string {
	if i := strings.IndexAny(symbol, "-/"); i >= 0 {
		return strings.ToUpper(symbol[:i])
	}
	return strings.ToUpper(symbol)
}

// ClassifyAsset buckets symbol into an AssetTier. Unknown assets default
// to small-cap, matching the teacher's "default to small cap for unknown
// assets" safety rule.
func ClassifyAsset(symbol string) AssetTier {
	base := baseAsset(symbol)
	if _, ok := largeCapSymbols[base]; ok {
		return TierLargeCap
	}
	if _, ok := midCapSymbols[base]; ok {
		return TierMidCap
	}
	if _, ok := microCapSymbols[base]; ok {
		return TierMicroCap
	}
	return TierSmallCap
}

// GetRiskProfile returns the full risk profile for symbol's asset tier.
func GetRiskProfile(symbol string) RiskProfile {
	return tierProfiles[ClassifyAsset(symbol)]
}
