package sizing

import (
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

// TierConfig is one sizing tier's score floor, percent-of-portfolio
// target, USD fallback floor, and max simultaneous positions.
type TierConfig struct {
	ScoreMin      float64
	PctOfPortfolio float64
	USDFloor      float64
	MaxPositions  int
}

// Config is everything the sizer needs from runtime settings.
type Config struct {
	Scout  TierConfig
	Normal TierConfig
	Strong TierConfig
	Whale  TierConfig

	WhaleConfluenceMin int

	PositionMinPct          float64
	PositionMaxPct          float64
	MaxTradeUSD             float64
	PortfolioMaxExposurePct float64
	MinPositionUSD          float64
	MinRRRatio              float64
	TestMode                bool

	Stops StopConfig
}

// DefaultConfig mirrors the settings defaults already validated in
// internal/config (spec.md §4.1) plus the teacher's tier percentage
// table.
func DefaultConfig() Config {
	return Config{
		Scout:  TierConfig{ScoreMin: 50, PctOfPortfolio: 0.010, USDFloor: 5, MaxPositions: 4},
		Normal: TierConfig{ScoreMin: 60, PctOfPortfolio: 0.013, USDFloor: 8, MaxPositions: 8},
		Strong: TierConfig{ScoreMin: 75, PctOfPortfolio: 0.016, USDFloor: 12, MaxPositions: 3},
		Whale:  TierConfig{ScoreMin: 88, PctOfPortfolio: 0.020, USDFloor: 20, MaxPositions: 1},

		WhaleConfluenceMin: 3,

		PositionMinPct:          0.005,
		PositionMaxPct:          0.05,
		MaxTradeUSD:             50,
		PortfolioMaxExposurePct: 0.85,
		MinPositionUSD:          5,
		MinRRRatio:              1.5,

		Stops: DefaultStopConfig(),
	}
}

// TierCounts is the current simultaneous-position count per tier,
// supplied by the registry/router so per-tier caps can be enforced.
type TierCounts struct {
	Scout, Normal, Strong, Whale int
}

// TradePlan is a signal that survived sizing: the final dollar size,
// tier label, stop/TP geometry, R:R ratio, and the metadata the UI and
// audit log want (spec.md §4.10).
type TradePlan struct {
	Symbol          string
	Tier            domain.SizeTier
	SizeUSD         float64
	EntryPrice      float64
	StopPrice       float64
	TP1Price        float64
	TP2Price        float64
	TimeStopDeadline time.Time
	RRRatio         float64
	SessionMult     float64
	AvailableBudget float64
	CurrentExposure float64
	Score           float64
	ConfluenceCount int
}

// PlanResult is the sizer's tagged outcome.
type PlanResult struct {
	Plan    TradePlan
	OK      bool
	Reason  domain.GateReason
	Details string
}

// Sizer turns a scored, gate-passed signal into a TradePlan.
type Sizer struct {
	cfg Config
}

// New creates a Sizer bound to cfg.
func New(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Plan runs the full §4.10 precedence chain. portfolioValue and
// currentExposure come from the Exchange Sync / Portfolio Manager;
// sessionMult comes from the intelligence time-of-day multiplier;
// isFastBreakout and now drive stop/TP geometry and the time-stop
// deadline.
func (s *Sizer) Plan(
	symbol string,
	strategyID domain.SignalType,
	score float64,
	confluenceCount int,
	entryPrice float64,
	isFastBreakout bool,
	portfolioValue float64,
	currentExposure float64,
	sessionMult float64,
	tiers TierCounts,
	now time.Time,
) PlanResult {
	tierConf, tierLabel, ok := s.pickTier(score, confluenceCount, tiers)
	if !ok {
		return PlanResult{OK: false, Reason: domain.GateReasonLimits, Details: "no eligible sizing tier (score too low or tier full)"}
	}

	sizeUSD := tierConf.PctOfPortfolio * portfolioValue
	if sizeUSD < tierConf.USDFloor {
		sizeUSD = tierConf.USDFloor
	}

	// 2. session multiplier
	if sessionMult > 0 && sessionMult < 1.0 {
		sizeUSD *= sessionMult
	}

	// 3. portfolio guardrails
	minPct := portfolioValue * s.cfg.PositionMinPct
	maxPct := portfolioValue * s.cfg.PositionMaxPct
	sizeUSD = clamp(sizeUSD, minPct, maxPct)

	// 4. max trade USD
	if sizeUSD > s.cfg.MaxTradeUSD {
		sizeUSD = s.cfg.MaxTradeUSD
	}

	// 5. exposure remaining
	budget := portfolioValue * s.cfg.PortfolioMaxExposurePct
	available := budget - currentExposure
	if available <= 0 {
		return PlanResult{OK: false, Reason: domain.GateReasonBudget, Details: "no exposure budget remaining"}
	}
	if sizeUSD > available {
		sizeUSD = available
	}

	// 6. minimum order
	if sizeUSD < s.cfg.MinPositionUSD {
		return PlanResult{OK: false, Reason: domain.GateReasonLimits, Details: "sized trade below minimum order size"}
	}

	stops := CalculateStops(entryPrice, isFastBreakout, symbol, s.cfg.Stops)

	rrRatio, rrOK := validateRR(entryPrice, stops.StopPrice, stops.TP1Price, s.cfg.MinRRRatio, s.cfg.TestMode)
	if !rrOK {
		return PlanResult{OK: false, Reason: domain.GateReasonRR, Details: "risk:reward below minimum"}
	}

	plan := TradePlan{
		Symbol:           symbol,
		Tier:             tierLabel,
		SizeUSD:          sizeUSD,
		EntryPrice:       entryPrice,
		StopPrice:        stops.StopPrice,
		TP1Price:         stops.TP1Price,
		TP2Price:         stops.TP2Price,
		TimeStopDeadline: now.Add(time.Duration(stops.TimeStopMin) * time.Minute),
		RRRatio:          rrRatio,
		SessionMult:      sessionMult,
		AvailableBudget:  available,
		CurrentExposure:  currentExposure,
		Score:            score,
		ConfluenceCount:  confluenceCount,
	}
	return PlanResult{Plan: plan, OK: true}
}

// pickTier implements step 1's tier selection, evaluated highest tier
// first so a whale-eligible score never silently falls through to
// normal just because the whale slot is full — it keeps checking lower
// tiers per the teacher's original if/elif chain.
func (s *Sizer) pickTier(score float64, confluenceCount int, tiers TierCounts) (TierConfig, domain.SizeTier, bool) {
	if score >= s.cfg.Whale.ScoreMin && confluenceCount >= s.cfg.WhaleConfluenceMin && tiers.Whale < s.cfg.Whale.MaxPositions {
		return s.cfg.Whale, domain.SizeTierWhale, true
	}
	if score >= s.cfg.Strong.ScoreMin && tiers.Strong < s.cfg.Strong.MaxPositions {
		return s.cfg.Strong, domain.SizeTierStrong, true
	}
	if score >= s.cfg.Normal.ScoreMin && tiers.Normal < s.cfg.Normal.MaxPositions {
		return s.cfg.Normal, domain.SizeTierNormal, true
	}
	if score >= s.cfg.Scout.ScoreMin && tiers.Scout < s.cfg.Scout.MaxPositions {
		return s.cfg.Scout, domain.SizeTierScout, true
	}
	return TierConfig{}, "", false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// validateRR implements the R:R gate (spec.md §4.10): stop must sit
// below entry, and the resulting reward:risk ratio must clear the
// configured floor, except in test mode where the ratio is computed
// but never rejected.
func validateRR(entry, stop, tp1, minRR float64, testMode bool) (float64, bool) {
	if stop >= entry {
		return 0, false
	}
	rr := (tp1 - entry) / (entry - stop)
	if testMode {
		return rr, true
	}
	return rr, rr >= minRR
}
