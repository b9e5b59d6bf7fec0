package engine

import "time"

// sessionMultiplier is the time-of-day size multiplier sizing.Sizer.Plan
// takes as sessionMult (spec.md §4.10 step 2, "session_mult <= 1.0").
// No intelligence-service implementation of this exists anywhere in
// this engine (see DESIGN.md) — this placeholder runs full size during
// the core US/EU liquidity overlap and trims size during the thin
// overnight UTC window, rather than leaving the knob unused.
func sessionMultiplier(now time.Time) float64 {
	h := now.UTC().Hour()
	switch {
	case h >= 12 && h < 21: // 12:00-21:00 UTC: US+EU session overlap
		return 1.0
	case h >= 6 && h < 12: // 06:00-12:00 UTC: EU session
		return 0.85
	default: // 21:00-06:00 UTC: thin overnight liquidity
		return 0.6
	}
}
