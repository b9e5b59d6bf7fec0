package router

import (
	"context"
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

// Tick runs one round of continuous position monitoring (spec.md §4.11
// step 3-5): for every active position with a tick context supplied, it
// updates current_price, checks thesis invalidation / time stop /
// trailing-stop activation, and closes (fully or partially at TP1) any
// position whose exit condition has fired. Symbols with no entry in
// ticks are skipped (stale price, nothing to evaluate this round).
func (r *Router) Tick(ctx context.Context, now time.Time, ticks map[string]TickContext) {
	for symbol, pos := range r.registry.ActivePositions() {
		tc, ok := ticks[symbol]
		if !ok {
			continue
		}
		r.evaluateOne(ctx, pos, tc, now)
	}
}

func (r *Router) evaluateOne(ctx context.Context, pos domain.Position, tc TickContext, now time.Time) {
	pos.CurrentPrice = tc.Price
	r.registry.Update(pos)
	r.registry.UpdatePositionValue(pos.Symbol, tc.Price)

	// Hard exits take precedence in a fixed order: stop, TP2, time,
	// thesis invalidation. TP1 partial is the only non-terminal branch.
	if tc.Price <= pos.StopPrice {
		r.logAndClose(ctx, pos, tc.Price, ExitStop)
		return
	}
	if tc.Price >= pos.TP2Price {
		r.logAndClose(ctx, pos, tc.Price, ExitTP2)
		return
	}
	if now.After(pos.TimeStopDeadline) {
		r.logAndClose(ctx, pos, tc.Price, ExitTimeStop)
		return
	}
	if tc.TrendShort <= -r.cfg.ThesisInvalidationTrendDrop {
		r.logAndClose(ctx, pos, tc.Price, ExitThesisInvalidation)
		return
	}

	if pos.State == domain.PositionOpen && tc.Price >= pos.TP1Price {
		r.handleTP1(ctx, pos, tc.Price)
		return
	}

	r.updateTrailing(pos, tc.Price)
}

func (r *Router) logAndClose(ctx context.Context, pos domain.Position, price float64, reason ExitReason) {
	if err := r.Close(ctx, pos, price, reason); err != nil {
		r.log.Error().Err(err).Str("symbol", pos.Symbol).Str("reason", string(reason)).Msg("close position")
	}
}

// handleTP1 closes tp1_partial_pct of the position, moves the stop to
// breakeven (plus a fee buffer), and marks the remainder PARTIAL_CLOSED
// (spec.md §4.11 step 4).
func (r *Router) handleTP1(ctx context.Context, pos domain.Position, price float64) {
	qty := pos.SizeQty * r.cfg.TP1PartialPct
	if err := r.closePartial(ctx, pos, qty, price, "", false); err != nil {
		r.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("TP1 partial close")
		return
	}

	remaining, ok := r.registry.Get(pos.Symbol)
	if !ok {
		return
	}
	remaining.State = domain.PositionPartialClosed
	remaining.BreakevenLocked = true
	remaining.StopPrice = pos.EntryPrice * (1 + r.cfg.FeeBufferPct)
	r.registry.Update(remaining)
}

// updateTrailing implements trailing-stop activation (spec.md §4.11 step
// 3): at trail_be_trigger_r move the stop to breakeven; at
// trail_start_r begin trailing trail_lock_pct behind the position's
// high-water mark.
func (r *Router) updateTrailing(pos domain.Position, price float64) {
	risk := pos.EntryPrice - pos.StopPrice
	if risk <= 0 && !pos.TrailingActive {
		return
	}
	unrealizedR := 0.0
	if risk > 0 {
		unrealizedR = (price - pos.EntryPrice) / risk
	}

	changed := false

	if !pos.BreakevenLocked && unrealizedR >= r.cfg.TrailBETriggerR {
		pos.StopPrice = pos.EntryPrice * (1 + r.cfg.FeeBufferPct)
		pos.BreakevenLocked = true
		changed = true
	}

	if pos.TrailingActive || unrealizedR >= r.cfg.TrailStartR {
		if price > pos.TrailHigh {
			pos.TrailHigh = price
			changed = true
		}
		if !pos.TrailingActive {
			pos.TrailingActive = true
			pos.TrailPct = r.cfg.TrailLockPct
			changed = true
		}
		if pos.TrailingActive && pos.TrailHigh > 0 {
			candidateStop := pos.TrailHigh * (1 - pos.TrailPct)
			if candidateStop > pos.StopPrice {
				pos.StopPrice = candidateStop
				changed = true
			}
		}
	}

	if changed {
		r.registry.Update(pos)
	}
}
