package router

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/events"
	"github.com/aristath/spotengine/internal/exchangeclient"
	"github.com/aristath/spotengine/internal/exchangesync"
	"github.com/aristath/spotengine/internal/registry"
	"github.com/aristath/spotengine/internal/sizing"
	"github.com/rs/zerolog"
)

// Router is the Order Router & Executor: it turns a sized TradePlan into
// a filled Position (paper or live), tracks it in the Registry, and
// drives its lifecycle to close (spec.md §4.11).
type Router struct {
	cfg      Config
	mode     domain.TradingMode
	client   exchangeclient.Client
	sync     exchangesync.Sync
	registry *registry.Registry
	recorder *events.Recorder
	log      zerolog.Logger

	// resetStrategy clears a strategy's per-symbol memory on close (spec.md
	// §4.11 step 5 "strategies[strategy_id].reset(symbol)"). A plain
	// function value, not a dependency on internal/strategy, matching the
	// internal/gates.Deps closure idiom.
	resetStrategy func(strategyID string, symbol string)
}

// SetResetFunc wires the strategy-reset callback invoked on every final
// close.
func (r *Router) SetResetFunc(f func(strategyID, symbol string)) {
	r.resetStrategy = f
}

// New constructs a Router bound to one trading mode's client/sync pair.
func New(cfg Config, mode domain.TradingMode, client exchangeclient.Client, sync exchangesync.Sync, reg *registry.Registry, recorder *events.Recorder, log zerolog.Logger) *Router {
	return &Router{
		cfg: cfg, mode: mode, client: client, sync: sync, registry: reg, recorder: recorder,
		log: log.With().Str("component", "router").Logger(),
	}
}

// Open executes plan (step 1-2 of spec.md §4.11's lifecycle): places the
// entry order, constructs the Position, hands it to the registry, and
// emits OrderEvent{open}.
func (r *Router) Open(ctx context.Context, plan sizing.TradePlan, strategyID domain.SignalType) (domain.Position, error) {
	result, err := r.fillEntry(ctx, plan)
	if err != nil {
		return domain.Position{}, fmt.Errorf("fill entry for %s: %w", plan.Symbol, err)
	}

	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: plan.Symbol, Side: "BUY", EntryPrice: result.FillPrice, EntryTime: now,
		SizeUSD: plan.SizeUSD, SizeQty: result.FilledQty, StopPrice: plan.StopPrice,
		TP1Price: plan.TP1Price, TP2Price: plan.TP2Price, TimeStopDeadline: plan.TimeStopDeadline,
		StrategyID: string(strategyID), CostBasis: plan.SizeUSD, CurrentPrice: result.FillPrice,
		State: domain.PositionOpen,
	}

	if err := r.sync.ApplyFill(ctx, plan.Symbol, true, plan.SizeUSD, result.FilledQty, result.FillPrice); err != nil {
		r.log.Error().Err(err).Str("symbol", plan.Symbol).Msg("apply fill to portfolio sync")
	}
	r.registry.Add(pos)
	r.recordOpen(pos)

	// Bracket attachment (spec.md §4.11): this engine has no exchange-
	// side stop-order primitive (exchangeclient.Client exposes market
	// and GTC limit orders only), so the stop/TP1/TP2 bracket is carried
	// on the Position itself and enforced by the monitor loop's per-tick
	// price checks rather than a resting exchange order; StopManager
	// repairs invalid brackets on the stop-health-check interval —
	// see DESIGN.md for the trade-off.
	return pos, nil
}

func (r *Router) fillEntry(ctx context.Context, plan sizing.TradePlan) (exchangeclient.OrderResult, error) {
	switch r.mode {
	case domain.ModePaper:
		return r.client.MarketOrderBuy(ctx, plan.Symbol, plan.SizeUSD)
	default:
		if r.cfg.UseLimitOrders {
			limitPrice := plan.EntryPrice * (1 - r.cfg.LimitBufferPct)
			qty := plan.SizeUSD / limitPrice
			return r.client.LimitOrderGTCBuy(ctx, plan.Symbol, qty, limitPrice)
		}
		return r.client.MarketOrderBuy(ctx, plan.Symbol, plan.SizeUSD)
	}
}

func (r *Router) recordOpen(p domain.Position) {
	if r.recorder == nil {
		return
	}
	evt := domain.OrderEvent{
		EventType: domain.OrderEventOpen, Symbol: p.Symbol, Side: "BUY", Mode: r.mode,
		Price: p.EntryPrice, SizeUSD: p.SizeUSD, SizeQty: p.SizeQty, Timestamp: p.EntryTime,
	}
	if err := r.recorder.RecordOrderEvent(evt); err != nil {
		r.log.Error().Err(err).Str("symbol", p.Symbol).Msg("record open order event")
	}
}

// Close sells the full remaining size_qty of pos, marks it CLOSED, and
// emits OrderEvent{close} with realized PnL for the leg.
func (r *Router) Close(ctx context.Context, pos domain.Position, price float64, reason ExitReason) error {
	return r.closePartial(ctx, pos, pos.SizeQty, price, reason, true)
}

// closePartial sells qty of pos at price. If final is true the position
// transitions to CLOSED and is removed from the registry (moved to dust
// would be meaningless for a fully-closed position); otherwise it stays
// OPEN/PARTIAL_CLOSED with the reduced size.
func (r *Router) closePartial(ctx context.Context, pos domain.Position, qty, price float64, reason ExitReason, final bool) error {
	result, err := r.sellQty(ctx, pos.Symbol, qty, price)
	if err != nil {
		return fmt.Errorf("close %s: %w", pos.Symbol, err)
	}

	proceedsUSD := result.FilledQty * result.FillPrice
	costBasisLeg := pos.CostBasis * (qty / pos.SizeQty)
	legPnL := proceedsUSD - costBasisLeg
	legPnLPct := 0.0
	if costBasisLeg > 0 {
		legPnLPct = legPnL / costBasisLeg
	}

	if err := r.sync.ApplyFill(ctx, pos.Symbol, false, proceedsUSD, result.FilledQty, result.FillPrice); err != nil {
		r.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("apply fill to portfolio sync")
	}

	now := time.Now().UTC()
	eventType := domain.OrderEventClose
	if !final {
		eventType = domain.OrderEventPartialClose
	}
	if r.recorder != nil {
		evt := domain.OrderEvent{
			EventType: eventType, Symbol: pos.Symbol, Side: "SELL", Mode: r.mode,
			Price: result.FillPrice, SizeUSD: proceedsUSD, SizeQty: result.FilledQty,
			PnL: &legPnL, PnLPct: &legPnLPct, Timestamp: now,
		}
		if err := r.recorder.RecordOrderEvent(evt); err != nil {
			r.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("record close order event")
		}
	}

	if final {
		r.registry.Remove(pos.Symbol)
		if r.resetStrategy != nil {
			r.resetStrategy(pos.StrategyID, pos.Symbol)
		}
		return nil
	}

	remaining := pos
	remaining.SizeQty -= qty
	remaining.CostBasis -= costBasisLeg
	remaining.RealizedPnL += legPnL
	remaining.CurrentPrice = price
	r.registry.Update(remaining)
	return nil
}

func (r *Router) sellQty(ctx context.Context, symbol string, qty, price float64) (exchangeclient.OrderResult, error) {
	switch r.mode {
	case domain.ModePaper:
		return r.client.MarketOrderSell(ctx, symbol, qty)
	default:
		if r.cfg.UseLimitOrders {
			limitPrice := price * (1 + r.cfg.LimitBufferPct)
			return r.client.LimitOrderGTCSell(ctx, symbol, qty, limitPrice)
		}
		return r.client.MarketOrderSell(ctx, symbol, qty)
	}
}
