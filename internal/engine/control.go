package engine

import (
	"context"
	"fmt"

	"github.com/aristath/spotengine/internal/botstate"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/router"
)

// runControlTask drains the control surface's command queue (spec.md §5
// task 7, §6's closed command set): every command the coordinator pulls
// off is the only path that mutates live engine state from an external
// request, and every command gets exactly one Result and one audit
// record.
func (c *Coordinator) runControlTask(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case cmd := <-c.deps.ControlQueue.Commands():
			result := c.dispatchCommand(ctx, cmd)
			botstate.Resolve(cmd, result)
			if err := botstate.AuditEvent(c.deps.Recorder, cmd, result); err != nil {
				c.deps.Throttle.WarnErr("control_audit", err, "failed to append control audit event")
			}
		}
	}
}

func (c *Coordinator) dispatchCommand(ctx context.Context, cmd botstate.Command) botstate.Result {
	switch cmd.Type {
	case botstate.CmdPauseNewEntries:
		if err := c.deps.RuntimeStore.SetPauseNewEntries(true); err != nil {
			return botstate.Result{OK: false, Message: err.Error()}
		}
		return botstate.Result{OK: true, Message: "new entries paused"}

	case botstate.CmdResume:
		if err := c.deps.RuntimeStore.SetPauseNewEntries(false); err != nil {
			return botstate.Result{OK: false, Message: err.Error()}
		}
		return botstate.Result{OK: true, Message: "new entries resumed"}

	case botstate.CmdCloseSymbol:
		return c.closeSymbol(ctx, cmd.Symbol, cmd.Reason)

	case botstate.CmdCloseAll:
		return c.closeAll(ctx, cmd.Reason)

	case botstate.CmdUpdateConfig:
		return c.updateConfig(cmd.Config)

	case botstate.CmdToggleKillSwitch:
		return c.toggleKillSwitch(cmd.Reason)

	default:
		return botstate.Result{OK: false, Message: fmt.Sprintf("unknown command %q", cmd.Type)}
	}
}

func (c *Coordinator) closeSymbol(ctx context.Context, symbol, reason string) botstate.Result {
	pos, ok := c.deps.Registry.Get(symbol)
	if !ok {
		return botstate.Result{OK: false, Message: fmt.Sprintf("no open position for %s", symbol)}
	}
	price := c.lastClose(symbol)
	if err := c.deps.Router.Close(ctx, pos, price, router.ExitManual); err != nil {
		return botstate.Result{OK: false, Message: err.Error()}
	}
	return botstate.Result{OK: true, Message: fmt.Sprintf("closed %s: %s", symbol, reason)}
}

func (c *Coordinator) closeAll(ctx context.Context, reason string) botstate.Result {
	active := c.deps.Registry.ActivePositions()
	closed := 0
	for symbol, pos := range active {
		price := c.lastClose(symbol)
		if err := c.deps.Router.Close(ctx, pos, price, router.ExitManual); err != nil {
			c.deps.Throttle.WarnErr("close_all_"+symbol, err, "failed to close position during close_all")
			continue
		}
		closed++
	}
	return botstate.Result{OK: true, Message: fmt.Sprintf("closed %d/%d positions: %s", closed, len(active), reason)}
}

func (c *Coordinator) updateConfig(params map[string]any) botstate.Result {
	for name, raw := range params {
		v, ok := raw.(float64)
		if !ok {
			return botstate.Result{OK: false, Message: fmt.Sprintf("param %q: expected a number", name)}
		}
		if err := c.deps.RuntimeStore.UpdateParam(name, v, "control_queue"); err != nil {
			return botstate.Result{OK: false, Message: err.Error()}
		}
	}
	return botstate.Result{OK: true, Message: fmt.Sprintf("updated %d param(s)", len(params))}
}

func (c *Coordinator) toggleKillSwitch(reason string) botstate.Result {
	if c.deps.KillSwitch.Active() {
		c.deps.KillSwitch.Disengage()
		return botstate.Result{OK: true, Message: "kill switch disengaged"}
	}
	c.deps.KillSwitch.Engage(reason)
	return botstate.Result{OK: true, Message: "kill switch engaged: " + reason}
}

// lastClose is the most recent 1m close for symbol, used as the fill
// price for a manual close (no fresh feature computation needed).
func (c *Coordinator) lastClose(symbol string) float64 {
	buf := c.deps.Buffers.Buffer(symbol)
	last, ok := buf.Last(domain.TF1m)
	if !ok {
		return 0
	}
	return last.Close
}
