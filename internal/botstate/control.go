package botstate

import (
	"fmt"

	"github.com/aristath/spotengine/internal/events"
)

// CommandType is the closed set of external control commands (spec.md
// §6): "{pause_new_entries, resume, close_symbol(symbol, reason),
// close_all(reason), update_config({param: value}), toggle_kill_switch}".
type CommandType string

const (
	CmdPauseNewEntries CommandType = "pause_new_entries"
	CmdResume          CommandType = "resume"
	CmdCloseSymbol     CommandType = "close_symbol"
	CmdCloseAll        CommandType = "close_all"
	CmdUpdateConfig    CommandType = "update_config"
	CmdToggleKillSwitch CommandType = "toggle_kill_switch"
)

// Command is one request from the external control surface. reply is
// unexported so callers can never bypass Enqueue and must go through the
// queue the coordinator actually drains (spec.md §5 "never mutates state
// inline from a request handler").
type Command struct {
	Type   CommandType
	Symbol string
	Reason string
	Config map[string]any

	reply chan Result
}

// Result is the structured outcome a processed Command resolves to.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Queue is the typed command channel between the control surface (HTTP
// handlers, §6) and the coordinator task that is the sole mutator of
// BotState/engine components. Enqueue blocks while the buffer is full;
// once it has returned, callers bound their wait for the Result on the
// returned channel themselves.
type Queue struct {
	ch chan Command
}

// NewQueue creates a Queue with the given buffer depth.
func NewQueue(buffer int) *Queue {
	return &Queue{ch: make(chan Command, buffer)}
}

// Enqueue submits cmd and returns a channel that receives exactly one
// Result once the coordinator processes it.
func (q *Queue) Enqueue(cmd Command) <-chan Result {
	cmd.reply = make(chan Result, 1)
	q.ch <- cmd
	return cmd.reply
}

// Commands returns the channel the coordinator drains; callers select on
// it alongside their own cancellation.
func (q *Queue) Commands() <-chan Command {
	return q.ch
}

// Resolve sends result back to whoever called Enqueue for cmd. Every
// command the coordinator pulls off Commands() must call Resolve exactly
// once, or the original caller's channel blocks forever.
func Resolve(cmd Command, result Result) {
	if cmd.reply != nil {
		cmd.reply <- result
	}
}

// AuditEvent records the processed command to the events audit stream
// (spec.md §6 "Each returns a structured result and is appended to the
// audit log").
func AuditEvent(recorder *events.Recorder, cmd Command, result Result) error {
	data := events.ControlData{
		Command: string(cmd.Type),
		Args:    commandArgs(cmd),
		OK:      result.OK,
		Message: result.Message,
	}
	return recorder.RecordEvent(data)
}

func commandArgs(cmd Command) map[string]any {
	args := make(map[string]any)
	if cmd.Symbol != "" {
		args["symbol"] = cmd.Symbol
	}
	if cmd.Reason != "" {
		args["reason"] = cmd.Reason
	}
	for k, v := range cmd.Config {
		args[fmt.Sprintf("config.%s", k)] = v
	}
	return args
}
