package events

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

// LogStream appends JSON lines to a date-rolled file under logs/<mode>/,
// matching spec.md §6's logs/<mode>/{trades,rejections,events}_YYYY-MM-DD.jsonl
// layout. One LogStream instance per stream name.
type LogStream struct {
	mu     sync.Mutex
	dir    string
	name   string // "trades", "rejections", "events"
	file   *os.File
	dateISO string
}

// NewLogStream opens (creating if needed) the stream file for today's date.
func NewLogStream(logsDir, name string) (*LogStream, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	ls := &LogStream{dir: logsDir, name: name}
	if err := ls.rollIfNeeded(time.Now().UTC()); err != nil {
		return nil, err
	}
	return ls, nil
}

func (ls *LogStream) rollIfNeeded(now time.Time) error {
	dateISO := now.Format("2006-01-02")
	if ls.file != nil && ls.dateISO == dateISO {
		return nil
	}
	if ls.file != nil {
		ls.file.Close()
	}
	path := fmt.Sprintf("%s/%s_%s.jsonl", ls.dir, ls.name, dateISO)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log stream %s: %w", path, err)
	}
	ls.file = f
	ls.dateISO = dateISO
	return nil
}

// Append writes v as one JSON line, rolling to a new date-stamped file if
// UTC midnight has passed since the last write.
func (ls *LogStream) Append(v any) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.rollIfNeeded(time.Now().UTC()); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	data = append(data, '\n')
	_, err = ls.file.Write(data)
	return err
}

// Close flushes and closes the underlying file handle.
func (ls *LogStream) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.file == nil {
		return nil
	}
	return ls.file.Close()
}

// Recorder bundles the three audit streams and publishes onto the bus so
// in-process subscribers (the control-surface websocket, tests) see events
// without re-reading the JSONL files.
type Recorder struct {
	Trades     *LogStream
	Rejections *LogStream
	Events     *LogStream
	bus        *Bus
}

// NewRecorder opens all three audit streams rooted at logsDir.
func NewRecorder(logsDir string, bus *Bus) (*Recorder, error) {
	trades, err := NewLogStream(logsDir, "trades")
	if err != nil {
		return nil, err
	}
	rejections, err := NewLogStream(logsDir, "rejections")
	if err != nil {
		return nil, err
	}
	evs, err := NewLogStream(logsDir, "events")
	if err != nil {
		return nil, err
	}
	return &Recorder{Trades: trades, Rejections: rejections, Events: evs, bus: bus}, nil
}

// RecordOrderEvent appends to trades.jsonl and publishes on the bus.
func (r *Recorder) RecordOrderEvent(e domain.OrderEvent) error {
	r.bus.Publish(OrderEventData{e})
	return r.Trades.Append(e)
}

// RecordRejection appends to rejections.jsonl and publishes on the bus.
func (r *Recorder) RecordRejection(rec domain.RejectionRecord) error {
	r.bus.Publish(RejectionData{rec})
	return r.Rejections.Append(rec)
}

// RecordEvent appends an arbitrary structured event to events.jsonl.
func (r *Recorder) RecordEvent(v any) error {
	return r.Events.Append(v)
}

// Close closes every underlying stream.
func (r *Recorder) Close() error {
	_ = r.Trades.Close()
	_ = r.Rejections.Close()
	return r.Events.Close()
}
