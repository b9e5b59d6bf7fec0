package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/paths"
	"github.com/rs/zerolog"
)

// RuntimeConfig is the live-mutable, whitelisted subset of tunables
// described in spec.md §4.1/§9 ("Dynamic config objects → whitelisted
// schema"). All fields here are stored in the unit the settings field uses
// internally (fractions 0..1 for percentages), never the UI's 0..100 form.
type RuntimeConfig struct {
	PauseNewEntries  bool    `json:"pause_new_entries"`
	EntryScoreMin    float64 `json:"entry_score_min"`
	MaxTradeUSD      float64 `json:"max_trade_usd"`
	DailyMaxLossUSD  float64 `json:"daily_max_loss_usd"`
	SpreadMaxBps     float64 `json:"spread_max_bps"`
	PositionBasePct  float64 `json:"position_base_pct"`
	MinRRRatio       float64 `json:"min_rr_ratio"`
	StackingEnabled  bool    `json:"stacking_enabled"`
	WhitelistEnabled bool    `json:"whitelist_enabled"`
	Whitelist        []string `json:"whitelist"`
}

// paramSpec describes one whitelisted, runtime-updatable parameter: how to
// validate an incoming value and how to apply it to a RuntimeConfig.
type paramSpec struct {
	// validate checks the raw incoming value (already unit-converted).
	validate func(v float64) error
	// apply writes the validated value into cfg.
	apply func(cfg *RuntimeConfig, v float64)
	// fromUI converts a UI-facing value (e.g. percent 0-100) into the
	// internal unit (fraction 0-1). Identity for non-percentage params.
	fromUI func(v float64) float64
}

// paramSchema is the closed whitelist: unknown parameter names are
// rejected by Store.UpdateParam.
var paramSchema = map[string]paramSpec{
	"entry_score_min": {
		validate: rangeValidator(0, 100),
		apply:    func(c *RuntimeConfig, v float64) { c.EntryScoreMin = v },
		fromUI:   identity,
	},
	"max_trade_usd": {
		validate: positiveValidator,
		apply:    func(c *RuntimeConfig, v float64) { c.MaxTradeUSD = v },
		fromUI:   identity,
	},
	"daily_max_loss_usd": {
		validate: positiveValidator,
		apply:    func(c *RuntimeConfig, v float64) { c.DailyMaxLossUSD = v },
		fromUI:   identity,
	},
	"spread_max_bps": {
		validate: rangeValidator(0, 1000),
		apply:    func(c *RuntimeConfig, v float64) { c.SpreadMaxBps = v },
		fromUI:   identity,
	},
	"position_base_pct": {
		validate: rangeValidator(0, 1),
		apply:    func(c *RuntimeConfig, v float64) { c.PositionBasePct = v },
		fromUI:   percentToFraction, // UI sends 0-100, stored as 0-1
	},
	"min_rr_ratio": {
		validate: minValidator(1.0),
		apply:    func(c *RuntimeConfig, v float64) { c.MinRRRatio = v },
		fromUI:   identity,
	},
}

func identity(v float64) float64 { return v }
func percentToFraction(v float64) float64 { return v / 100.0 }

func rangeValidator(lo, hi float64) func(float64) error {
	return func(v float64) error {
		if v < lo || v > hi {
			return fmt.Errorf("value %v out of range [%v, %v]", v, lo, hi)
		}
		return nil
	}
}

func positiveValidator(v float64) error {
	if v <= 0 {
		return fmt.Errorf("value %v must be > 0", v)
	}
	return nil
}

func minValidator(min float64) func(float64) error {
	return func(v float64) error {
		if v < min {
			return fmt.Errorf("value %v must be >= %v", v, min)
		}
		return nil
	}
}

// auditEntry is one line of the config_audit.jsonl append-only trail.
type auditEntry struct {
	Timestamp time.Time `json:"ts"`
	Param     string    `json:"param"`
	Value     float64   `json:"value"`
	Source    string    `json:"source"`
}

// ChangeCallback is invoked (outside the Store's lock) after a parameter
// update is durably persisted.
type ChangeCallback func(param string, value float64, source string)

// Store owns the live RuntimeConfig, persists it atomically, appends to the
// audit log, and fans changes out to registered callbacks — the
// channel-broadcast replacement for observer patterns spec.md §9 calls for,
// realized here as a slice of callbacks invoked synchronously after a
// successful write (simpler than a channel when there is exactly one
// writer and the update rate is low, which holds for runtime config).
type Store struct {
	mu        sync.RWMutex
	cfg       RuntimeConfig
	path      string
	auditPath string
	mtime     time.Time
	callbacks []ChangeCallback
	log       zerolog.Logger
}

// NewStore loads the runtime config from disk (or seeds defaults from seed),
// returning a Store ready for Get/UpdateParam calls.
func NewStore(layout interface {
	RuntimeConfigFile() string
	ConfigAuditFile() string
}, seed *Settings, log zerolog.Logger) (*Store, error) {
	st := &Store{
		path:      layout.RuntimeConfigFile(),
		auditPath: layout.ConfigAuditFile(),
		log:       log.With().Str("component", "runtime_config_store").Logger(),
		cfg: RuntimeConfig{
			EntryScoreMin:   seed.EntryScoreMin,
			MaxTradeUSD:     seed.MaxTradeUSD,
			DailyMaxLossUSD: seed.DailyMaxLossUSD,
			SpreadMaxBps:    seed.SpreadMaxBps,
			PositionBasePct: seed.PositionBasePct,
			MinRRRatio:      seed.MinRRRatio,
			StackingEnabled: seed.StackingEnabled,
		},
	}

	var loaded RuntimeConfig
	ok, err := paths.ReadJSON(st.path, &loaded)
	if err != nil {
		return nil, fmt.Errorf("load runtime config: %w", err)
	}
	if ok {
		st.cfg = loaded
	}
	if fi, err := os.Stat(st.path); err == nil {
		st.mtime = fi.ModTime()
	}
	return st, nil
}

// Get returns a copy of the current runtime config snapshot.
func (s *Store) Get() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// OnChange registers a callback fired after every successful UpdateParam.
func (s *Store) OnChange(cb ChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// UpdateParam validates, applies, and durably persists a single whitelisted
// parameter, then fires change callbacks. Unknown names are rejected.
func (s *Store) UpdateParam(name string, rawValue float64, source string) error {
	spec, ok := paramSchema[name]
	if !ok {
		return fmt.Errorf("unknown runtime config parameter %q", name)
	}
	value := spec.fromUI(rawValue)
	if err := spec.validate(value); err != nil {
		return fmt.Errorf("invalid value for %q: %w", name, err)
	}

	s.mu.Lock()
	spec.apply(&s.cfg, value)
	snapshot := s.cfg
	s.mu.Unlock()

	if err := paths.WriteJSONAtomic(s.path, snapshot); err != nil {
		return fmt.Errorf("persist runtime config: %w", err)
	}
	if err := s.appendAudit(name, value, source); err != nil {
		s.log.Warn().Err(err).Str("param", name).Msg("failed to append config audit entry")
	}

	s.mu.RLock()
	cbs := append([]ChangeCallback(nil), s.callbacks...)
	s.mu.RUnlock()
	for _, cb := range cbs {
		cb(name, value, source)
	}
	return nil
}

// SetPauseNewEntries is a convenience setter for the bool-valued control
// command (not part of the numeric whitelist schema, but still persisted
// atomically through the same Store).
func (s *Store) SetPauseNewEntries(pause bool) error {
	s.mu.Lock()
	s.cfg.PauseNewEntries = pause
	snapshot := s.cfg
	s.mu.Unlock()
	return paths.WriteJSONAtomic(s.path, snapshot)
}

func (s *Store) appendAudit(param string, value float64, source string) error {
	f, err := os.OpenFile(s.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	entry := auditEntry{Timestamp: time.Now().UTC(), Param: param, Value: value, Source: source}
	data, err := marshalLine(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

// ReloadIfChanged re-reads the runtime config file if its mtime has
// advanced since the last load, applying it in place. Callbacks registered
// with OnChange are not fired on reload. Lets independent processes
// sharing the same data dir converge without a file-watcher dependency.
func (s *Store) ReloadIfChanged() (bool, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !fi.ModTime().After(s.mtime) {
		return false, nil
	}
	return true, s.ReloadFromDisk(true)
}

// ReloadFromDisk re-reads the file unconditionally when force is true;
// otherwise only when its mtime has advanced since the last load.
func (s *Store) ReloadFromDisk(force bool) error {
	if !force {
		if fi, err := os.Stat(s.path); err == nil && !fi.ModTime().After(s.mtime) {
			return nil
		}
	}
	var loaded RuntimeConfig
	ok, err := paths.ReadJSON(s.path, &loaded)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.cfg = loaded
	s.mu.Unlock()
	if fi, err := os.Stat(s.path); err == nil {
		s.mtime = fi.ModTime()
	}
	return nil
}
