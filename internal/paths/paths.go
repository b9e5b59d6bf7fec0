// Package paths implements the mode-scoped filesystem layout (spec.md §4.2):
// all persistent state roots at data/<mode>/ and logs/<mode>/, every JSON
// write is atomic (temp file + fsync + rename), and in-process writers to
// the same file are serialized by a per-path mutex while cross-process
// writers are serialized by an exclusive flock around the rename.
package paths

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aristath/spotengine/internal/domain"
	"golang.org/x/sys/unix"
)

// Layout resolves every on-disk path for a given (root, mode) pair.
// Grounded on the teacher's mode-scoped data directory convention
// (internal/config/config.go's DataDir resolution), generalized from a
// single data dir to the paper/live split spec.md requires.
type Layout struct {
	Root string
	Mode domain.TradingMode
}

// New builds a Layout, resolving root to an absolute path.
func New(root string, mode domain.TradingMode) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve data root: %w", err)
	}
	return Layout{Root: abs, Mode: mode}, nil
}

func (l Layout) modeDir(base string) string {
	return filepath.Join(l.Root, base, string(l.Mode))
}

// DataDir is data/<mode>/.
func (l Layout) DataDir() string { return l.modeDir("data") }

// LogsDir is logs/<mode>/.
func (l Layout) LogsDir() string { return l.modeDir("logs") }

// CandlesDir is data/<mode>/candles/<safe-symbol>/.
func (l Layout) CandlesDir(symbol string) string {
	return filepath.Join(l.DataDir(), "candles", domain.SafeSymbol(symbol))
}

// CandleFile is data/<mode>/candles/<safe-symbol>/<tf>.jsonl.
func (l Layout) CandleFile(symbol string, tf domain.Timeframe) string {
	return filepath.Join(l.CandlesDir(symbol), string(tf)+".jsonl")
}

// RuntimeConfigFile is data/<mode>/runtime_config.json.
func (l Layout) RuntimeConfigFile() string { return filepath.Join(l.DataDir(), "runtime_config.json") }

// ConfigAuditFile is data/<mode>/config_audit.jsonl.
func (l Layout) ConfigAuditFile() string { return filepath.Join(l.DataDir(), "config_audit.jsonl") }

// PaperStateFile is data/<mode>/paper_state.json.
func (l Layout) PaperStateFile() string { return filepath.Join(l.DataDir(), "paper_state.json") }

// PositionsFile is data/<mode>/<mode>_positions.json.
func (l Layout) PositionsFile() string {
	return filepath.Join(l.DataDir(), string(l.Mode)+"_positions.json")
}

// DailyStatsFile is data/<mode>/<mode>_daily_stats.json.
func (l Layout) DailyStatsFile() string {
	return filepath.Join(l.DataDir(), string(l.Mode)+"_daily_stats.json")
}

// CooldownsFile is data/<mode>/<mode>_cooldowns.json.
func (l Layout) CooldownsFile() string {
	return filepath.Join(l.DataDir(), string(l.Mode)+"_cooldowns.json")
}

// StatusFile is data/<mode>/status.json.
func (l Layout) StatusFile() string { return filepath.Join(l.DataDir(), "status.json") }

// ProductInfoCacheFile is data/<mode>/product_info.cache (msgpack, not JSON —
// it is a rebuildable cache, not audited state).
func (l Layout) ProductInfoCacheFile() string {
	return filepath.Join(l.DataDir(), "product_info.cache")
}

// LogFile is logs/<mode>/<stream>_YYYY-MM-DD.jsonl for stream in
// {trades, rejections, events}.
func (l Layout) LogFile(stream, dateISO string) string {
	return filepath.Join(l.LogsDir(), fmt.Sprintf("%s_%s.jsonl", stream, dateISO))
}

// EnsureDirs creates every directory this layout roots, so callers never
// have to MkdirAll by hand.
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.DataDir(), l.LogsDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", d, err)
		}
	}
	return nil
}

// keyedMutex serializes in-process writers per file path. Cross-process
// safety additionally relies on flock around the rename (below), matching
// spec.md §4.2/§5's "Shared-resource policy".
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var fileLocks = &keyedMutex{locks: make(map[string]*sync.Mutex)}

func (k *keyedMutex) lockFor(path string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[path]
	if !ok {
		m = &sync.Mutex{}
		k.locks[path] = m
	}
	return m
}

// WriteJSONAtomic marshals v and writes it to path atomically: write to
// <path>.tmp in the same directory, fsync, flock the target for
// cross-process mutual exclusion, then rename over it.
func WriteJSONAtomic(path string, v any) error {
	m := fileLocks.lockFor(path)
	m.Lock()
	defer m.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}

	unlock, err := flockExclusive(path)
	if err != nil {
		return fmt.Errorf("flock %s: %w", path, err)
	}
	defer unlock()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file onto %s: %w", path, err)
	}
	return nil
}

// ReadJSON reads and unmarshals the JSON document at path into v. A missing
// file is not an error; v is left untouched and ok is false.
func ReadJSON(path string, v any) (ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return true, nil
}

// flockExclusive takes an exclusive advisory lock on a sidecar ".lock" file
// next to path, so independent processes serialize their writes even though
// each writes to a fresh temp file. Returns an unlock func.
func flockExclusive(path string) (func(), error) {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
