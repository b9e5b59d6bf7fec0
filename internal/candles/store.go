package candles

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/rs/zerolog"
)

// Store is the append-only JSONL candle archive rooted at
// data/<mode>/candles/<symbol>/<tf>.jsonl (spec.md §4.2/§4.3). Appends are
// serialized per file; reads stream the file rather than holding the
// whole history in memory, since 1m history for a wide watchlist can run
// to millions of lines over the engine's lifetime.
type Store struct {
	layout paths.Layout
	mu     sync.Mutex
	log    zerolog.Logger
}

// NewStore creates a Store rooted at layout.
func NewStore(layout paths.Layout, log zerolog.Logger) *Store {
	return &Store{layout: layout, log: log.With().Str("component", "candle_store").Logger()}
}

// WriteCandle appends a single candle to symbol's tf file. Invalid candles
// (domain.Candle.Valid() false) are silently dropped, matching spec.md
// §4.3's "write_candle drops invalid input rather than erroring the
// caller's hot path".
func (s *Store) WriteCandle(symbol string, tf domain.Timeframe, source domain.CandleSource, c domain.Candle) error {
	if !c.Valid() {
		s.log.Warn().Str("symbol", symbol).Msg("dropping invalid candle")
		return nil
	}
	return s.WriteCandles(symbol, tf, source, []domain.Candle{c})
}

// WriteCandles appends a batch of candles to symbol's tf file, dropping
// any invalid entries. An empty or all-invalid batch is a no-op.
func (s *Store) WriteCandles(symbol string, tf domain.Timeframe, source domain.CandleSource, cs []domain.Candle) error {
	var lines [][]byte
	for _, c := range cs {
		if !c.Valid() {
			continue
		}
		sc := domain.NewStoredCandle(c, tf, source)
		data, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("marshal candle for %s/%s: %w", symbol, tf, err)
		}
		lines = append(lines, append(data, '\n'))
	}
	if len(lines) == 0 {
		return nil
	}

	path := s.layout.CandleFile(symbol, tf)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create candles dir for %s: %w", symbol, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open candle file %s: %w", path, err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.Write(line); err != nil {
			return fmt.Errorf("append candle to %s: %w", path, err)
		}
	}
	return nil
}

// LoadCandles streams symbol's tf file and returns the candles newer than
// maxAgeHours (0 means no age filter), deduped by timestamp (first record
// wins — matching append-order, since later WS revisions of an
// already-closed bar are not expected), sorted ascending by timestamp, and
// truncated to at most maxCount entries (0 means no count limit, keeping
// the most recent maxCount after truncation).
func (s *Store) LoadCandles(symbol string, tf domain.Timeframe, maxAgeHours int, maxCount int) ([]domain.Candle, error) {
	path := s.layout.CandleFile(symbol, tf)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open candle file %s: %w", path, err)
	}
	defer f.Close()

	var cutoff time.Time
	if maxAgeHours > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(maxAgeHours) * time.Hour)
	}

	seen := make(map[int64]struct{})
	var out []domain.StoredCandle

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sc domain.StoredCandle
		if err := json.Unmarshal(line, &sc); err != nil {
			s.log.Warn().Str("symbol", symbol).Err(err).Msg("skipping malformed candle line")
			continue
		}
		if !cutoff.IsZero() && sc.Timestamp.Before(cutoff) {
			continue
		}
		key := sc.Timestamp.Unix()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, sc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan candle file %s: %w", path, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	if maxCount > 0 && len(out) > maxCount {
		out = out[len(out)-maxCount:]
	}

	candles := make([]domain.Candle, len(out))
	for i, sc := range out {
		candles[i] = sc.ToCandle()
	}
	return candles, nil
}

// RehydrateBuffers seeds a CandleBuffer per symbol for 1m and 5m
// timeframes from on-disk history, so the engine doesn't start cold after
// a restart (spec.md §4.3/§5 startup sequence).
func (s *Store) RehydrateBuffers(symbols []string, maxAgeHours int) (map[string]*CandleBuffer, error) {
	buffers := make(map[string]*CandleBuffer, len(symbols))
	for _, symbol := range symbols {
		buf := NewCandleBuffer(symbol)
		for _, tf := range []domain.Timeframe{domain.TF1m, domain.TF5m} {
			cs, err := s.LoadCandles(symbol, tf, maxAgeHours, maxBufferLen)
			if err != nil {
				return nil, fmt.Errorf("rehydrate %s/%s: %w", symbol, tf, err)
			}
			for _, c := range cs {
				buf.Push(tf, c)
			}
		}
		buffers[symbol] = buf
	}
	return buffers, nil
}
