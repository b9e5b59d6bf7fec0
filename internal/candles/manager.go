package candles

import (
	"sync"

	"github.com/aristath/spotengine/internal/domain"
)

// BufferManager owns the per-symbol CandleBuffer set and the Store that
// backs it, giving collectors a single dependency that both reads/writes
// in-memory buffers and appends to the on-disk JSONL archive.
type BufferManager struct {
	mu      sync.RWMutex
	store   *Store
	buffers map[string]*CandleBuffer
}

// NewBufferManager creates a manager backed by store.
func NewBufferManager(store *Store) *BufferManager {
	return &BufferManager{store: store, buffers: make(map[string]*CandleBuffer)}
}

// Buffer returns (creating if needed) the CandleBuffer for symbol.
func (m *BufferManager) Buffer(symbol string) *CandleBuffer {
	m.mu.RLock()
	buf, ok := m.buffers[symbol]
	m.mu.RUnlock()
	if ok {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if buf, ok := m.buffers[symbol]; ok {
		return buf
	}
	buf = NewCandleBuffer(symbol)
	m.buffers[symbol] = buf
	return buf
}

// Seed installs a pre-built buffer (e.g. from RehydrateBuffers) for
// symbol, replacing any existing one.
func (m *BufferManager) Seed(symbol string, buf *CandleBuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[symbol] = buf
}

// WriteCandle persists c through the underlying Store.
func (m *BufferManager) WriteCandle(symbol string, tf domain.Timeframe, source domain.CandleSource, c domain.Candle) error {
	return m.store.WriteCandle(symbol, tf, source, c)
}

// Symbols returns every symbol currently tracked in memory.
func (m *BufferManager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.buffers))
	for symbol := range m.buffers {
		out = append(out, symbol)
	}
	return out
}
