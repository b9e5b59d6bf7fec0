package collectors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/exchangeclient"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBufferStore is an in-memory BufferStore for tests.
type fakeBufferStore struct {
	mu      sync.Mutex
	buffers map[string]*candles.CandleBuffer
	writes  int
}

func newFakeBufferStore() *fakeBufferStore {
	return &fakeBufferStore{buffers: make(map[string]*candles.CandleBuffer)}
}

func (f *fakeBufferStore) Buffer(symbol string) *candles.CandleBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf, ok := f.buffers[symbol]
	if !ok {
		buf = candles.NewCandleBuffer(symbol)
		f.buffers[symbol] = buf
	}
	return buf
}

func (f *fakeBufferStore) WriteCandle(symbol string, tf domain.Timeframe, source domain.CandleSource, c domain.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return nil
}

// fakeTierUpdater records UpdateCandleCounts/RecordPoll calls.
type fakeTierUpdater struct {
	mu      sync.Mutex
	updates int
	polls   int
}

func (f *fakeTierUpdater) UpdateCandleCounts(symbol string, c1m, c5m int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
}

func (f *fakeTierUpdater) RecordPoll(symbol string, c1m, c5m int, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
}

// fakeStream is a minimal exchangeclient.CandleStream for WSCollector tests.
type fakeStream struct {
	out chan exchangeclient.StreamCandle
}

func newFakeStream() *fakeStream { return &fakeStream{out: make(chan exchangeclient.StreamCandle, 16)} }

func (f *fakeStream) UpdateSymbols(symbols []string) error                    { return nil }
func (f *fakeStream) Candles() <-chan exchangeclient.StreamCandle            { return f.out }
func (f *fakeStream) Start(ctx context.Context) error                       { return nil }
func (f *fakeStream) Stop() error                                           { close(f.out); return nil }
func (f *fakeStream) LastMsgAge() time.Duration                             { return 0 }
func (f *fakeStream) ReconnectCount() int                                   { return 0 }

func TestWSCollector_IngestsAndUpdatesTierCounts(t *testing.T) {
	bufs := newFakeBufferStore()
	tiers := &fakeTierUpdater{}
	stream := newFakeStream()
	collector := NewWSCollector(stream, bufs, tiers, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, collector.Start(ctx))

	stream.out <- exchangeclient.StreamCandle{
		Symbol:    "BTC-USD",
		Timeframe: "1m",
		Candle: exchangeclient.OHLCV{
			Timestamp: time.Now().UTC(), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 5,
		},
	}

	require.Eventually(t, func() bool {
		return bufs.Buffer("BTC-USD").Len(domain.TF1m) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, bufs.writes)
}

func TestWSCollector_DropsInvalidCandle(t *testing.T) {
	bufs := newFakeBufferStore()
	tiers := &fakeTierUpdater{}
	stream := newFakeStream()
	collector := NewWSCollector(stream, bufs, tiers, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, collector.Start(ctx))

	stream.out <- exchangeclient.StreamCandle{
		Symbol:    "BAD-USD",
		Timeframe: "1m",
		Candle:    exchangeclient.OHLCV{Timestamp: time.Now().UTC(), Open: 100, High: 90, Low: 99, Close: 100, Volume: 1},
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, bufs.Buffer("BAD-USD").Len(domain.TF1m))
}

// fakeFetcher returns canned candles or an error per symbol.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
	cs    []domain.Candle
}

func (f *fakeFetcher) FetchCandles(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cs, nil
}

// fakeScheduler is a minimal Scheduler for RESTPoller tests.
type fakeScheduler struct {
	tier2, tier3 []string
	recorded     []string
}

func (s *fakeScheduler) GetSymbolsNeedingPoll(now time.Time) (tier2Due, tier3Due []string) {
	return s.tier2, s.tier3
}
func (s *fakeScheduler) RecordPoll(symbol string, c1m, c5m int, now time.Time) {
	s.recorded = append(s.recorded, symbol)
}

func TestRESTPoller_PollOnce_WritesValidCandles(t *testing.T) {
	base := time.Now().UTC().Add(-time.Minute)
	fetcher := &fakeFetcher{cs: []domain.Candle{
		{Timestamp: base, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: base.Add(time.Minute), Open: 100, High: 102, Low: 100, Close: 101, Volume: 2},
	}}
	sched := &fakeScheduler{tier2: []string{"BTC-USD"}}
	bufs := newFakeBufferStore()

	poller := NewRESTPoller(fetcher, sched, bufs, zerolog.Nop())
	poller.pollOnce(context.Background())

	assert.Equal(t, 2, bufs.Buffer("BTC-USD").Len(domain.TF1m))
	assert.Contains(t, sched.recorded, "BTC-USD")
}

func TestRESTPoller_PollOnce_RateLimitSetsDegraded(t *testing.T) {
	fetcher := &fakeFetcher{err: &RateLimitError{Symbol: "BTC-USD"}}
	sched := &fakeScheduler{tier2: []string{"BTC-USD"}}
	bufs := newFakeBufferStore()

	poller := NewRESTPoller(fetcher, sched, bufs, zerolog.Nop())
	poller.pollOnce(context.Background())

	stats := poller.StatsSnapshot()
	assert.True(t, stats.RateDegraded)
	assert.Equal(t, 1, stats.REST429s)
}

func TestValidateCandles_DropsOutOfOrder(t *testing.T) {
	base := time.Now().UTC()
	cs := []domain.Candle{
		{Timestamp: base, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: base.Add(-time.Minute), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}, // out of order
		{Timestamp: base.Add(time.Minute), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
	}
	valid := validateCandles(cs)
	require.Len(t, valid, 2)
}
