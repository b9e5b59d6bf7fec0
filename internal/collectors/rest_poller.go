package collectors

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/rs/zerolog"
)

// maxInFlight bounds concurrent REST fetches per spec.md §5's "bounded
// concurrency (e.g. 4 in-flight requests)".
const maxInFlight = 4

// minAPIDelay is the floor api_delay backs off to once rest_rate_degraded
// is set (spec.md §4.5).
const minAPIDelay = 300 * time.Millisecond

// CandleFetcher is the REST surface the poller needs: bulk candle fetch
// for one symbol/timeframe, already time-ordered ascending. A 429 is
// surfaced as a RateLimitError.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Candle, error)
}

// RateLimitError signals the exchange responded 429; the poller treats
// it as transient and slows its loop.
type RateLimitError struct{ Symbol string }

func (e *RateLimitError) Error() string { return fmt.Sprintf("rate limited fetching %s", e.Symbol) }

// Scheduler is the subset of tiering.Scheduler the poller drives off.
type Scheduler interface {
	GetSymbolsNeedingPoll(now time.Time) (tier2Due, tier3Due []string)
	RecordPoll(symbol string, c1m, c5m int, now time.Time)
}

// Stats exposes the poller's running rate-limit/throughput counters.
type Stats struct {
	RESTRequests      int
	REST429s          int
	RateDegraded      bool
}

// RESTPoller wakes up on its own ticker, asks the scheduler for due
// symbols, and fetches+validates+stores candles for each with bounded
// concurrency.
type RESTPoller struct {
	fetcher   CandleFetcher
	scheduler Scheduler
	bufs      BufferStore
	log       zerolog.Logger

	mu        sync.Mutex
	stats     Stats
	apiDelay  time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewRESTPoller wires a poller around its collaborators.
func NewRESTPoller(fetcher CandleFetcher, scheduler Scheduler, bufs BufferStore, log zerolog.Logger) *RESTPoller {
	return &RESTPoller{
		fetcher:   fetcher,
		scheduler: scheduler,
		bufs:      bufs,
		log:       log.With().Str("component", "rest_poller").Logger(),
		stopChan:  make(chan struct{}),
	}
}

// StatsSnapshot returns a copy of the running counters.
func (p *RESTPoller) StatsSnapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Start runs the poll loop on the given tick interval until Stop is
// called or ctx is cancelled.
func (p *RESTPoller) Start(ctx context.Context, tick time.Duration) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.pollOnce(ctx)
			}
		}
	}()
}

func (p *RESTPoller) currentDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apiDelay
}

func (p *RESTPoller) pollOnce(ctx context.Context) {
	now := time.Now().UTC()
	tier2Due, tier3Due := p.scheduler.GetSymbolsNeedingPoll(now)

	jobs := make([]pollJob, 0, len(tier2Due)+len(tier3Due))
	for _, s := range tier2Due {
		jobs = append(jobs, pollJob{symbol: s, tf: domain.TF1m})
	}
	for _, s := range tier3Due {
		jobs = append(jobs, pollJob{symbol: s, tf: domain.TF1m})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].symbol < jobs[j].symbol })

	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(job pollJob) {
			defer wg.Done()
			defer func() { <-sem }()
			if delay := p.currentDelay(); delay > 0 {
				time.Sleep(delay)
			}
			p.fetchOne(ctx, job, now)
		}(job)
	}
	wg.Wait()
}

type pollJob struct {
	symbol string
	tf     domain.Timeframe
}

func (p *RESTPoller) fetchOne(ctx context.Context, job pollJob, now time.Time) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	candles, err := p.fetcher.FetchCandles(reqCtx, job.symbol, job.tf)

	p.mu.Lock()
	p.stats.RESTRequests++
	p.mu.Unlock()

	if err != nil {
		var rl *RateLimitError
		if isRateLimit(err, &rl) {
			p.mu.Lock()
			p.stats.REST429s++
			p.stats.RateDegraded = true
			p.apiDelay = minAPIDelay
			p.mu.Unlock()
			p.log.Warn().Str("symbol", job.symbol).Msg("rate limited, slowing poll loop")
			return
		}
		p.log.Warn().Err(err).Str("symbol", job.symbol).Msg("candle fetch failed, treating as soft failure")
		return
	}

	valid := validateCandles(candles)
	if len(valid) == 0 {
		return
	}

	buf := p.bufs.Buffer(job.symbol)
	for _, c := range valid {
		buf.Push(job.tf, c)
	}
	if err := p.bufs.WriteCandle(job.symbol, job.tf, domain.SourceREST, valid[len(valid)-1]); err != nil {
		p.log.Warn().Err(err).Str("symbol", job.symbol).Msg("failed to persist rest candle")
	}

	p.scheduler.RecordPoll(job.symbol, buf.Len(domain.TF1m), buf.Len(domain.TF5m), now)
}

func isRateLimit(err error, target **RateLimitError) bool {
	rl, ok := err.(*RateLimitError)
	if ok {
		*target = rl
	}
	return ok
}

// validateCandles enforces spec.md §4.5's contract: must be time-ordered
// ascending and non-empty; out-of-order or non-finite entries are
// dropped rather than rejecting the whole batch.
func validateCandles(cs []domain.Candle) []domain.Candle {
	var out []domain.Candle
	var lastTS time.Time
	for _, c := range cs {
		if !c.Valid() {
			continue
		}
		finite := true
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if domain.FiniteFloat(v) != v {
				finite = false
			}
		}
		if !finite {
			continue
		}
		if !lastTS.IsZero() && !c.Timestamp.After(lastTS) {
			continue
		}
		out = append(out, c)
		lastTS = c.Timestamp
	}
	return out
}

// Stop signals the poll loop to exit and waits for it to finish.
func (p *RESTPoller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}
