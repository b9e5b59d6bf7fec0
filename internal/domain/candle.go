package domain

import (
	"fmt"
	"math"
	"time"
)

// Candle is one OHLCV bar for a symbol at a given timeframe. Timestamps are
// always UTC and aligned to the timeframe boundary (minute/5-minute/hour/
// day). Candles are owned by the buffer they live in; copies are cheap.
type Candle struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Valid enforces the candle invariant from spec.md §3:
// low <= {open,close} <= high, volume >= 0.
func (c Candle) Valid() bool {
	if c.Volume < 0 {
		return false
	}
	if c.Low > c.Open || c.Open > c.High {
		return false
	}
	if c.Low > c.Close || c.Close > c.High {
		return false
	}
	return true
}

// Green reports whether the candle closed above its open.
func (c Candle) Green() bool {
	return c.Close > c.Open
}

// TrueRange computes the candle's true range against the previous close,
// used by ATR. When prev is the zero Candle (no previous bar), it falls
// back to high-low.
func (c Candle) TrueRange(prev Candle) float64 {
	if prev.Timestamp.IsZero() {
		return c.High - c.Low
	}
	hl := c.High - c.Low
	hc := math.Abs(c.High - prev.Close)
	lc := math.Abs(c.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// StoredCandle is the on-disk JSONL form of a Candle: one line per candle
// under <root>/<mode>/candles/<safe-symbol>/<tf>.jsonl.
type StoredCandle struct {
	Timestamp time.Time    `json:"ts"`
	Open      float64      `json:"open"`
	High      float64      `json:"high"`
	Low       float64      `json:"low"`
	Close     float64      `json:"close"`
	Volume    float64      `json:"volume"`
	Timeframe Timeframe    `json:"tf"`
	Source    CandleSource `json:"source"`
}

// ToCandle drops the persistence-only fields (timeframe, source).
func (s StoredCandle) ToCandle() Candle {
	return Candle{
		Timestamp: s.Timestamp,
		Open:      s.Open,
		High:      s.High,
		Low:       s.Low,
		Close:     s.Close,
		Volume:    s.Volume,
	}
}

// NewStoredCandle builds the on-disk form of c for the given timeframe/source.
func NewStoredCandle(c Candle, tf Timeframe, source CandleSource) StoredCandle {
	return StoredCandle{
		Timestamp: c.Timestamp,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Timeframe: tf,
		Source:    source,
	}
}

// SafeSymbol maps a symbol to its filesystem-safe form: "/" and ":" become
// "-", as required for the candles/<symbol-safe>/ directory layout.
func SafeSymbol(symbol string) string {
	out := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		switch r {
		case '/', ':':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// FiniteFloat coerces non-finite values (NaN, +/-Inf) to 0.0. Downstream
// strategies and the feature engine rely on every feature value being
// finite (spec.md §4.7); this is the single choke point that guarantees it.
func FiniteFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.0
	}
	return v
}

// TimeframeDuration returns the wall-clock period of a timeframe.
func TimeframeDuration(tf Timeframe) time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF1h:
		return time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// AlignTimestamp truncates t down to the start of its timeframe bucket, UTC.
func AlignTimestamp(t time.Time, tf Timeframe) time.Time {
	t = t.UTC()
	d := TimeframeDuration(tf)
	if d == 0 {
		return t
	}
	return t.Truncate(d)
}

// String implements fmt.Stringer for readable log fields.
func (c Candle) String() string {
	return fmt.Sprintf("Candle{%s O:%.4f H:%.4f L:%.4f C:%.4f V:%.4f}",
		c.Timestamp.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
}
