package exchangeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// Reconnection tuning, grounded on the teacher's
// internal/clients/tradernet/websocket_client.go constants.
const (
	wsWriteWait            = 10 * time.Second
	wsDialTimeout          = 30 * time.Second
	wsBaseReconnectDelay   = 5 * time.Second
	wsMaxReconnectDelay    = 5 * time.Minute
	wsMaxReconnectAttempts = 10
)

// CoinbaseCandleStream implements CandleStream against a Coinbase
// Advanced Trade-shaped WS candle channel. Grounded on the teacher's
// MarketStatusWebSocket (nhooyr.io/websocket dial + context-cancel +
// exponential-backoff reconnect loop), generalized from market-status
// messages to candle messages and JWT-signed subscribe frames.
type CoinbaseCandleStream struct {
	url    string
	signer *JWTSigner
	log    zerolog.Logger

	mu           sync.RWMutex
	conn         *websocket.Conn
	connected    bool
	reconnecting bool
	stopped      bool
	stopChan     chan struct{}

	symbols map[string]struct{}

	lastMsgTime    time.Time
	reconnectCount int

	out chan StreamCandle
}

// NewCoinbaseCandleStream creates a stream bound to url, signing
// subscribe frames with signer.
func NewCoinbaseCandleStream(url string, signer *JWTSigner, log zerolog.Logger) *CoinbaseCandleStream {
	return &CoinbaseCandleStream{
		url:      url,
		signer:   signer,
		log:      log.With().Str("component", "candle_ws_stream").Logger(),
		symbols:  make(map[string]struct{}),
		stopChan: make(chan struct{}),
		out:      make(chan StreamCandle, 256),
	}
}

// Candles implements CandleStream.
func (s *CoinbaseCandleStream) Candles() <-chan StreamCandle { return s.out }

// UpdateSymbols diffs against the current subscription set and issues
// subscribe/unsubscribe frames for the delta, deduplicating the input.
func (s *CoinbaseCandleStream) UpdateSymbols(symbols []string) error {
	wanted := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		wanted[sym] = struct{}{}
	}

	s.mu.Lock()
	var toAdd, toRemove []string
	for sym := range wanted {
		if _, ok := s.symbols[sym]; !ok {
			toAdd = append(toAdd, sym)
		}
	}
	for sym := range s.symbols {
		if _, ok := wanted[sym]; !ok {
			toRemove = append(toRemove, sym)
		}
	}
	s.symbols = wanted
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil // applied once Start() connects
	}
	if len(toRemove) > 0 {
		if err := s.sendSubscribe(conn, "unsubscribe", toRemove); err != nil {
			return err
		}
	}
	if len(toAdd) > 0 {
		if err := s.sendSubscribe(conn, "subscribe", toAdd); err != nil {
			return err
		}
	}
	return nil
}

type subscribeFrame struct {
	Type       string   `json:"type"`
	Channel    string   `json:"channel"`
	ProductIDs []string `json:"product_ids"`
	JWT        string   `json:"jwt"`
}

func (s *CoinbaseCandleStream) sendSubscribe(conn *websocket.Conn, frameType string, symbols []string) error {
	token, err := s.signer.SignWS()
	if err != nil {
		return fmt.Errorf("sign ws jwt: %w", err)
	}
	frame := subscribeFrame{Type: frameType, Channel: "candles", ProductIDs: symbols, JWT: token}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", frameType, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteWait)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Start dials the WS endpoint and begins the read loop; on failure it
// kicks off the reconnect loop in the background rather than returning an
// error the caller must retry itself.
func (s *CoinbaseCandleStream) Start(ctx context.Context) error {
	if err := s.connect(); err != nil {
		s.log.Warn().Err(err).Msg("initial candle stream connection failed, retrying in background")
		go s.reconnectLoop()
		return nil
	}
	go s.readLoop(context.Background())
	return nil
}

func (s *CoinbaseCandleStream) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial candle stream: %w", err)
	}
	s.conn = conn
	s.connected = true
	s.lastMsgTime = time.Now()

	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	if len(symbols) > 0 {
		if err := s.sendSubscribe(conn, "subscribe", symbols); err != nil {
			conn.Close(websocket.StatusNormalClosure, "subscribe failed")
			s.conn = nil
			s.connected = false
			return err
		}
	}
	return nil
}

func (s *CoinbaseCandleStream) readLoop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.connected = false
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			go s.reconnectLoop()
		}
	}()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("candle stream read failed")
			return
		}

		s.mu.Lock()
		s.lastMsgTime = time.Now()
		s.mu.Unlock()

		if candle, ok := parseCandleMessage(data); ok {
			select {
			case s.out <- candle:
			default:
				s.log.Warn().Str("symbol", candle.Symbol).Msg("candle stream output buffer full, dropping tick")
			}
		}
	}
}

type candleWireMessage struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type    string `json:"type"`
		Candles []struct {
			ProductID string  `json:"product_id"`
			Start     int64   `json:"start"`
			Open      float64 `json:"open,string"`
			High      float64 `json:"high,string"`
			Low       float64 `json:"low,string"`
			Close     float64 `json:"close,string"`
			Volume    float64 `json:"volume,string"`
		} `json:"candles"`
	} `json:"events"`
}

func parseCandleMessage(data []byte) (StreamCandle, bool) {
	var msg candleWireMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Channel != "candles" {
		return StreamCandle{}, false
	}
	for _, event := range msg.Events {
		for _, c := range event.Candles {
			return StreamCandle{
				Symbol:    c.ProductID,
				Timeframe: "1m",
				Candle: OHLCV{
					Timestamp: time.Unix(c.Start, 0).UTC(),
					Open:      c.Open,
					High:      c.High,
					Low:       c.Low,
					Close:     c.Close,
					Volume:    c.Volume,
				},
			}, true
		}
	}
	return StreamCandle{}, false
}

func (s *CoinbaseCandleStream) reconnectLoop() {
	s.mu.Lock()
	if s.reconnecting || s.stopped {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if stopped {
			return
		}

		attempt++
		delay := backoffDelay(attempt)

		select {
		case <-time.After(delay):
		case <-s.stopChan:
			return
		}

		if err := s.connect(); err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("candle stream reconnect attempt failed")
			continue
		}

		s.mu.Lock()
		s.reconnectCount++
		s.mu.Unlock()

		s.log.Info().Int("attempt", attempt).Msg("candle stream reconnected")
		go s.readLoop(context.Background())
		return
	}
}

func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(wsBaseReconnectDelay) * math.Pow(2, float64(attempt-1)))
	if delay > wsMaxReconnectDelay {
		delay = wsMaxReconnectDelay
	}
	return delay
}

// Stop signals the read/reconnect loops to exit and closes the socket.
func (s *CoinbaseCandleStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	close(s.stopChan)
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "stream stopped")
	}
	return nil
}

// LastMsgAge implements CandleStream.
func (s *CoinbaseCandleStream) LastMsgAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastMsgTime.IsZero() {
		return 0
	}
	return time.Since(s.lastMsgTime)
}

// ReconnectCount implements CandleStream.
func (s *CoinbaseCandleStream) ReconnectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reconnectCount
}
