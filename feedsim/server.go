package feedsim

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/tradingiq/terminal-feed/candles"
	"github.com/tradingiq/terminal-feed/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 2 * time.Second
	defaultBaseTick = 500 * time.Millisecond
	basePrice       = 50000.0
	bookDepth       = 10
)

// Server is a simulated market-data feed speaking the terminal wire
// protocol: it accepts {action, channel} control messages per connection and
// pushes {channel, payload} envelopes with random-walk market data for every
// subscribed channel. It exists for the example binaries and for tests; it
// is not a matching engine.
type Server struct {
	upgrader websocket.Upgrader
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

type ServerOption func(*Server)

// WithUpdateInterval sets the push cadence per subscribed channel.
func WithUpdateInterval(interval time.Duration) ServerOption {
	return func(s *Server) {
		s.interval = interval
	}
}

// WithSeed makes the random walk deterministic.
func WithSeed(seed int64) ServerOption {
	return func(s *Server) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

func NewServer(logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		interval: defaultBaseTick,
		logger:   logger,
		prices:   make(map[string]float64),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session is one connected client and its subscribed channel set.
type session struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	mu       sync.Mutex
	channels map[string]struct{}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade feed connection", zap.Error(err))
		return
	}

	sess := &session{
		conn:     conn,
		channels: make(map[string]struct{}),
	}
	s.logger.Info("Feed client connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go s.pushLoop(sess, done)
	s.readLoop(sess)
	close(done)
	conn.Close()
	s.logger.Info("Feed client disconnected", zap.String("remote", r.RemoteAddr))
}

func (s *Server) readLoop(sess *session) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Feed read error", zap.Error(err))
			}
			return
		}

		var req types.ControlRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Channel == "" {
			s.logger.Debug("Ignoring malformed control message", zap.ByteString("frame", data))
			continue
		}

		switch req.Action {
		case types.ActionSubscribe:
			sess.mu.Lock()
			sess.channels[req.Channel] = struct{}{}
			sess.mu.Unlock()
			s.logger.Debug("Client subscribed", zap.String("channel", req.Channel))
			// Push an initial message right away so new subscribers are not
			// left waiting for the next cadence tick.
			s.pushChannel(sess, req.Channel)
		case types.ActionUnsubscribe:
			sess.mu.Lock()
			delete(sess.channels, req.Channel)
			sess.mu.Unlock()
			s.logger.Debug("Client unsubscribed", zap.String("channel", req.Channel))
		default:
			s.logger.Debug("Ignoring unknown control action", zap.String("action", req.Action))
		}
	}
}

func (s *Server) pushLoop(sess *session, done <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sess.mu.Lock()
			channels := make([]string, 0, len(sess.channels))
			for channel := range sess.channels {
				channels = append(channels, channel)
			}
			sess.mu.Unlock()

			for _, channel := range channels {
				s.pushChannel(sess, channel)
			}
		}
	}
}

func (s *Server) pushChannel(sess *session, channel string) {
	topic, symbol, interval, err := types.ParseChannel(channel)
	if err != nil {
		s.logger.Debug("Not generating data for malformed channel", zap.String("channel", channel))
		return
	}

	now := time.Now().UnixMilli()
	var payload any

	switch topic {
	case types.TopicTrades:
		payload = s.nextTrade(symbol, now)
	case types.TopicOrderBook:
		payload = s.nextBook(symbol, now)
	case types.TopicKlines:
		candle, err := s.nextCandle(symbol, interval, now)
		if err != nil {
			return
		}
		payload = candle
	case types.TopicTicker:
		payload = s.nextTicker(symbol, now)
	default:
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	envelope := types.StreamEnvelope{Channel: channel, Payload: raw}
	data, err := json.Marshal(envelope)
	if err != nil {
		return
	}

	sess.writeMu.Lock()
	sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
	writeErr := sess.conn.WriteMessage(websocket.TextMessage, data)
	sess.writeMu.Unlock()
	if writeErr != nil {
		s.logger.Debug("Failed to push feed message", zap.String("channel", channel), zap.Error(writeErr))
	}
}

// walk advances the symbol's random-walk price by up to ±0.1%.
func (s *Server) walk(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, exists := s.prices[symbol]
	if !exists {
		price = basePrice
	}
	price += price * (s.rng.Float64() - 0.5) * 0.002
	s.prices[symbol] = price
	return price
}

func (s *Server) nextTrade(symbol string, now int64) types.Trade {
	price := s.walk(symbol)
	side := types.SideBuy
	if s.rng.Float64() < 0.5 {
		side = types.SideSell
	}
	return types.Trade{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Price:     price,
		Quantity:  0.01 + s.rng.Float64()*2,
		Side:      side,
		Timestamp: now,
	}
}

func (s *Server) nextBook(symbol string, now int64) types.BookPayload {
	mid := s.walk(symbol)
	book := types.BookPayload{
		Type:      types.BookTypeSnapshot,
		Symbol:    symbol,
		Timestamp: now,
	}
	for i := 1; i <= bookDepth; i++ {
		spread := mid * 0.0001 * float64(i)
		book.Bids = append(book.Bids, types.PriceLevel{mid - spread, 0.1 + s.rng.Float64()*5})
		book.Asks = append(book.Asks, types.PriceLevel{mid + spread, 0.1 + s.rng.Float64()*5})
	}
	return book
}

func (s *Server) nextCandle(symbol, interval string, now int64) (types.Candle, error) {
	dur, err := candles.ParseInterval(interval)
	if err != nil {
		return types.Candle{}, err
	}
	price := s.walk(symbol)
	high := price * (1 + s.rng.Float64()*0.001)
	low := price * (1 - s.rng.Float64()*0.001)
	return types.Candle{
		Time:   candles.BucketStart(now, dur),
		Open:   low + s.rng.Float64()*(high-low),
		High:   high,
		Low:    low,
		Close:  price,
		Volume: s.rng.Float64() * 100,
	}, nil
}

func (s *Server) nextTicker(symbol string, now int64) types.Ticker {
	price := s.walk(symbol)
	change := price * (s.rng.Float64() - 0.5) * 0.05
	return types.Ticker{
		Symbol:             symbol,
		LastPrice:          price,
		PriceChange:        change,
		PriceChangePercent: change / price * 100,
		High24h:            price * 1.03,
		Low24h:             price * 0.97,
		Volume24h:          s.rng.Float64() * 1e6,
		Timestamp:          now,
	}
}
