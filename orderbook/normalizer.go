package orderbook

import (
	"sync"
	"time"

	"github.com/tradingiq/terminal-feed/types"

	"go.uber.org/zap"
)

const (
	DefaultThrottleWindow = 200 * time.Millisecond
	DefaultMinQuantity    = 1e-8
)

// bookState is the per-symbol mutable book. A book starts uninitialized and
// becomes ready on its first snapshot; deltas against an uninitialized book
// are dropped.
type bookState struct {
	ready     bool
	bids      map[float64]float64
	asks      map[float64]float64
	timestamp int64

	pending []types.BookPayload
	timer   *time.Timer
}

// Normalizer maintains sorted per-symbol bid/ask tables from snapshot and
// delta messages and emits at most one merged update per throttling window.
// Deltas arriving inside a window coalesce into a single application once the
// window elapses; snapshots replace the book and emit immediately.
type Normalizer struct {
	mu      sync.Mutex
	books   map[string]*bookState
	window  time.Duration
	minQty  float64
	handler func(Book)
	logger  *zap.Logger
}

type Option func(*Normalizer)

// WithThrottleWindow sets the coalescing window. A non-positive window
// disables throttling and applies deltas synchronously.
func WithThrottleWindow(window time.Duration) Option {
	return func(n *Normalizer) {
		n.window = window
	}
}

// WithMinQuantity sets the threshold at or below which a delta quantity
// removes the level.
func WithMinQuantity(minQty float64) Option {
	return func(n *Normalizer) {
		n.minQty = minQty
	}
}

func NewNormalizer(logger *zap.Logger, handler func(Book), opts ...Option) *Normalizer {
	n := &Normalizer{
		books:   make(map[string]*bookState),
		window:  DefaultThrottleWindow,
		minQty:  DefaultMinQuantity,
		handler: handler,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ApplySnapshot replaces the entire book for the payload's symbol and emits
// the rebuilt book immediately. Pending deltas are superseded and dropped.
// Snapshots are exempt from the throttling window: one landing right after a
// delta flush produces a second emission inside the same window, trading a
// brief burst for never rendering a stale book.
func (n *Normalizer) ApplySnapshot(payload types.BookPayload) {
	n.mu.Lock()
	state := n.stateLocked(payload.Symbol)
	state.ready = true
	state.bids = make(map[float64]float64, len(payload.Bids))
	state.asks = make(map[float64]float64, len(payload.Asks))
	for _, level := range payload.Bids {
		if level.Quantity() > n.minQty {
			state.bids[level.Price()] = level.Quantity()
		}
	}
	for _, level := range payload.Asks {
		if level.Quantity() > n.minQty {
			state.asks[level.Price()] = level.Quantity()
		}
	}
	state.timestamp = payload.Timestamp
	state.pending = nil
	if state.timer != nil {
		state.timer.Stop()
		state.timer = nil
	}
	book := n.buildLocked(payload.Symbol, state)
	n.mu.Unlock()

	n.emit(book)
}

// ApplyDelta queues a partial update for the payload's symbol. The batch of
// deltas collected inside the throttling window is applied and emitted once
// the window elapses. Deltas for an uninitialized book are dropped and the
// book stays in its last known-good state.
func (n *Normalizer) ApplyDelta(payload types.BookPayload) {
	n.mu.Lock()
	state := n.stateLocked(payload.Symbol)
	if !state.ready {
		n.mu.Unlock()
		n.logger.Debug("Dropping delta for uninitialized book", zap.String("symbol", payload.Symbol))
		return
	}

	if n.window <= 0 {
		n.applyLocked(state, payload)
		book := n.buildLocked(payload.Symbol, state)
		n.mu.Unlock()
		n.emit(book)
		return
	}

	state.pending = append(state.pending, payload)
	if state.timer == nil {
		symbol := payload.Symbol
		state.timer = time.AfterFunc(n.window, func() {
			n.flush(symbol)
		})
	}
	n.mu.Unlock()
}

// Reset returns the symbol's book to the uninitialized state, e.g. on
// symbol switch.
func (n *Normalizer) Reset(symbol string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if state, exists := n.books[symbol]; exists && state.timer != nil {
		state.timer.Stop()
	}
	delete(n.books, symbol)
}

// ResetAll drops every book, e.g. on disconnect.
func (n *Normalizer) ResetAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, state := range n.books {
		if state.timer != nil {
			state.timer.Stop()
		}
	}
	n.books = make(map[string]*bookState)
}

// Snapshot returns the current normalized book for symbol, if ready.
func (n *Normalizer) Snapshot(symbol string) (Book, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	state, exists := n.books[symbol]
	if !exists || !state.ready {
		return Book{}, false
	}
	return n.buildLocked(symbol, state), true
}

// OnChannelMessage lets the normalizer sit directly on a stream client.
func (n *Normalizer) OnChannelMessage(msg types.ChannelMessage) {
	if msg.Topic != types.TopicOrderBook || msg.Book == nil {
		return
	}
	if msg.Book.Type == types.BookTypeDelta {
		n.ApplyDelta(*msg.Book)
		return
	}
	n.ApplySnapshot(*msg.Book)
}

func (n *Normalizer) stateLocked(symbol string) *bookState {
	state, exists := n.books[symbol]
	if !exists {
		state = &bookState{}
		n.books[symbol] = state
	}
	return state
}

func (n *Normalizer) applyLocked(state *bookState, payload types.BookPayload) {
	for _, level := range payload.Bids {
		if level.Quantity() <= n.minQty {
			delete(state.bids, level.Price())
		} else {
			state.bids[level.Price()] = level.Quantity()
		}
	}
	for _, level := range payload.Asks {
		if level.Quantity() <= n.minQty {
			delete(state.asks, level.Price())
		} else {
			state.asks[level.Price()] = level.Quantity()
		}
	}
	if payload.Timestamp > state.timestamp {
		state.timestamp = payload.Timestamp
	}
}

func (n *Normalizer) flush(symbol string) {
	n.mu.Lock()
	state, exists := n.books[symbol]
	if !exists || !state.ready {
		n.mu.Unlock()
		return
	}
	state.timer = nil
	if len(state.pending) == 0 {
		n.mu.Unlock()
		return
	}
	for _, payload := range state.pending {
		n.applyLocked(state, payload)
	}
	state.pending = nil
	book := n.buildLocked(symbol, state)
	n.mu.Unlock()

	n.emit(book)
}

func (n *Normalizer) buildLocked(symbol string, state *bookState) Book {
	return Book{
		Symbol:    symbol,
		Bids:      buildSide(state.bids, true),
		Asks:      buildSide(state.asks, false),
		Timestamp: state.timestamp,
	}
}

func (n *Normalizer) emit(book Book) {
	if n.handler != nil {
		n.handler(book)
	}
}
