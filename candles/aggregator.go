package candles

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tradingiq/terminal-feed/types"

	"go.uber.org/zap"
)

// Event is one aggregator emission. Closed marks a finalized bucket; the
// candle is immutable from the aggregator's perspective afterwards.
type Event struct {
	Symbol   string
	Interval string
	Candle   types.Candle
	Closed   bool
}

type key struct {
	symbol   string
	interval string
}

// Aggregator folds trade ticks into fixed-interval OHLCV candles,
// deterministically bucketed by event time. Exactly one open candle exists
// per (symbol, interval) at any time.
//
// Ticks whose event time falls inside the current bucket merge regardless of
// ordering; a tick older than the current bucket start still rolls the
// candle. Cross-boundary out-of-order arrival is not corrected.
type Aggregator struct {
	mu      sync.Mutex
	current map[key]*types.Candle
	tracked map[string][]string
	handler func(Event)
	logger  *zap.Logger
}

func NewAggregator(logger *zap.Logger, handler func(Event)) *Aggregator {
	return &Aggregator{
		current: make(map[key]*types.Candle),
		tracked: make(map[string][]string),
		handler: handler,
		logger:  logger,
	}
}

// Track registers an interval to aggregate trades into for symbol. Trade
// channels carry no interval, so the aggregator only folds ticks into
// intervals registered here (Seed registers implicitly).
func (a *Aggregator) Track(symbol, interval string) error {
	if _, err := ParseInterval(interval); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.tracked[symbol] {
		if existing == interval {
			return nil
		}
	}
	a.tracked[symbol] = append(a.tracked[symbol], interval)
	return nil
}

// ParseInterval converts an interval token ("1m", "4h", "1d", ...) into a
// duration. Weeks are the largest supported unit.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	value, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}

	switch strings.ToLower(interval[len(interval)-1:]) {
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "w":
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
}

// BucketStart truncates a unix-millisecond event time to its bucket start.
func BucketStart(eventTime int64, interval time.Duration) int64 {
	ms := interval.Milliseconds()
	return eventTime - eventTime%ms
}

// Seed initializes the open candle for (symbol, interval) from the last
// candle of a historical batch so live ticks merge into it instead of
// opening a spurious duplicate bucket. An empty batch clears the key.
func (a *Aggregator) Seed(symbol, interval string, history []types.Candle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{symbol: symbol, interval: interval}
	tracked := false
	for _, existing := range a.tracked[symbol] {
		if existing == interval {
			tracked = true
			break
		}
	}
	if !tracked {
		a.tracked[symbol] = append(a.tracked[symbol], interval)
	}

	if len(history) == 0 {
		delete(a.current, k)
		return
	}

	last := history[len(history)-1]
	a.current[k] = &last
	a.logger.Debug("Seeded candle state",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int64("bucket", last.Time),
	)
}

// OnTrade merges one tick into the open candle for (symbol, interval),
// rolling the bucket when the tick's bucket start differs from the current
// one. The closed candle, if any, is emitted before the update for the new
// bucket.
func (a *Aggregator) OnTrade(symbol, interval string, trade types.Trade) error {
	dur, err := ParseInterval(interval)
	if err != nil {
		return err
	}
	bucket := BucketStart(trade.Timestamp, dur)

	var events []Event

	a.mu.Lock()
	k := key{symbol: symbol, interval: interval}
	current, exists := a.current[k]

	if !exists || current.Time != bucket {
		if exists {
			events = append(events, Event{Symbol: symbol, Interval: interval, Candle: *current, Closed: true})
		}
		current = &types.Candle{
			Time:   bucket,
			Open:   trade.Price,
			High:   trade.Price,
			Low:    trade.Price,
			Close:  trade.Price,
			Volume: trade.Quantity,
		}
		a.current[k] = current
	} else {
		current.Close = trade.Price
		if trade.Price > current.High {
			current.High = trade.Price
		}
		if trade.Price < current.Low {
			current.Low = trade.Price
		}
		current.Volume += trade.Quantity
	}
	events = append(events, Event{Symbol: symbol, Interval: interval, Candle: *current})
	a.mu.Unlock()

	if a.handler != nil {
		for _, event := range events {
			a.handler(event)
		}
	}
	return nil
}

// Current returns a copy of the open candle for (symbol, interval).
func (a *Aggregator) Current(symbol, interval string) (types.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, exists := a.current[key{symbol: symbol, interval: interval}]
	if !exists {
		return types.Candle{}, false
	}
	return *current, true
}

// Reset drops all open-candle and tracking state, e.g. on symbol switch.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = make(map[key]*types.Candle)
	a.tracked = make(map[string][]string)
}

// OnChannelMessage lets the aggregator sit directly on a stream client.
// Trade messages are aggregated; server-pushed kline updates are
// authoritative and replace the matching open candle.
func (a *Aggregator) OnChannelMessage(msg types.ChannelMessage) {
	switch msg.Topic {
	case types.TopicTrades:
		if msg.Trade == nil {
			return
		}
		a.mu.Lock()
		intervals := make([]string, len(a.tracked[msg.Symbol]))
		copy(intervals, a.tracked[msg.Symbol])
		a.mu.Unlock()

		for _, interval := range intervals {
			if err := a.OnTrade(msg.Symbol, interval, *msg.Trade); err != nil {
				a.logger.Debug("Dropping trade tick", zap.String("channel", msg.Channel), zap.Error(err))
			}
		}
	case types.TopicKlines:
		if msg.Candle == nil {
			return
		}
		a.applyServerCandle(msg.Symbol, msg.Interval, *msg.Candle)
	}
}

func (a *Aggregator) applyServerCandle(symbol, interval string, candle types.Candle) {
	var events []Event

	a.mu.Lock()
	k := key{symbol: symbol, interval: interval}
	current, exists := a.current[k]
	if exists && current.Time != candle.Time && candle.Time > current.Time {
		events = append(events, Event{Symbol: symbol, Interval: interval, Candle: *current, Closed: true})
	}
	a.current[k] = &candle
	events = append(events, Event{Symbol: symbol, Interval: interval, Candle: candle})
	a.mu.Unlock()

	if a.handler != nil {
		for _, event := range events {
			a.handler(event)
		}
	}
}
