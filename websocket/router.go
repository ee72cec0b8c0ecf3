package websocket

import (
	"encoding/json"

	"github.com/tradingiq/terminal-feed/types"

	"go.uber.org/zap"
)

// Router demultiplexes inbound envelopes by channel tag and dispatches
// validated messages to the registered listeners. It never mutates registry
// state and nothing it receives is fatal: malformed or unknown input is
// logged at debug level and dropped.
type Router struct {
	registry *Registry
	logger   *zap.Logger
}

func NewRouter(registry *Registry, logger *zap.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// Dispatch routes one raw inbound frame. Listeners run synchronously in
// registration order; per-channel arrival order is therefore preserved, no
// ordering holds across channels.
func (r *Router) Dispatch(raw []byte) {
	var envelope types.StreamEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Channel == "" {
		r.logger.Debug("Dropping frame without a channel tag", zap.ByteString("frame", raw))
		return
	}

	subs := r.registry.Subscribers(envelope.Channel)
	if len(subs) == 0 {
		r.logger.Debug("Dropping message for channel without listeners", zap.String("channel", envelope.Channel))
		return
	}

	msg, err := decodeMessage(envelope)
	if err != nil {
		r.logger.Debug("Dropping malformed payload",
			zap.String("channel", envelope.Channel),
			zap.Error(err),
		)
		return
	}

	for _, sub := range subs {
		sub.OnChannelMessage(msg)
	}
}

// decodeMessage validates the payload against its channel family so
// downstream components never see untyped data. Unknown topics pass through
// with only Raw set.
func decodeMessage(envelope types.StreamEnvelope) (types.ChannelMessage, error) {
	topic, symbol, interval, err := types.ParseChannel(envelope.Channel)
	if err != nil {
		return types.ChannelMessage{}, err
	}

	msg := types.ChannelMessage{
		Channel:  envelope.Channel,
		Topic:    topic,
		Symbol:   symbol,
		Interval: interval,
		Raw:      envelope.Payload,
	}

	switch topic {
	case types.TopicTrades:
		var trade types.Trade
		if err := json.Unmarshal(envelope.Payload, &trade); err != nil {
			return types.ChannelMessage{}, err
		}
		if trade.Symbol == "" {
			trade.Symbol = symbol
		}
		msg.Trade = &trade
	case types.TopicOrderBook:
		var book types.BookPayload
		if err := json.Unmarshal(envelope.Payload, &book); err != nil {
			return types.ChannelMessage{}, err
		}
		if book.Symbol == "" {
			book.Symbol = symbol
		}
		msg.Book = &book
	case types.TopicKlines:
		var candle types.Candle
		if err := json.Unmarshal(envelope.Payload, &candle); err != nil {
			return types.ChannelMessage{}, err
		}
		msg.Candle = &candle
	case types.TopicTicker:
		var ticker types.Ticker
		if err := json.Unmarshal(envelope.Payload, &ticker); err != nil {
			return types.ChannelMessage{}, err
		}
		if ticker.Symbol == "" {
			ticker.Symbol = symbol
		}
		msg.Ticker = &ticker
	}

	return msg, nil
}
