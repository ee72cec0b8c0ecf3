package interfaces

import (
	"context"

	"github.com/tradingiq/terminal-feed/types"
)

// ChannelSubscriber receives validated messages for the channels it is
// registered on. Dispatch happens in registration order on the stream
// goroutine; implementations must not block.
type ChannelSubscriber interface {
	OnChannelMessage(msg types.ChannelMessage)
}

// SubscriberFunc adapts a plain function to ChannelSubscriber. Each call
// returns a distinct subscriber, so two adapters around the same function
// register and unregister independently. The wrapper pointer is the
// listener's identity; a bare func type would be uncomparable and break
// duplicate suppression in the registry.
func SubscriberFunc(f func(msg types.ChannelMessage)) ChannelSubscriber {
	return &subscriberFunc{fn: f}
}

type subscriberFunc struct {
	fn func(msg types.ChannelMessage)
}

func (s *subscriberFunc) OnChannelMessage(msg types.ChannelMessage) { s.fn(msg) }

// HistoryProvider is the request/response boundary for historical candles
// used to seed live aggregation. The REST transport behind it is out of
// scope for this layer.
type HistoryProvider interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
}
