package interfaces

import "github.com/tradingiq/terminal-feed/types"

// StreamClient is the public surface of the market-data connection.
type StreamClient interface {
	Connect() error

	Disconnect()

	Stream() error

	Subscribe(channel string, sub ChannelSubscriber) error

	Unsubscribe(channel string, sub ChannelSubscriber) error

	// UnsubscribeChannel removes every listener for the channel.
	UnsubscribeChannel(channel string) error

	State() types.ConnState

	// OnStateChange registers an observer for connection state transitions.
	OnStateChange(fn func(state types.ConnState))
}
