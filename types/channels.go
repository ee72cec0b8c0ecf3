package types

import (
	"fmt"
	"strings"
)

// Topic is the channel family part of a channel identifier.
type Topic string

const (
	TopicTrades    Topic = "trades"
	TopicOrderBook Topic = "orderbook"
	TopicKlines    Topic = "klines"
	TopicTicker    Topic = "ticker"
)

// Channel identifiers follow "<topic>.<symbol>" or "<topic>.<symbol>.<interval>".
func TradesChannel(symbol string) string    { return fmt.Sprintf("%s.%s", TopicTrades, symbol) }
func OrderBookChannel(symbol string) string { return fmt.Sprintf("%s.%s", TopicOrderBook, symbol) }
func TickerChannel(symbol string) string    { return fmt.Sprintf("%s.%s", TopicTicker, symbol) }

func KlinesChannel(symbol, interval string) string {
	return fmt.Sprintf("%s.%s.%s", TopicKlines, symbol, interval)
}

// ParseChannel splits a channel identifier into its topic, symbol and
// optional interval. The topic is not restricted to the known families;
// unknown topics are routed as raw passthrough messages.
func ParseChannel(channel string) (topic Topic, symbol, interval string, err error) {
	parts := strings.Split(channel, ".")
	switch len(parts) {
	case 2:
		topic, symbol = Topic(parts[0]), parts[1]
	case 3:
		topic, symbol, interval = Topic(parts[0]), parts[1], parts[2]
	default:
		return "", "", "", fmt.Errorf("malformed channel identifier %q", channel)
	}
	if topic == "" || symbol == "" {
		return "", "", "", fmt.Errorf("malformed channel identifier %q", channel)
	}
	if topic == TopicKlines && interval == "" {
		return "", "", "", fmt.Errorf("klines channel %q is missing an interval", channel)
	}
	return topic, symbol, interval, nil
}
