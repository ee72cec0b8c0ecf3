package types

import (
	"testing"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		topic    Topic
		symbol   string
		interval string
		wantErr  bool
	}{
		{"trades", "trades.BTCUSDT", TopicTrades, "BTCUSDT", "", false},
		{"orderbook", "orderbook.ETHUSDT", TopicOrderBook, "ETHUSDT", "", false},
		{"klines", "klines.BTCUSDT.1m", TopicKlines, "BTCUSDT", "1m", false},
		{"ticker", "ticker.BTCUSDT", TopicTicker, "BTCUSDT", "", false},
		{"unknown topic passes through", "user.orders", Topic("user"), "orders", "", false},
		{"empty", "", "", "", "", true},
		{"no separator", "trades", "", "", "", true},
		{"too many parts", "klines.BTC.1m.extra", "", "", "", true},
		{"empty symbol", "trades.", "", "", "", true},
		{"klines without interval", "klines.BTCUSDT", TopicKlines, "BTCUSDT", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic, symbol, interval, err := ParseChannel(tt.channel)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseChannel(%q) expected error, got topic=%q", tt.channel, topic)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChannel(%q) unexpected error: %v", tt.channel, err)
			}
			if topic != tt.topic || symbol != tt.symbol || interval != tt.interval {
				t.Errorf("ParseChannel(%q) = (%q, %q, %q), expected (%q, %q, %q)",
					tt.channel, topic, symbol, interval, tt.topic, tt.symbol, tt.interval)
			}
		})
	}
}

func TestChannelConstructors(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"trades", TradesChannel("BTCUSDT"), "trades.BTCUSDT"},
		{"orderbook", OrderBookChannel("ETHUSDT"), "orderbook.ETHUSDT"},
		{"klines", KlinesChannel("BTCUSDT", "5m"), "klines.BTCUSDT.5m"},
		{"ticker", TickerChannel("BTCUSDT"), "ticker.BTCUSDT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, expected %q", tt.got, tt.expected)
			}
		})
	}
}
