package feedsim

import (
	"context"
	"testing"
	"time"

	"github.com/tradingiq/terminal-feed/candles"

	"go.uber.org/zap"
)

func TestHistoryCandles(t *testing.T) {
	server := NewServer(zap.NewNop(), WithSeed(42))

	history, err := server.Candles(context.Background(), "BTCUSDT", "1m", 100)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(history) != 100 {
		t.Fatalf("candle count = %d, expected 100", len(history))
	}

	dur, _ := candles.ParseInterval("1m")
	step := dur.Milliseconds()
	for i, candle := range history {
		if candle.Time%step != 0 {
			t.Errorf("candle %d start %d is not bucket-aligned", i, candle.Time)
		}
		if i > 0 && candle.Time != history[i-1].Time+step {
			t.Errorf("candle %d is not contiguous with its predecessor", i)
		}
		if candle.Low > candle.Open || candle.Low > candle.Close ||
			candle.High < candle.Open || candle.High < candle.Close {
			t.Errorf("candle %d violates OHLC invariant: %+v", i, candle)
		}
	}

	last := history[len(history)-1]
	now := time.Now().UnixMilli()
	if last.Time != candles.BucketStart(now, dur) && last.Time != candles.BucketStart(now, dur)-step {
		t.Errorf("last candle %d does not end at the current bucket", last.Time)
	}
}

func TestHistoryCandlesBadInput(t *testing.T) {
	server := NewServer(zap.NewNop())

	if _, err := server.Candles(context.Background(), "BTCUSDT", "bogus", 10); err == nil {
		t.Error("expected an error for an invalid interval")
	}

	history, err := server.Candles(context.Background(), "BTCUSDT", "1m", 0)
	if err != nil || history != nil {
		t.Errorf("zero limit = (%v, %v), expected (nil, nil)", history, err)
	}
}
