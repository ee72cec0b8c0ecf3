package feedsim

import (
	"context"
	"time"

	"github.com/tradingiq/terminal-feed/candles"
	"github.com/tradingiq/terminal-feed/types"
)

// Candles implements interfaces.HistoryProvider with generated data: limit
// consecutive buckets ending at the current one, continuous close-to-open,
// sharing the random walk with the live feed so seeding lines up with
// subsequent pushes.
func (s *Server) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	dur, err := candles.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	last := candles.BucketStart(time.Now().UnixMilli(), dur)
	step := dur.Milliseconds()
	price := s.walk(symbol)

	out := make([]types.Candle, limit)
	for i := limit - 1; i >= 0; i-- {
		open := price * (1 + (s.randFloat()-0.5)*0.002)
		high := max(open, price) * (1 + s.randFloat()*0.001)
		low := min(open, price) * (1 - s.randFloat()*0.001)
		out[i] = types.Candle{
			Time:   last - int64(limit-1-i)*step,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: s.randFloat() * 100,
		}
		price = open
	}
	return out, ctx.Err()
}

func (s *Server) randFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
