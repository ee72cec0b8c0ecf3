package orderbook

import (
	"sort"
)

// Level is one price level with its running depth total.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Total    float64 `json:"total"`
}

// Book is a normalized, render-ready order book. Bids are sorted by strictly
// decreasing price, asks by strictly increasing price; Total at level i is
// the sum of quantities at levels 0..i on that side.
type Book struct {
	Symbol    string  `json:"symbol"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
	Timestamp int64   `json:"timestamp"`
}

func (b *Book) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

func (b *Book) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

func (b *Book) Spread() float64 {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0
	}
	return b.BestAsk() - b.BestBid()
}

// SpreadPercent is the spread relative to the best bid. A zero or missing
// best bid falls back to a denominator of 1.
func (b *Book) SpreadPercent() float64 {
	denom := b.BestBid()
	if denom == 0 {
		denom = 1
	}
	return b.Spread() / denom * 100
}

// buildSide turns a price -> quantity map into a sorted level slice with
// cumulative totals. Bids descend, asks ascend.
func buildSide(levels map[float64]float64, descending bool) []Level {
	out := make([]Level, 0, len(levels))
	for price, qty := range levels {
		out = append(out, Level{Price: price, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})

	var total float64
	for i := range out {
		total += out[i].Quantity
		out[i].Total = total
	}
	return out
}
