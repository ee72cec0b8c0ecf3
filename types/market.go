package types

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade is a single execution pushed on a trades channel.
type Trade struct {
	ID        string  `json:"id,omitempty"`
	Symbol    string  `json:"symbol,omitempty"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Side      string  `json:"side"`
	Timestamp int64   `json:"timestamp"`
}

// Candle is one OHLCV bucket. Time is the bucket start in unix milliseconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// PriceLevel is a [price, quantity] pair as it appears on the wire.
type PriceLevel [2]float64

func (l PriceLevel) Price() float64    { return l[0] }
func (l PriceLevel) Quantity() float64 { return l[1] }

const (
	BookTypeSnapshot = "snapshot"
	BookTypeDelta    = "delta"
)

// BookPayload is an order book message. Type selects snapshot or delta
// handling; an empty Type is treated as a snapshot.
type BookPayload struct {
	Type      string       `json:"type,omitempty"`
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

// Ticker is a 24h rolling summary for one symbol. It is a projection of the
// feed, never aggregated client-side.
type Ticker struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	High24h            float64 `json:"high24h"`
	Low24h             float64 `json:"low24h"`
	Volume24h          float64 `json:"volume24h"`
	Timestamp          int64   `json:"timestamp"`
}
