package types

import (
	"encoding/json"
)

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ControlRequest is the client -> server subscription envelope.
type ControlRequest struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// StreamEnvelope is the server -> client data envelope. Payload shape depends
// on the channel family and is validated by the router before dispatch.
type StreamEnvelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// ChannelMessage is a routed, validated inbound message. Exactly one of the
// typed payload fields matching Topic is set; Raw always carries the
// undecoded payload for passthrough listeners.
type ChannelMessage struct {
	Channel  string
	Topic    Topic
	Symbol   string
	Interval string

	Trade  *Trade
	Book   *BookPayload
	Candle *Candle
	Ticker *Ticker

	Raw json.RawMessage
}
