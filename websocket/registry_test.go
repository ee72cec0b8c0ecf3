package websocket

import (
	"testing"

	"github.com/tradingiq/terminal-feed/interfaces"
	"github.com/tradingiq/terminal-feed/types"
)

type recordingSubscriber struct {
	messages []types.ChannelMessage
}

func (r *recordingSubscriber) OnChannelMessage(msg types.ChannelMessage) {
	r.messages = append(r.messages, msg)
}

func TestRegistryAdd(t *testing.T) {
	registry := NewRegistry()
	sub := &recordingSubscriber{}

	isNew, err := registry.Add("trades.BTCUSDT", sub)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !isNew {
		t.Error("first listener should create the channel")
	}

	// Re-adding the same listener must not produce duplicate dispatch.
	isNew, err = registry.Add("trades.BTCUSDT", sub)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if isNew {
		t.Error("duplicate add reported a new channel")
	}
	if got := len(registry.Subscribers("trades.BTCUSDT")); got != 1 {
		t.Errorf("listener count = %d, expected 1", got)
	}

	other := &recordingSubscriber{}
	isNew, _ = registry.Add("trades.BTCUSDT", other)
	if isNew {
		t.Error("second listener on an existing channel reported a new channel")
	}
	if got := len(registry.Subscribers("trades.BTCUSDT")); got != 2 {
		t.Errorf("listener count = %d, expected 2", got)
	}
}

func TestRegistryAddEmptyChannel(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Add("", &recordingSubscriber{}); err == nil {
		t.Error("expected an error for an empty channel")
	}
}

func TestRegistryRemove(t *testing.T) {
	registry := NewRegistry()
	first := &recordingSubscriber{}
	second := &recordingSubscriber{}
	registry.Add("trades.BTCUSDT", first)
	registry.Add("trades.BTCUSDT", second)

	removed, err := registry.Remove("trades.BTCUSDT", first)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed {
		t.Error("channel reported removed while a listener remains")
	}

	removed, _ = registry.Remove("trades.BTCUSDT", second)
	if !removed {
		t.Error("removing the last listener should remove the channel")
	}
	if got := len(registry.Channels()); got != 0 {
		t.Errorf("desired channels = %d, expected 0", got)
	}

	// Removing from a gone channel is a no-op.
	removed, err = registry.Remove("trades.BTCUSDT", second)
	if err != nil || removed {
		t.Errorf("Remove on missing channel = (%v, %v), expected (false, nil)", removed, err)
	}
}

func TestRegistryRemoveChannel(t *testing.T) {
	registry := NewRegistry()
	registry.Add("trades.BTCUSDT", &recordingSubscriber{})
	registry.Add("trades.BTCUSDT", &recordingSubscriber{})

	removed, err := registry.RemoveChannel("trades.BTCUSDT")
	if err != nil || !removed {
		t.Fatalf("RemoveChannel = (%v, %v), expected (true, nil)", removed, err)
	}
	if got := len(registry.Subscribers("trades.BTCUSDT")); got != 0 {
		t.Errorf("listener count = %d, expected 0", got)
	}

	removed, _ = registry.RemoveChannel("trades.BTCUSDT")
	if removed {
		t.Error("RemoveChannel on a missing channel reported removal")
	}
}

// Function-based listeners get their identity from the adapter wrapper, so
// two of them coexist on one channel and are removable individually.
func TestRegistryFuncListenersOnSameChannel(t *testing.T) {
	registry := NewRegistry()
	first := interfaces.SubscriberFunc(func(types.ChannelMessage) {})
	second := interfaces.SubscriberFunc(func(types.ChannelMessage) {})

	if _, err := registry.Add("ticker.BTCUSDT", first); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := registry.Add("ticker.BTCUSDT", second); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := len(registry.Subscribers("ticker.BTCUSDT")); got != 2 {
		t.Fatalf("listener count = %d, expected 2", got)
	}

	removed, err := registry.Remove("ticker.BTCUSDT", first)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed {
		t.Error("channel reported removed while a listener remains")
	}
	got := registry.Subscribers("ticker.BTCUSDT")
	if len(got) != 1 || got[0] != second {
		t.Errorf("expected only the second listener to remain, got %d", len(got))
	}
}

func TestRegistrySubscriberOrder(t *testing.T) {
	registry := NewRegistry()
	subs := []interfaces.ChannelSubscriber{
		&recordingSubscriber{}, &recordingSubscriber{}, &recordingSubscriber{},
	}
	for _, sub := range subs {
		registry.Add("ticker.BTCUSDT", sub)
	}

	got := registry.Subscribers("ticker.BTCUSDT")
	if len(got) != len(subs) {
		t.Fatalf("listener count = %d, expected %d", len(got), len(subs))
	}
	for i := range subs {
		if got[i] != subs[i] {
			t.Errorf("listener %d out of registration order", i)
		}
	}
}
