package websocket

import (
	"errors"
	"sync"

	"github.com/tradingiq/terminal-feed/interfaces"
)

var errEmptyChannel = errors.New("channel must not be empty")

// Registry owns the set of desired channels and their listeners. Listener
// slices preserve registration order; duplicates of the same listener on the
// same channel are suppressed by identity. Only the registry mutates this
// state, the router just reads it.
type Registry struct {
	mu       sync.RWMutex
	channels map[string][]interfaces.ChannelSubscriber
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string][]interfaces.ChannelSubscriber),
	}
}

// Add registers sub on channel and reports whether the channel is newly
// desired. Re-adding the same listener is a no-op.
func (r *Registry) Add(channel string, sub interfaces.ChannelSubscriber) (isNew bool, err error) {
	if channel == "" {
		return false, errEmptyChannel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, exists := r.channels[channel]
	for _, existing := range subs {
		if existing == sub {
			return false, nil
		}
	}
	r.channels[channel] = append(subs, sub)
	return !exists, nil
}

// Remove drops sub from channel and reports whether the channel lost its
// last listener and was removed from desired state.
func (r *Registry) Remove(channel string, sub interfaces.ChannelSubscriber) (removedChannel bool, err error) {
	if channel == "" {
		return false, errEmptyChannel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, exists := r.channels[channel]
	if !exists {
		return false, nil
	}
	for i, existing := range subs {
		if existing == sub {
			r.channels[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.channels[channel]) == 0 {
		delete(r.channels, channel)
		return true, nil
	}
	return false, nil
}

// RemoveChannel drops the channel and all of its listeners. It reports
// whether the channel was desired.
func (r *Registry) RemoveChannel(channel string) (bool, error) {
	if channel == "" {
		return false, errEmptyChannel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.channels[channel]
	delete(r.channels, channel)
	return exists, nil
}

// Subscribers returns a copy of the listener list for channel in
// registration order.
func (r *Registry) Subscribers(channel string) []interfaces.ChannelSubscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs, exists := r.channels[channel]
	if !exists {
		return nil
	}
	out := make([]interfaces.ChannelSubscriber, len(subs))
	copy(out, subs)
	return out
}

// Channels returns every channel with at least one listener.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.channels))
	for channel := range r.channels {
		out = append(out, channel)
	}
	return out
}

// Clear removes all channels and listeners.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels = make(map[string][]interfaces.ChannelSubscriber)
}
