package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tradingiq/terminal-feed/interfaces"
	"github.com/tradingiq/terminal-feed/types"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	DialTimeout  = 5 * time.Second
	PingInterval = 30 * time.Second
	PingTimeout  = 5 * time.Second

	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 1 * time.Second
	DefaultReconnectDelayMax    = 5 * time.Second
)

// BaseClient owns the single persistent feed connection. It dials, streams
// and demultiplexes inbound frames, and replays desired subscriptions once
// per successful (re)connection. It does not retry on its own; wrap it in a
// ReconnectingClient for bounded-backoff recovery.
type BaseClient struct {
	url string

	conn         *websocket.Conn
	clientCtx    context.Context
	clientCancel context.CancelFunc
	connecting   bool

	registry *Registry
	router   *Router

	state     types.ConnState
	lossState types.ConnState
	stateSubs []func(types.ConnState)

	mu     sync.RWMutex
	logger *zap.Logger
}

// ReconnectingClient wraps a BaseClient with bounded-retry reconnection.
// The delay between attempts doubles per attempt up to a cap; once attempts
// are exhausted the client reports a terminal disconnected state and stops,
// a caller may then Connect manually.
type ReconnectingClient struct {
	baseClient *BaseClient

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	reconnectDelayMax    time.Duration

	stop        chan struct{}
	reconnectMu sync.Mutex
}

type Client = ReconnectingClient

type ClientOption func(*ReconnectingClient)

func WithMaxReconnectAttempts(attempts int) ClientOption {
	return func(c *ReconnectingClient) {
		c.maxReconnectAttempts = attempts
	}
}

func WithReconnectDelay(delay time.Duration) ClientOption {
	return func(c *ReconnectingClient) {
		c.reconnectDelay = delay
	}
}

func WithReconnectDelayMax(max time.Duration) ClientOption {
	return func(c *ReconnectingClient) {
		c.reconnectDelayMax = max
	}
}

func NewBaseClient(url string, logger *zap.Logger) *BaseClient {
	registry := NewRegistry()
	return &BaseClient{
		url:       url,
		registry:  registry,
		router:    NewRouter(registry, logger),
		state:     types.StateDisconnected,
		lossState: types.StateDisconnected,
		logger:    logger,
	}
}

func NewClient(url string, logger *zap.Logger, opts ...ClientOption) *Client {
	client := &ReconnectingClient{
		baseClient:           NewBaseClient(url, logger),
		maxReconnectAttempts: DefaultMaxReconnectAttempts,
		reconnectDelay:       DefaultReconnectDelay,
		reconnectDelayMax:    DefaultReconnectDelayMax,
		stop:                 make(chan struct{}),
	}
	client.baseClient.lossState = types.StateReconnecting
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func NewStreamClient(url string, logger *zap.Logger, opts ...ClientOption) interfaces.StreamClient {
	return NewClient(url, logger, opts...)
}

// Connect establishes the transport if not already connected or connecting.
// Each successful call replays every desired subscription exactly once.
func (c *BaseClient) Connect() error {
	c.mu.Lock()
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	ctx, cancel := context.WithCancel(context.Background())
	c.clientCtx = ctx
	c.clientCancel = cancel
	url := c.url
	c.mu.Unlock()

	c.setState(types.StateConnecting)

	dialCtx, dialCancel := context.WithTimeout(ctx, DialTimeout)
	defer dialCancel()
	conn, _, err := websocket.Dial(dialCtx, url, nil)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		cancel()
		c.mu.Unlock()
		c.setState(types.StateDisconnected)
		return fmt.Errorf("failed to connect to feed: %w", err)
	}
	c.conn = conn
	c.mu.Unlock()

	c.setState(types.StateConnected)
	c.logger.Info("Connected to market data feed", zap.String("url", url))

	c.replaySubscriptions()
	return nil
}

// Disconnect tears the transport down and clears all desired-subscription
// state. Connection loss goes through closeConn instead, which keeps the
// registry so a reconnect can replay it.
func (c *BaseClient) Disconnect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
		c.conn = nil
	}
	if c.clientCancel != nil {
		c.clientCancel()
	}
	c.mu.Unlock()

	c.registry.Clear()
	c.setState(types.StateDisconnected)
	c.logger.Info("Disconnected from market data feed")
}

func (c *BaseClient) closeConn() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "connection reset")
		c.conn = nil
	}
	if c.clientCancel != nil {
		c.clientCancel()
	}
	loss := c.lossState
	c.mu.Unlock()

	c.setState(loss)
}

func (c *BaseClient) State() types.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *BaseClient) OnStateChange(fn func(state types.ConnState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateSubs = append(c.stateSubs, fn)
}

func (c *BaseClient) setState(state types.ConnState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	observers := make([]func(types.ConnState), len(c.stateSubs))
	copy(observers, c.stateSubs)
	c.mu.Unlock()

	c.logger.Debug("Connection state changed", zap.Stringer("state", state))
	for _, fn := range observers {
		fn(state)
	}
}

// Subscribe registers sub on channel. Subscribing while disconnected is not
// an error: the channel is recorded as desired and sent on the next connect.
func (c *BaseClient) Subscribe(channel string, sub interfaces.ChannelSubscriber) error {
	isNew, err := c.registry.Add(channel, sub)
	if err != nil {
		return err
	}
	c.logger.Info("Subscribed to channel", zap.String("channel", channel))

	if isNew && c.State() == types.StateConnected {
		if err := c.sendControl(types.ActionSubscribe, channel); err != nil {
			// Desired state is recorded, the next connect replays it.
			c.logger.Error("Failed to send subscribe request", zap.String("channel", channel), zap.Error(err))
		}
	}
	return nil
}

// Unsubscribe removes sub from channel. Removing the last listener drops the
// channel from desired state and, when connected, sends an unsubscribe
// control message.
func (c *BaseClient) Unsubscribe(channel string, sub interfaces.ChannelSubscriber) error {
	removedChannel, err := c.registry.Remove(channel, sub)
	if err != nil {
		return err
	}
	c.logger.Info("Unsubscribed from channel", zap.String("channel", channel))

	if removedChannel && c.State() == types.StateConnected {
		if err := c.sendControl(types.ActionUnsubscribe, channel); err != nil {
			c.logger.Error("Failed to send unsubscribe request", zap.String("channel", channel), zap.Error(err))
		}
	}
	return nil
}

// UnsubscribeChannel removes every listener for the channel.
func (c *BaseClient) UnsubscribeChannel(channel string) error {
	removed, err := c.registry.RemoveChannel(channel)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	c.logger.Info("Unsubscribed all listeners from channel", zap.String("channel", channel))

	if c.State() == types.StateConnected {
		if err := c.sendControl(types.ActionUnsubscribe, channel); err != nil {
			c.logger.Error("Failed to send unsubscribe request", zap.String("channel", channel), zap.Error(err))
		}
	}
	return nil
}

func (c *BaseClient) sendControl(action, channel string) error {
	c.mu.RLock()
	conn := c.conn
	ctx := c.clientCtx
	c.mu.RUnlock()

	if conn == nil {
		return errors.New("websocket not connected")
	}

	req := types.ControlRequest{Action: action, Channel: channel}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send %s request: %w", action, err)
	}

	c.logger.Info("Sent control request", zap.String("action", action), zap.String("channel", channel))
	return nil
}

// replaySubscriptions re-sends a subscribe for every channel with at least
// one listener. Called once per successful connect; order is unspecified and
// duplicate wire messages across reconnects are acceptable, the feed is
// idempotent on subscription state.
func (c *BaseClient) replaySubscriptions() {
	channels := c.registry.Channels()
	if len(channels) == 0 {
		return
	}

	c.logger.Info("Replaying subscriptions", zap.Strings("channels", channels))
	for _, channel := range channels {
		if err := c.sendControl(types.ActionSubscribe, channel); err != nil {
			c.logger.Error("Failed to replay subscription", zap.String("channel", channel), zap.Error(err))
		}
	}
}

// Stream reads and dispatches inbound frames until the connection is torn
// down. A read failure closes the connection and is returned to the caller.
func (c *BaseClient) Stream() error {
	c.mu.RLock()
	conn := c.conn
	ctx := c.clientCtx
	c.mu.RUnlock()

	if conn == nil {
		return errors.New("websocket not connected")
	}

	go c.handlePing(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			c.logger.Error("Failed to read message", zap.Error(err))
			c.closeConn()
			return fmt.Errorf("failed to read message: %w", err)
		}

		c.router.Dispatch(data)
	}
}

func (c *BaseClient) handlePing(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Error("Failed to ping feed", zap.Error(err))
				c.closeConn()
				return
			}
		}
	}
}

// ReconnectingClient methods delegate to the base client and add the retry
// loop around Stream.

func (c *ReconnectingClient) Connect() error {
	c.resetStop()
	return c.baseClient.Connect()
}

func (c *ReconnectingClient) Disconnect() {
	c.closeStop()
	c.baseClient.Disconnect()
}

func (c *ReconnectingClient) Subscribe(channel string, sub interfaces.ChannelSubscriber) error {
	return c.baseClient.Subscribe(channel, sub)
}

func (c *ReconnectingClient) Unsubscribe(channel string, sub interfaces.ChannelSubscriber) error {
	return c.baseClient.Unsubscribe(channel, sub)
}

func (c *ReconnectingClient) UnsubscribeChannel(channel string) error {
	return c.baseClient.UnsubscribeChannel(channel)
}

func (c *ReconnectingClient) State() types.ConnState {
	return c.baseClient.State()
}

func (c *ReconnectingClient) OnStateChange(fn func(state types.ConnState)) {
	c.baseClient.OnStateChange(fn)
}

// Stream keeps the connection alive until Disconnect is called or the retry
// budget is exhausted. Transport failures trigger reconnection with
// multiplicative backoff; each successful reconnect replays subscriptions
// through the base client.
func (c *ReconnectingClient) Stream() error {
	for {
		if c.stopped() {
			return nil
		}

		if c.baseClient.State() != types.StateConnected {
			if err := c.connectWithBackoff(); err != nil {
				c.baseClient.setState(types.StateDisconnected)
				return err
			}
		}

		if err := c.baseClient.Stream(); err != nil {
			c.baseClient.logger.Warn("Stream interrupted", zap.Error(err))
			continue
		}

		// A ping-failure teardown cancels the connection context, which
		// ends Stream without an error but leaves the state reconnecting.
		if !c.stopped() && c.baseClient.State() == types.StateReconnecting {
			continue
		}

		// Clean shutdown path: context canceled by Disconnect.
		return nil
	}
}

func (c *ReconnectingClient) connectWithBackoff() error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	stop := c.stop
	delay := c.reconnectDelay
	var lastErr error

	for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
		c.baseClient.logger.Info("Attempting to connect",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", c.maxReconnectAttempts),
		)

		if err := c.baseClient.Connect(); err == nil {
			return nil
		} else {
			lastErr = err
			c.baseClient.logger.Error("Connection attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		if attempt == c.maxReconnectAttempts {
			break
		}

		c.baseClient.setState(types.StateReconnecting)
		c.baseClient.logger.Info("Waiting before next attempt", zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-stop:
			return errors.New("client closed during reconnect")
		}

		delay *= 2
		if delay > c.reconnectDelayMax {
			delay = c.reconnectDelayMax
		}
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", c.maxReconnectAttempts, lastErr)
}

func (c *ReconnectingClient) stopCh() chan struct{} {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	return c.stop
}

func (c *ReconnectingClient) stopped() bool {
	select {
	case <-c.stopCh():
		return true
	default:
		return false
	}
}

func (c *ReconnectingClient) closeStop() {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *ReconnectingClient) resetStop() {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	select {
	case <-c.stop:
		c.stop = make(chan struct{})
	default:
	}
}
