package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/micro-ha/entitycache/internal/event"
	"github.com/micro-ha/entitycache/internal/metric"
	"github.com/micro-ha/entitycache/internal/topic"
)

// DefaultReconnectDelay is the fixed wait between a lost connection and the next dial.
const DefaultReconnectDelay = 5 * time.Second

// ErrAlreadyStarted is returned by Start after the first call.
var ErrAlreadyStarted = errors.New("event stream already started")

// Handler receives events whose topic matched its subscription.
type Handler func(evt event.Event) error

// Conn is one open push connection yielding raw frames.
type Conn interface {
	Next() ([]byte, error)
	Close() error
}

// Transport opens push connections.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

type subscription struct {
	matcher *topic.Matcher
	handler Handler
}

// Client owns the single push connection and fans frames out to subscribers.
type Client struct {
	transport      Transport
	logger         *slog.Logger
	metrics        *metric.StreamMetrics
	reconnectDelay time.Duration
	onReconnect    func()
	sleepFn        func(ctx context.Context, d time.Duration) error

	mu   sync.RWMutex
	subs []subscription

	started   atomic.Bool
	connected atomic.Bool
	done      chan struct{}
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metric.StreamMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithReconnectHook registers fn to run after every successful reconnect.
// It does not run for the first connection.
func WithReconnectHook(fn func()) Option {
	return func(c *Client) { c.onReconnect = fn }
}

// New creates a client. Nothing is dialled until Start.
func New(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:      transport,
		logger:         slog.Default(),
		reconnectDelay: DefaultReconnectDelay,
		sleepFn:        sleepContext,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnEvent subscribes handler to topics matching pattern. Subscriptions live
// as long as the client; handlers run in registration order.
func (c *Client) OnEvent(pattern string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, subscription{matcher: topic.Compile(pattern), handler: handler})
}

// Start launches the connection loop. Only the first call has an effect.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go c.run(ctx)
	return nil
}

// Connected reports whether a stream connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Wait blocks until the connection loop has exited.
func (c *Client) Wait() {
	<-c.done
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	connectedBefore := false
	for {
		if ctx.Err() != nil {
			return
		}

		connID := uuid.NewString()
		conn, err := c.transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("event stream connect failed", "conn_id", connID, "err", err)
			if !c.scheduleReconnect(ctx) {
				return
			}
			continue
		}

		c.connected.Store(true)
		c.metrics.SetConnected(true)
		c.logger.Info("event stream connected", "conn_id", connID)
		if connectedBefore && c.onReconnect != nil {
			c.onReconnect()
		}
		connectedBefore = true

		err = c.readLoop(ctx, conn)
		c.connected.Store(false)
		c.metrics.SetConnected(false)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("event stream disconnected", "conn_id", connID, "err", err)
		if !c.scheduleReconnect(ctx) {
			return
		}
	}
}

func (c *Client) scheduleReconnect(ctx context.Context) bool {
	c.metrics.Reconnect()
	return c.sleepFn(ctx, c.reconnectDelay) == nil
}

func (c *Client) readLoop(ctx context.Context, conn Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-stop:
		}
	}()

	for {
		frame, err := conn.Next()
		if err != nil {
			return err
		}
		c.HandleFrame(frame)
	}
}

// HandleFrame decodes one raw frame and dispatches it. Malformed frames are dropped.
func (c *Client) HandleFrame(frame []byte) {
	c.metrics.FrameReceived()
	evt, err := event.Decode(frame)
	if err != nil {
		c.metrics.FrameDropped("malformed")
		c.logger.Warn("dropping malformed event frame", "err", err, "bytes", len(frame))
		return
	}
	c.Dispatch(evt)
}

// Dispatch runs every matching handler for evt in registration order.
func (c *Client) Dispatch(evt event.Event) {
	c.mu.RLock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.RUnlock()

	matched := false
	for _, sub := range subs {
		if !sub.matcher.Match(evt.Topic) {
			continue
		}
		matched = true
		c.invoke(sub, evt)
	}
	if !matched {
		c.metrics.FrameDropped("unsubscribed")
	}
}

func (c *Client) invoke(sub subscription, evt event.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.metrics.HandlerFailed()
			c.logger.Error("event handler panicked",
				"pattern", sub.matcher.Pattern(),
				"topic", evt.Topic,
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	if err := sub.handler(evt); err != nil {
		c.metrics.HandlerFailed()
		c.logger.Warn("event handler failed", "pattern", sub.matcher.Pattern(), "topic", evt.Topic, "err", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
