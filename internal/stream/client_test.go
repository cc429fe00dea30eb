package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/entitycache/internal/event"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) Next() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil, io.EOF
	}
	frame := c.frames[0]
	c.frames = c.frames[1:]
	return frame, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// scriptedTransport hands out conns in order and runs onExhausted once
// they are used up.
type scriptedTransport struct {
	mu          sync.Mutex
	conns       []*fakeConn
	dials       int
	onExhausted func()
}

func (t *scriptedTransport) Dial(ctx context.Context) (Conn, error) {
	t.mu.Lock()
	t.dials++
	if len(t.conns) == 0 {
		t.mu.Unlock()
		if t.onExhausted != nil {
			t.onExhausted()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	conn := t.conns[0]
	t.conns = t.conns[1:]
	t.mu.Unlock()
	return conn, nil
}

func (t *scriptedTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func frame(topic, payload string) []byte {
	return []byte(`{"topic":"` + topic + `","payload":` + payload + `}`)
}

func TestReconnectSchedulesOneAttemptPerClosure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &fakeConn{frames: [][]byte{frame("smarthome/items/A/added", `"{\"name\":\"A\"}"`)}}
	second := &fakeConn{}
	transport := &scriptedTransport{conns: []*fakeConn{first, second}, onExhausted: cancel}

	var (
		mu       sync.Mutex
		sleeps   []time.Duration
		reopened int
		received []string
	)
	client := New(transport, WithReconnectDelay(5*time.Second), WithReconnectHook(func() {
		mu.Lock()
		reopened++
		mu.Unlock()
	}))
	client.sleepFn = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return nil
	}
	client.OnEvent("smarthome/items/*/added", func(evt event.Event) error {
		mu.Lock()
		received = append(received, evt.ID)
		mu.Unlock()
		return nil
	})

	require.NoError(t, client.Start(ctx))
	client.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeps)
	assert.Equal(t, 1, reopened)
	assert.Equal(t, []string{"A"}, received)
	assert.Equal(t, 3, transport.dialCount())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestStartIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &scriptedTransport{}
	client := New(transport)

	require.NoError(t, client.Start(ctx))
	assert.ErrorIs(t, client.Start(ctx), ErrAlreadyStarted)

	require.Eventually(t, func() bool { return transport.dialCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	client.Wait()
	assert.Equal(t, 1, transport.dialCount())
}

func TestDispatchRunsMatchingHandlersInOrder(t *testing.T) {
	client := New(&scriptedTransport{})
	var calls []string

	client.OnEvent("smarthome/things/*/status", func(event.Event) error {
		calls = append(calls, "first")
		return nil
	})
	client.OnEvent("smarthome/items/*/added", func(event.Event) error {
		calls = append(calls, "other")
		return nil
	})
	client.OnEvent("smarthome/things/*", func(event.Event) error {
		calls = append(calls, "panics")
		panic("boom")
	})
	client.OnEvent("smarthome/things/*/status", func(event.Event) error {
		calls = append(calls, "fails")
		return errors.New("handler failed")
	})
	client.OnEvent("smarthome/*/T1/status", func(event.Event) error {
		calls = append(calls, "last")
		return nil
	})

	client.HandleFrame(frame("smarthome/things/T1/status", `"{\"status\":\"ONLINE\"}"`))

	assert.Equal(t, []string{"first", "panics", "fails", "last"}, calls)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	client := New(&scriptedTransport{})
	var topics []string
	client.OnEvent("smarthome/*", func(evt event.Event) error {
		topics = append(topics, evt.Topic)
		return nil
	})

	client.HandleFrame([]byte(`garbage`))
	client.HandleFrame(frame("smarthome/items/A/added", `"{not json"`))
	client.HandleFrame(frame("smarthome/items/B/added", `"{\"name\":\"B\"}"`))

	assert.Equal(t, []string{"smarthome/items/B/added"}, topics)
}

func TestSleepContextStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
