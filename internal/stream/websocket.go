package stream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultReadTimeout = 120 * time.Second

// WebSocketTransport reads envelopes as WebSocket text messages.
type WebSocketTransport struct {
	url         string
	token       string
	dialer      *websocket.Dialer
	readTimeout time.Duration
}

// NewWebSocketTransport dials rawURL; http(s) schemes are rewritten to ws(s).
// A non-empty token is sent as a bearer Authorization header.
func NewWebSocketTransport(rawURL, token string) *WebSocketTransport {
	return &WebSocketTransport{
		url:         strings.TrimSpace(rawURL),
		token:       strings.TrimSpace(token),
		dialer:      websocket.DefaultDialer,
		readTimeout: defaultReadTimeout,
	}
}

func (t *WebSocketTransport) Dial(ctx context.Context) (Conn, error) {
	wsURL, err := toWebsocketURL(t.url)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}
	conn, _, err := t.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn, readTimeout: t.readTimeout}, nil
}

type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	closeOnce   sync.Once
	closeErr    error
}

func (c *wsConn) Next() ([]byte, error) {
	for {
		if c.readTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
				return nil, err
			}
		}
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return msg, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}
