package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// SSETransport reads envelopes from a text/event-stream endpoint; each
// event's data lines hold one envelope.
type SSETransport struct {
	url    string
	token  string
	client *http.Client
}

// NewSSETransport creates a transport for rawURL. The HTTP client must not
// carry a total timeout since the response body stays open indefinitely.
func NewSSETransport(rawURL, token string, client *http.Client) *SSETransport {
	if client == nil {
		client = &http.Client{}
	}
	return &SSETransport{url: strings.TrimSpace(rawURL), token: strings.TrimSpace(token), client: client}
}

func (t *SSETransport) Dial(ctx context.Context) (Conn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		return nil, fmt.Errorf("event stream status %d: %s", resp.StatusCode, string(body))
	}
	return &sseConn{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

type sseConn struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	closeOnce sync.Once
	closeErr  error
}

func (c *sseConn) Next() ([]byte, error) {
	var data bytes.Buffer
	for {
		line, err := c.reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if data.Len() > 0 {
				return data.Bytes(), nil
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// Comment, event and id lines carry nothing the envelope needs.
		if err != nil {
			// An event cut off by the end of the stream is discarded.
			return nil, err
		}
	}
}

func (c *sseConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.body.Close() })
	return c.closeErr
}
