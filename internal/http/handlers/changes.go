package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	changeWriteWait    = 10 * time.Second
	changePingInterval = 30 * time.Second
)

var changeUpgrader = websocket.Upgrader{
	CheckOrigin:     func(*http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type changeMessage struct {
	Type string `json:"type"`
}

// Changes upgrades to a WebSocket and sends {"type":"changed"} once per
// coalesced batch of cache mutations.
func (a *API) Changes(w http.ResponseWriter, r *http.Request) {
	conn, err := changeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("change feed upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	changes, cancel := a.changes.Subscribe()
	defer cancel()

	// The reader only detects client close; clients send nothing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(changePingInterval)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-changes:
			_ = conn.SetWriteDeadline(time.Now().Add(changeWriteWait))
			if err := conn.WriteJSON(changeMessage{Type: "changed"}); err != nil {
				a.logger.Debug("change feed write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(changeWriteWait)); err != nil {
				return
			}
		}
	}
}
