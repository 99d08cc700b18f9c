package broadcast

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageTypeCandidates tags standings frames sent to websocket clients
const MessageTypeCandidates = "candidates"

const maxClientMessage = 512

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the frame written to websocket observers
type Message struct {
	Type string `json:"type"`
	Snapshot
}

// WSObserver writes snapshots to one websocket connection. The hub calls Deliver
// from a single goroutine, which keeps gorilla's one-writer rule.
type WSObserver struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWSObserver wraps conn
func NewWSObserver(conn *websocket.Conn, writeTimeout time.Duration) *WSObserver {
	return &WSObserver{conn: conn, writeTimeout: writeTimeout}
}

// Deliver writes snap as a candidates frame, bounded by the write timeout
func (o *WSObserver) Deliver(ctx context.Context, snap Snapshot) error {
	deadline := time.Now().Add(o.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := o.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return o.conn.WriteJSON(Message{Type: MessageTypeCandidates, Snapshot: snap})
}

// ServeWS upgrades the request, subscribes the connection and blocks reading from
// it until the peer disconnects, at which point the observer is removed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id, unsubscribe, err := h.Subscribe(r.Context(), NewWSObserver(conn, writeTimeout))
	if err != nil {
		h.logger.Warn("websocket subscribe failed", zap.Error(err))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer unsubscribe()

	h.logger.Debug("websocket connected", zap.String("observer", id.String()), zap.String("remote", r.RemoteAddr))

	conn.SetReadLimit(maxClientMessage)
	for {
		// clients never send anything meaningful; reading surfaces close frames and
		// dead connections
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
