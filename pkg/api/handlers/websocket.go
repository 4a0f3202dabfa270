package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 120 * time.Second
	wsPingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The HTTP layer already applies CORS; the websocket handshake does
	// not repeat the origin check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsInbound is a client frame: one user message to exchange.
type wsInbound struct {
	Content string `json:"content"`
}

// wsOutbound is a server frame. Type is "chunk" while streaming, "done"
// with the persisted message when the reply is complete, or "error".
type wsOutbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message any    `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// wsSession serializes writes to one websocket connection. The ping loop
// and the exchange emitter write from different goroutines.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) writeFrame(out wsOutbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(out)
}

func (s *wsSession) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// Stream handles GET /ws/chat/{chatID}: a websocket session where each
// inbound frame runs one exchange and the reply streams back chunk by
// chunk.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")

	c, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Websocket upgrade failed", "chat_id", chatID, "error", err)
		return
	}
	defer conn.Close()

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()
	h.log.Info("Websocket stream opened", "chat_id", chatID, "remote_addr", r.RemoteAddr)

	sess := &wsSession{conn: conn}

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go pingLoop(sess, done)

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("Websocket read failed", "chat_id", chatID, "error", err)
			}
			return
		}
		if in.Content == "" {
			sess.writeFrame(wsOutbound{Type: "error", Error: "content is required"})
			continue
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		emit := func(chunk string) error {
			return sess.writeFrame(wsOutbound{Type: "chunk", Content: chunk})
		}
		reply, err := h.exchange(ctx, c, in.Content, emit)
		if err != nil {
			h.log.Error("Streaming exchange failed", "chat_id", chatID, "error", err)
			sess.writeFrame(wsOutbound{Type: "error", Error: "model backend unavailable"})
			continue
		}

		if err := sess.writeFrame(wsOutbound{Type: "done", Message: reply}); err != nil {
			return
		}
	}
}

func pingLoop(sess *wsSession, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sess.ping(); err != nil {
				return
			}
		}
	}
}
