package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ragchat/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20 // document uploads arrive base64-encoded
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn owns one websocket. All writes go through the outbound channel
// so the writer pump is the connection's single writer.
type wsConn struct {
	conn     *websocket.Conn
	outbound chan chat.Event
	closed   chan struct{}
	log      *logrus.Entry
}

// Send queues an event for the writer pump. Implements chat.Sender. A
// full buffer or a closed connection drops the event; the session finds
// out when the read loop tears it down.
func (w *wsConn) Send(ev chat.Event) error {
	select {
	case w.outbound <- ev:
		return nil
	case <-w.closed:
		return websocket.ErrCloseSent
	}
}

func (w *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-w.outbound:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteJSON(ev); err != nil {
				w.log.WithError(err).Debug("write failed")
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-w.closed:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) handleChatSocket(c *gin.Context) {
	if !s.authorized(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	wc := &wsConn{
		conn:     conn,
		outbound: make(chan chat.Event, sendBuffer),
		closed:   make(chan struct{}),
		log:      s.log.WithField("remote", conn.RemoteAddr().String()),
	}

	session := chat.NewSession(
		s.svc,
		serviceIngester{svc: s.svc},
		s.model,
		wc,
		chat.Config{
			SystemPrompt:     s.cfg.Chat.SystemPrompt,
			RAGTemplate:      s.cfg.Chat.RAGTemplate,
			RetrievalTimeout: time.Duration(s.cfg.Chat.RetrievalTimeout),
			RetrievalTopK:    s.cfg.Chat.RetrievalTopK,
		},
		s.log,
	)

	go wc.writePump()
	s.readLoop(c.Request.Context(), session, wc)
}

// readLoop pumps inbound frames into the session until the client goes
// away, then tears everything down.
func (s *Server) readLoop(ctx context.Context, session *chat.Session, wc *wsConn) {
	// closed is signalled first so a generation goroutine blocked in Send
	// unblocks before Close waits on it.
	defer func() {
		close(wc.closed)
		session.Close()
		wc.conn.Close()
	}()

	wc.conn.SetReadLimit(maxMessageSize)
	wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	session.Open()
	wc.log.Info("chat session connected")

	// Session work is bounded by the connection's lifetime, not the
	// upgrade request's.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				wc.log.WithError(err).Debug("connection closed unexpectedly")
			}
			return
		}
		session.HandleMessage(sessionCtx, raw)
	}
}
