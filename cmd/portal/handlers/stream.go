package handlers

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/middleware"
	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/notify"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Time allowed between pongs
	pongWait = 30 * time.Second

	// Must be less than pongWait
	pingPeriod = 25 * time.Second

	// Clients only send control frames
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamHandler pushes the caller's notifications over a websocket as they
// arrive in the inbox
type StreamHandler struct {
	hub *notify.Hub
	log *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(c *container.Container) *StreamHandler {
	return &StreamHandler{hub: c.Inbox.Live(), log: c.Components.Logger}
}

// Stream upgrades the request and writes one JSON frame per notification.
// Browsers cannot set headers on a websocket handshake, so ?user_id= is
// accepted in place of X-User-ID.
// GET /api/v1/inbox/stream
func (h *StreamHandler) Stream(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == "" {
		actor = c.QueryParam("user_id")
	}
	if actor == "" {
		return apperr.New(apperr.CodeUnauthorized, "authentication required (X-User-ID header or user_id query missing)")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		h.log.Warn("websocket upgrade failed", "user_id", actor, "error", err)
		return nil
	}

	sub := h.hub.Subscribe(actor)
	h.log.Debug("inbox stream opened", "user_id", actor, "remote", c.RealIP())

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
	return nil
}

// readPump discards client frames and keeps the read deadline moving on
// pongs. It returns when the peer goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, sub *notify.Subscriber) {
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("inbox stream read failed", "user_id", sub.UserID, "error", err)
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, sub *notify.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
