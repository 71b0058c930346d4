// Package ws bridges hub subscriptions onto websocket connections for the
// kitchen displays.
package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mozo-cocina/internal/hub"
	"mozo-cocina/internal/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Displays connect from tablets on the shop network; origin checks are
	// left to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	hub *hub.Hub
	lg  *logger.Logger
}

func NewHandler(h *hub.Hub, lg *logger.Logger) *Handler {
	return &Handler{hub: h, lg: lg}
}

// Serve upgrades the connection and streams the channel's events until the
// client goes away or a write fails; either way the subscription is removed.
func (h *Handler) Serve(channel string) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.lg.Warn("ws_upgrade_failed", err, map[string]any{"channel": channel})
			return
		}

		sub := h.hub.Subscribe(channel)
		h.lg.Info("display_connected", map[string]any{
			"channel": channel, "remote": conn.RemoteAddr().String(),
		})

		go h.writePump(conn, sub)
		h.readPump(conn, sub)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *hub.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.lg.Warn("display_write_failed", err, map[string]any{
					"channel": sub.Channel(), "remote": conn.RemoteAddr().String(),
				})
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; it exists to notice disconnects.
func (h *Handler) readPump(conn *websocket.Conn, sub *hub.Subscription) {
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
