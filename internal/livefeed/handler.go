package livefeed

import (
	"net/http"
	"time"

	"dispatch-server/internal/apierrors"
	"dispatch-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler upgrades watch requests to websocket connections fed by the Hub
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *observability.Logger
}

// NewHandler creates a new Handler. allowedOrigin is the web app origin
// permitted to open watch connections; empty allows all origins (development).
func NewHandler(hub *Hub, allowedOrigin string, logger *observability.Logger) Handler {
	return Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		logger: logger,
	}
}

// HandleWatchCall handles GET /api/protected/calls/:call_id/watch
func (h *Handler) HandleWatchCall(c *gin.Context) {
	ctx := c.Request.Context()

	callID, err := uuid.Parse(c.Param("call_id"))
	if err != nil {
		h.logger.Error(ctx, "failed to parse call_id", err)
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid call_id"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		h.logger.Error(ctx, "failed to upgrade watch connection", err)
		return
	}

	events, unsubscribe := h.hub.Subscribe(callID)
	defer unsubscribe()
	defer conn.Close()

	// Reader drains control frames and detects the peer going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
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
