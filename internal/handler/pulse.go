package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"pulse/internal/service"
	"pulse/internal/stream"
)

const streamWriteTimeout = 5 * time.Second

type PulseHandler struct {
	Pulse  *service.PulseService
	Hub    *stream.Hub
	Logger *zap.Logger
}

func (h *PulseHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/venues/:id")
	group.GET("/pulse", h.get)
	group.GET("/pulse/stream", h.stream)
}

// @Summary Current pulse for a venue
// @Tags pulse
// @Produce json
// @Param id path string true "venue id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/v1/venues/{id}/pulse [get]
func (h *PulseHandler) get(c *gin.Context) {
	view, err := h.Pulse.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Stream pulse changes for a venue (websocket)
// @Tags pulse
// @Param id path string true "venue id"
// @Router /api/v1/venues/{id}/pulse/stream [get]
func (h *PulseHandler) stream(c *gin.Context) {
	venueID := strings.TrimSpace(c.Param("id"))
	view, err := h.Pulse.Get(c.Request.Context(), venueID)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.Hub == nil {
		Error(c, http.StatusServiceUnavailable, "stream unavailable", nil)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger().Debug("stream: accept failed", zap.String("venue_id", venueID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	updates, cancel := h.Hub.Subscribe(venueID, 8)
	defer cancel()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(c.Request.Context())

	if err := writeJSON(ctx, conn, view); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case u, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "unsubscribed")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, u.Payload)
			wcancel()
			if err != nil {
				h.logger().Debug("stream: write failed", zap.String("venue_id", venueID), zap.Error(err))
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (h *PulseHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
