package rest

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ersonp/pivot/internal/infrastructure/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Request is a client message on the events socket.
type Request struct {
	Type   string `json:"type"`
	Pivot  string `json:"pivot,omitempty"`
	LeftID string `json:"left_id,omitempty"`
}

// handleEvents streams committed change events over a websocket. The
// initial filter comes from the pivot and left_id query parameters; a
// "listen" message replaces it.
func (h *Handler) handleEvents(c echo.Context) error {
	if h.hub == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "events are disabled"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx := c.Request().Context()

	stream, cancel := h.hub.Subscribe(events.Filter{
		Pivot:  c.QueryParam("pivot"),
		LeftID: c.QueryParam("left_id"),
	})
	defer func() { cancel() }()

	listen := make(chan events.Filter)
	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case listen <- events.Filter{Pivot: req.Pivot, LeftID: req.LeftID}:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, "Socket subscribe",
					slog.String("pivot", req.Pivot),
					slog.String("left_id", req.LeftID),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case filter := <-listen:
			cancel()
			stream, cancel = h.hub.Subscribe(filter)
		case event, ok := <-stream:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(event); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
