package notify

import (
	"log/slog"
	"net/http"

	"golang.org/x/net/websocket"

	"usersapi/pkg/requestcontext"
)

// WebSocketHandler streams hub notifications to a websocket client as JSON frames.
// Inbound frames are read and discarded; the read loop only detects closure.
type WebSocketHandler struct {
	hub    *Hub
	logger *slog.Logger
	ws     websocket.Handler
}

func NewWebSocketHandler(hub *Hub, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{hub: hub, logger: logger}
	h.ws = websocket.Handler(h.serve)
	return h
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.ws.ServeHTTP(w, r)
}

func (h *WebSocketHandler) serve(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := conn.Request().Context()
	sub, err := h.hub.Connect()
	if err != nil {
		h.logger.WarnContext(ctx, "rejecting notification subscriber", "error", err)
		return
	}
	defer h.hub.Disconnect(sub)

	actor := ""
	if identity, ok := requestcontext.Identity(ctx); ok {
		actor = identity.Email
	}
	h.logger.InfoContext(ctx, "notification subscriber connected",
		"subscriber_id", sub.ID(),
		"actor_email", actor,
	)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			h.logger.InfoContext(ctx, "notification subscriber left", "subscriber_id", sub.ID())
			return
		case <-sub.Done():
			return
		case n := <-sub.Messages():
			if err := websocket.JSON.Send(conn, n); err != nil {
				h.logger.InfoContext(ctx, "notification write failed, disconnecting",
					"subscriber_id", sub.ID(),
					"error", err,
				)
				return
			}
		}
	}
}
