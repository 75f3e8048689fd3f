package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hubitatbridge/internal/auth"
	"hubitatbridge/internal/events"
)

const (
	streamPollInterval = time.Second
	streamWriteWait    = 10 * time.Second
	streamPongWait     = 60 * time.Second
	streamPingInterval = 50 * time.Second
)

// StreamHandler pushes device events over a WebSocket
type StreamHandler struct {
	store        *events.Store
	wsTokenStore *auth.WSTokenStore
	upgrader     websocket.Upgrader
	logger       zerolog.Logger
}

// NewStreamHandler creates new stream handler
func NewStreamHandler(store *events.Store, wsTokenStore *auth.WSTokenStore, logger zerolog.Logger) *StreamHandler {
	h := &StreamHandler{
		store:        store,
		wsTokenStore: wsTokenStore,
		logger:       logger,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin requires a one-time ws_token to block cross-site WebSocket hijacking
func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	token := r.URL.Query().Get("ws_token")
	if token == "" {
		h.logger.Warn().Msg("event stream rejected: missing ws_token")
		return false
	}

	user, ok := h.wsTokenStore.Validate(token)
	if !ok {
		h.logger.Warn().Msg("event stream rejected: invalid or expired ws_token")
		return false
	}

	h.logger.Debug().Str("username", user.Username).Msg("event stream authorized")
	return true
}

// Connect handles GET /api/events/stream?ws_token=...&since=123
// Events are sent oldest first, one JSON object per message.
func (h *StreamHandler) Connect(w http.ResponseWriter, r *http.Request) {
	lastID := h.store.LastID()
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		if since, err := strconv.ParseInt(sinceStr, 10, 64); err == nil {
			lastID = since
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	// Reader drains control frames and notices the client going away
	closed := make(chan struct{})
	ws.SetReadDeadline(time.Now().Add(streamPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			newest := h.store.GetSince(lastID)
			for i := len(newest) - 1; i >= 0; i-- {
				ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := ws.WriteJSON(newest[i]); err != nil {
					return
				}
				lastID = newest[i].ID
			}
		}
	}
}
