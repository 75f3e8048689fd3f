package api

import (
	"net/http"
	"strconv"

	"hubitatbridge/internal/events"
	"hubitatbridge/internal/storage"
)

// EventsHandler handles event log and command history endpoints
type EventsHandler struct {
	store   *events.Store
	history storage.Storage
}

// NewEventsHandler creates new events handler. history may be nil.
func NewEventsHandler(store *events.Store, history storage.Storage) *EventsHandler {
	return &EventsHandler{store: store, history: history}
}

// List returns events from the store
// GET /api/events?limit=50&since=123
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	// Check for since parameter (get events after ID)
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		sinceID, err := strconv.ParseInt(sinceStr, 10, 64)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"events": nonNil(h.store.GetSince(sinceID)),
				"lastId": h.store.LastID(),
			})
			return
		}
	}

	limit := parseLimit(r, 50, 100)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": h.store.GetLast(limit),
		"lastId": h.store.LastID(),
	})
}

// History returns issued commands, oldest first
// GET /api/history?limit=100
func (h *EventsHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"commands": []storage.CommandHistoryEntry{}})
		return
	}

	entries, err := h.history.GetCommandHistory(parseLimit(r, 100, 500))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read command history")
		return
	}
	if entries == nil {
		entries = []storage.CommandHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"commands": entries})
}

func parseLimit(r *http.Request, def, max int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= max {
			return l
		}
	}
	return def
}

func nonNil(list []events.Event) []events.Event {
	if list == nil {
		return []events.Event{}
	}
	return list
}
