package stream

import (
	"fmt"
	"log"
	"net/http"
)

// EventsHandler streams pre-encoded JSON messages as server-sent events.
type EventsHandler struct {
	broadcaster *Broadcaster[[]byte]
	event       string
}

// NewEventsHandler serves every message published on b as an SSE event
// named event.
func NewEventsHandler(b *Broadcaster[[]byte], event string) *EventsHandler {
	return &EventsHandler{broadcaster: b, event: event}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)
	log.Printf("SSE listener connected (total: %d)", h.broadcaster.ListenerCount())

	// Headers go out now so clients see the stream open before the first event.
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-listener.Done():
			return
		case msg := <-listener.C:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", h.event, msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
