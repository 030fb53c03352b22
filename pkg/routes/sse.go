package routes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event is a named payload pushed to SSE subscribers: sync progress, bulk
// avatar progress, new messages.
type Event struct {
	Name string
	Data any
}

// ProgressNotifier fans events out to SSE subscribers. Slow subscribers
// drop events rather than blocking the publisher.
type ProgressNotifier struct {
	subscribers map[chan Event]struct{}
	mu          sync.RWMutex
}

// NewProgressNotifier creates a new ProgressNotifier.
func NewProgressNotifier() *ProgressNotifier {
	return &ProgressNotifier{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber that will receive published events.
func (pn *ProgressNotifier) Subscribe() chan Event {
	pn.mu.Lock()
	defer pn.mu.Unlock()
	ch := make(chan Event, 8)
	pn.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber.
func (pn *ProgressNotifier) Unsubscribe(ch chan Event) {
	pn.mu.Lock()
	defer pn.mu.Unlock()
	delete(pn.subscribers, ch)
	close(ch)
}

// Publish delivers an event to all subscribers.
func (pn *ProgressNotifier) Publish(event Event) {
	pn.mu.RLock()
	defer pn.mu.RUnlock()
	for ch := range pn.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up, drop the event.
		}
	}
}

// SSE endpoint streaming progress and update events.
func (wr *WebRouter) eventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	eventCh := wr.Notifier.Subscribe()
	defer wr.Notifier.Unsubscribe(eventCh)

	ctx := r.Context()

	ticker := time.NewTicker(30 * time.Second) // Heartbeat to keep connection alive
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			data, err := json.Marshal(event.Data)
			if err != nil {
				slog.Error("error encoding SSE event", "event", event.Name, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
