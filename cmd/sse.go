package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/model"
)

// sseBroadcaster fans pipeline progress events out to connected
// subscribers. A slow subscriber drops events rather than stalling the
// pipeline.
type sseBroadcaster struct {
	mu   sync.Mutex
	subs map[chan model.ProgressEvent]struct{}
}

func newSSEBroadcaster() *sseBroadcaster {
	return &sseBroadcaster{subs: make(map[chan model.ProgressEvent]struct{})}
}

// Emit implements pipeline.Emitter.
func (b *sseBroadcaster) Emit(event model.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *sseBroadcaster) subscribe() chan model.ProgressEvent {
	ch := make(chan model.ProgressEvent, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *sseBroadcaster) unsubscribe(ch chan model.ProgressEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// ServeHTTP streams events as server-sent events until the client
// disconnects.
func (b *sseBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch := b.subscribe()
	defer b.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-ch:
			payload, err := json.Marshal(event)
			if err != nil {
				zap.L().Warn("sse: marshal event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}
