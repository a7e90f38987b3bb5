package logger

import (
	"encoding/json"
	"sync"
)

const defaultTailSize = 1000

// Entry is one structured log line, decoded back out of zerolog's JSON
// output for the API and the websocket stream.
type Entry struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Hub receives live entries. The websocket hub satisfies this.
type Hub interface {
	Broadcast(msgType string, payload interface{}) error
}

// StreamWriter is an io.Writer zerolog multi-writes into. It keeps a
// bounded tail of recent entries and forwards each new one to an
// attached hub. The hub comes up after the logger, so early entries
// land only in the tail.
type StreamWriter struct {
	mu   sync.Mutex
	tail []Entry
	max  int
	hub  Hub
}

// NewStreamWriter creates a stream writer holding at most max entries.
func NewStreamWriter(max int) *StreamWriter {
	if max <= 0 {
		max = defaultTailSize
	}
	return &StreamWriter{max: max}
}

// Attach connects the hub for live forwarding.
func (w *StreamWriter) Attach(h Hub) {
	w.mu.Lock()
	w.hub = h
	w.mu.Unlock()
}

// Write decodes one JSON log line. Undecodable lines are dropped;
// zerolog must never see a write error.
func (w *StreamWriter) Write(p []byte) (int, error) {
	e, ok := decodeEntry(p)
	if !ok {
		return len(p), nil
	}

	w.mu.Lock()
	if len(w.tail) >= w.max {
		copy(w.tail, w.tail[1:])
		w.tail[len(w.tail)-1] = e
	} else {
		w.tail = append(w.tail, e)
	}
	hub := w.hub
	w.mu.Unlock()

	if hub != nil {
		_ = hub.Broadcast("log:entry", e)
	}
	return len(p), nil
}

// Recent returns up to limit buffered entries, oldest first. limit <= 0
// returns the whole tail.
func (w *StreamWriter) Recent(limit int) []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.tail)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	copy(out, w.tail[len(w.tail)-n:])
	return out
}

func decodeEntry(p []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return Entry{}, false
	}

	var e Entry
	if v, ok := raw["time"].(string); ok {
		e.Time = v
		delete(raw, "time")
	}
	if v, ok := raw["level"].(string); ok {
		e.Level = v
		delete(raw, "level")
	}
	if v, ok := raw["component"].(string); ok {
		e.Component = v
		delete(raw, "component")
	}
	if v, ok := raw["message"].(string); ok {
		e.Message = v
		delete(raw, "message")
	}
	if len(raw) > 0 {
		e.Extra = raw
	}
	return e, true
}
