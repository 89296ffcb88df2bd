package http

import (
	"log/slog"
	"sync"
)

type subscriber struct {
	ch     chan []byte
	filter func(Event) bool
}

// StreamManager fans transition events out to active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]*subscriber
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan []byte]*subscriber),
		logger:      logger,
	}
}

// Subscribe registers a listener. A nil filter receives every event. The
// returned function unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(filter func(Event) bool) (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, 10)
	sm.subscribers[ch] = &subscriber{ch: ch, filter: filter}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Len returns the number of subscribers.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast sends msg to every subscriber whose filter accepts ev.
func (sm *StreamManager) Broadcast(ev Event, msg []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, sub := range sm.subscribers {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "state", ev.State)
		}
	}
}
