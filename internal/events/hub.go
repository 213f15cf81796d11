package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ojcore/pkg/utils/logger"
)

// DefaultHistoryWindow is how long published events stay replayable to
// newly connecting subscribers.
const DefaultHistoryWindow = 300 * time.Second

type timestampedEvent struct {
	at    time.Time
	event Event
}

// Hub fans events out to per-user subscribers and retains a bounded history
// so a client connecting mid-evaluation catches up. All maps are owned by a
// single goroutine; the exported methods hand it closures over a command
// channel, so no locking is needed.
type Hub struct {
	window time.Duration

	ops  chan func()
	quit chan struct{}
	done chan struct{}

	sessions map[int64]map[string]Subscriber
	history  map[int64][]timestampedEvent
}

// NewHub starts a hub whose history is bounded by the given window. A
// non-positive window falls back to DefaultHistoryWindow.
func NewHub(window time.Duration) *Hub {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	h := &Hub{
		window:   window,
		ops:      make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		sessions: make(map[int64]map[string]Subscriber),
		history:  make(map[int64][]timestampedEvent),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.window)
	defer ticker.Stop()
	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			h.expire()
		case op := <-h.ops:
			op()
		}
	}
}

// do runs op on the owner goroutine and waits for it to finish.
func (h *Hub) do(op func()) {
	finished := make(chan struct{})
	select {
	case h.ops <- func() { op(); close(finished) }:
	case <-h.quit:
		return
	}
	select {
	case <-finished:
	case <-h.done:
	}
}

// Connect registers a subscriber for a user, replays every retained event
// for that user in order, and returns an opaque session id.
func (h *Hub) Connect(userID int64, subscriber Subscriber) string {
	sessionID := uuid.NewString()
	h.do(func() {
		if h.sessions[userID] == nil {
			h.sessions[userID] = make(map[string]Subscriber)
		}
		h.sessions[userID][sessionID] = subscriber
		for _, entry := range h.history[userID] {
			if err := subscriber.Notify(entry.event); err != nil {
				logger.Warn(context.Background(), "event replay failed",
					zap.Int64("user_id", userID),
					zap.String("session_id", sessionID),
					zap.Error(err))
			}
		}
	})
	return sessionID
}

// Disconnect removes a subscriber. An unknown session is logged as an
// anomaly but is not an error.
func (h *Hub) Disconnect(userID int64, sessionID string) {
	h.do(func() {
		subs := h.sessions[userID]
		if _, ok := subs[sessionID]; !ok {
			logger.Warn(context.Background(), "disconnect for unknown session",
				zap.Int64("user_id", userID),
				zap.String("session_id", sessionID))
			return
		}
		delete(subs, sessionID)
		if len(subs) == 0 {
			delete(h.sessions, userID)
		}
	})
}

// Publish delivers the event to every subscriber of the user, best effort,
// then appends it to the user's history.
func (h *Hub) Publish(userID int64, event Event) {
	h.do(func() {
		for sessionID, subscriber := range h.sessions[userID] {
			if err := subscriber.Notify(event); err != nil {
				logger.Warn(context.Background(), "event delivery failed",
					zap.Int64("user_id", userID),
					zap.String("session_id", sessionID),
					zap.Error(err))
			}
		}
		h.history[userID] = append(h.history[userID], timestampedEvent{
			at:    time.Now(),
			event: event,
		})
	})
}

// expire drops history entries older than the window and removes emptied
// user entries to bound memory. Runs on the owner goroutine only.
func (h *Hub) expire() {
	cutoff := time.Now().Add(-h.window)
	for userID, entries := range h.history {
		idx := 0
		for idx < len(entries) && entries[idx].at.Before(cutoff) {
			idx++
		}
		switch {
		case idx == len(entries):
			delete(h.history, userID)
		case idx > 0:
			h.history[userID] = append([]timestampedEvent(nil), entries[idx:]...)
		}
	}
}

// Stop shuts the hub down and waits for the owner goroutine to exit.
func (h *Hub) Stop() {
	close(h.quit)
	<-h.done
}

// HubNotifier binds a hub to one user for injection into evaluation.
type HubNotifier struct {
	hub    *Hub
	userID int64
}

func NewHubNotifier(hub *Hub, userID int64) *HubNotifier {
	return &HubNotifier{hub: hub, userID: userID}
}

func (n *HubNotifier) Publish(event Event) {
	n.hub.Publish(n.userID, event)
}
