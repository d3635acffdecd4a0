package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"modelprobe/internal/models"
)

const (
	feedWriteTimeout = 5 * time.Second
	feedBuffer       = 64
)

// Event types pushed on the sweep feed.
const (
	EventBatchStarted   = "batch_started"
	EventBatchCompleted = "batch_completed"
	EventSweepCompleted = "sweep_completed"
)

var feedUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// Event is one message on the sweep feed.
type Event struct {
	Type     string                `json:"type"`
	At       time.Time             `json:"at"`
	Batch    *models.Batch         `json:"batch,omitempty"`
	Outcomes []models.ProbeOutcome `json:"outcomes,omitempty"`
	Report   *models.SweepReport   `json:"report,omitempty"`
}

// Hub fans sweep progress out to websocket clients. It is a sweep observer.
// Slow clients miss events rather than stalling the sweep.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
	last    *Event
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

// BatchStarted publishes the targets of a batch about to run.
func (h *Hub) BatchStarted(batch models.Batch) {
	h.publish(Event{Type: EventBatchStarted, Batch: &batch})
}

// BatchCompleted publishes the outcomes of a finished batch.
func (h *Hub) BatchCompleted(batch models.Batch, outcomes []models.ProbeOutcome) {
	h.publish(Event{Type: EventBatchCompleted, Batch: &batch, Outcomes: outcomes})
}

// SweepCompleted publishes the final report.
func (h *Hub) SweepCompleted(report models.SweepReport) {
	h.publish(Event{Type: EventSweepCompleted, Report: &report})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *Hub) publish(ev Event) {
	ev.At = time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &ev
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) subscribe() (chan Event, *Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, false
	}
	ch := make(chan Event, feedBuffer)
	h.clients[ch] = struct{}{}
	return ch, h.last, true
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// ServeHTTP upgrades the request and streams events until either side goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.serveConnection(conn)
}

func (h *Hub) serveConnection(conn *websocket.Conn) {
	defer conn.Close()

	events, last, ok := h.subscribe()
	if !ok {
		return
	}
	defer h.unsubscribe(events)

	// A late client first sees where the sweep currently is.
	if last != nil {
		if err := writeEvent(conn, *last); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return conn.WriteJSON(ev)
}
