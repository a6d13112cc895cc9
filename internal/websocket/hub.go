package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event types pushed to listeners
const (
	EventJobStarted  = "JOB_STARTED"
	EventJobFinished = "JOB_FINISHED"
	EventItemFailed  = "ITEM_FAILED"
)

// Event is one job notification
type Event struct {
	Type  string      `json:"type"`
	Job   string      `json:"job"`
	RunID string      `json:"runId"`
	Time  time.Time   `json:"time"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active listeners and broadcasts job events
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Outbound events
	broadcast chan Event

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("📡 Listener connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				log.Printf("📴 Listener disconnected: %s", client.ID)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// Publish queues an event for every listener. It never blocks the caller:
// when the queue is full the event is dropped.
func (h *Hub) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Printf("⚠️  Event queue full, dropping %s for %s", event.Type, event.Job)
	}
}

// Listeners returns the number of connected clients
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.wants(event.Job) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// Buffer full or client dead
		}
	}
}
