package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Listeners only send subscriptions.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// ID assigned on connect
	ID string

	// Jobs the client subscribed to; empty means all
	mu   sync.RWMutex
	jobs map[string]bool
}

// SubscribeMessage narrows the events a listener receives
type SubscribeMessage struct {
	Type  string   `json:"type"` // "SUBSCRIBE"
	Jobs  []string `json:"jobs"`
	MsgID string   `json:"msgId,omitempty"`
}

func (c *Client) wants(job string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.jobs) == 0 || c.jobs[job]
}

func (c *Client) subscribe(jobs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = make(map[string]bool, len(jobs))
	for _, j := range jobs {
		c.jobs[j] = true
	}
}

// readPump reads subscriptions until the connection closes.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS error: %v", err)
			}
			break
		}

		var msg SubscribeMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "SUBSCRIBE" {
			continue
		}
		c.subscribe(msg.Jobs)
		c.SendJSON(map[string]interface{}{
			"type":  "ACK",
			"msgId": msg.MsgID,
			"jobs":  msg.Jobs,
		})
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client without blocking
func (c *Client) SendJSON(v interface{}) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.send <- msg:
	default:
	}
	return nil
}

// ServeWs upgrades the request and registers the connection as a listener.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), ID: "web_" + uuid.New().String()}
	if jobs := r.URL.Query()["job"]; len(jobs) > 0 {
		client.subscribe(jobs)
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
