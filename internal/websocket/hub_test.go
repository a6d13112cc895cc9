package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitListeners(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Listeners() == n }, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	waitListeners(t, hub, 1)

	hub.Publish(Event{Type: EventJobStarted, Job: "brands", RunID: "r1"})

	ev := readEvent(t, conn)
	assert.Equal(t, EventJobStarted, ev.Type)
	assert.Equal(t, "brands", ev.Job)
	assert.Equal(t, "r1", ev.RunID)
	assert.False(t, ev.Time.IsZero())
}

func TestHubFiltersByJob(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "?job=products-stocks")
	waitListeners(t, hub, 1)

	hub.Publish(Event{Type: EventJobStarted, Job: "brands", RunID: "r1"})
	hub.Publish(Event{Type: EventItemFailed, Job: "products-stocks", RunID: "r2", Data: map[string]string{"key": "A1"}})

	ev := readEvent(t, conn)
	assert.Equal(t, EventItemFailed, ev.Type)
	assert.Equal(t, "r2", ev.RunID)
}

func TestHubUnregistersClosedListeners(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	waitListeners(t, hub, 1)

	conn.Close()
	waitListeners(t, hub, 0)
}
