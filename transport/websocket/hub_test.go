package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/mergegame/game/engine"
)

func newTestClient(hub *Hub, sessionID string, buffer int) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, buffer),
	}
}

func testState(hash string, score int) *engine.GameState {
	return &engine.GameState{
		Board:     engine.Grid{{2, 0}, {0, 2}},
		BoardSize: 2,
		Score:     score,
		BoardHash: hash,
	}
}

func decode(t *testing.T, data []byte) Message {
	t.Helper()
	var message Message
	require.NoError(t, json.Unmarshal(data, &message))
	return message
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	require.NotNil(t, hub)
	assert.NotNil(t, hub.sessions)
	assert.NotNil(t, hub.lastSent)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.done)
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session", 1)

	hub.registerClient(client)

	assert.True(t, hub.sessions["test-session"][client])
	assert.Equal(t, 1, hub.clientCount("test-session"))
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session", 1)

	hub.registerClient(client)
	hub.broadcastMessage(&Message{SessionID: "test-session", GameState: testState("a", 0)})
	hub.unregisterClient(client)

	_, exists := hub.sessions["test-session"]
	assert.False(t, exists, "session should be cleaned up after last client left")
	_, tracked := hub.lastSent["test-session"]
	assert.False(t, tracked)

	// Unregistering twice is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	client1 := newTestClient(hub, "multi", 4)
	client2 := newTestClient(hub, "multi", 4)
	other := newTestClient(hub, "other", 4)

	hub.registerClient(client1)
	hub.registerClient(client2)
	hub.registerClient(other)
	assert.Equal(t, 2, hub.clientCount("multi"))

	hub.broadcastMessage(&Message{SessionID: "multi", GameState: testState("a", 4), Event: EventStateUpdate})
	assert.Len(t, client1.send, 1)
	assert.Len(t, client2.send, 1)
	assert.Empty(t, other.send, "broadcasts stay within a session")

	hub.unregisterClient(client1)
	assert.Equal(t, 1, hub.clientCount("multi"))
	assert.True(t, hub.sessions["multi"][client2])
}

func TestHubBroadcastSkipsUnchangedState(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "dedupe", 8)
	hub.registerClient(client)

	hub.broadcastMessage(&Message{SessionID: "dedupe", GameState: testState("a", 4), Event: EventStateUpdate})
	hub.broadcastMessage(&Message{SessionID: "dedupe", GameState: testState("a", 4), Event: EventStateUpdate})
	hub.broadcastMessage(&Message{SessionID: "dedupe", GameState: testState("a", 8), Event: EventStateUpdate})
	hub.broadcastMessage(&Message{SessionID: "dedupe", GameState: testState("b", 8), Event: EventStateUpdate})
	// Events without state are never deduplicated
	hub.broadcastMessage(&Message{SessionID: "dedupe", Event: EventGameEvent, Data: "x"})
	hub.broadcastMessage(&Message{SessionID: "dedupe", Event: EventGameEvent, Data: "x"})

	require.Len(t, client.send, 5)
	first := decode(t, <-client.send)
	assert.Equal(t, 4, first.GameState.Score)
	second := decode(t, <-client.send)
	assert.Equal(t, 8, second.GameState.Score)
	third := decode(t, <-client.send)
	assert.Equal(t, "b", third.GameState.BoardHash)
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	hub.broadcastMessage(&Message{SessionID: "nobody", GameState: testState("a", 0)})

	// No dedupe state is kept for sessions nobody watches
	assert.Empty(t, hub.lastSent)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "slow", 4)
	hub.registerClient(slow)
	hub.registerClient(fast)

	hub.broadcastMessage(&Message{SessionID: "slow", GameState: testState("a", 2)})
	hub.broadcastMessage(&Message{SessionID: "slow", GameState: testState("b", 4)})

	assert.Equal(t, 1, hub.clientCount("slow"))
	assert.True(t, hub.sessions["slow"][fast])
	assert.Len(t, fast.send, 2)

	// The slow client's channel was closed after its buffered message
	<-slow.send
	_, open := <-slow.send
	assert.False(t, open)
}

func TestHubBroadcastQueues(t *testing.T) {
	hub := NewHub()

	hub.BroadcastToSession("queued", testState("a", 16))
	hub.BroadcastEvent("queued", "custom-event", "test-data")

	require.Len(t, hub.broadcast, 2)
	state := <-hub.broadcast
	assert.Equal(t, EventStateUpdate, state.Event)
	assert.Equal(t, 16, state.GameState.Score)

	event := <-hub.broadcast
	assert.Equal(t, "custom-event", event.Event)
	assert.Equal(t, "test-data", event.Data)
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.BroadcastToSession("full", testState("a", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastToSession blocked on a full queue")
	}
	assert.Len(t, hub.broadcast, broadcastBuffer)
}

func TestHubRunStopsOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- hub.Run(ctx) }()

	client := newTestClient(hub, "stop", 1)
	hub.register <- client
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, open := <-client.send
	assert.False(t, open, "clients are closed on shutdown")
	assert.Empty(t, hub.sessions)
}

func TestWebSocketEndToEnd(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws-test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	messages := make(chan Message, 16)
	go func() {
		defer close(messages)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var message Message
			if json.Unmarshal(data, &message) == nil {
				messages <- message
			}
		}
	}()

	// Registration completes asynchronously; broadcast until a message arrives
	attempt := 0
	require.Eventually(t, func() bool {
		attempt++
		hub.BroadcastToSession("ws-test", testState("warmup", -attempt))
		select {
		case <-messages:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	// Drain late warmup messages
	for drained := false; !drained; {
		select {
		case <-messages:
		case <-time.After(50 * time.Millisecond):
			drained = true
		}
	}

	hub.BroadcastToSession("ws-test", testState("a", 100))
	hub.BroadcastToSession("ws-test", testState("a", 100))
	hub.BroadcastToSession("ws-test", testState("b", 104))

	next := func() Message {
		select {
		case message, ok := <-messages:
			require.True(t, ok, "connection closed")
			return message
		case <-time.After(time.Second):
			t.Fatal("no message received")
		}
		return Message{}
	}

	first := next()
	assert.Equal(t, "ws-test", first.SessionID)
	assert.Equal(t, EventStateUpdate, first.Event)
	assert.Equal(t, 100, first.GameState.Score)
	assert.Equal(t, engine.Grid{{2, 0}, {0, 2}}, first.GameState.Board)

	second := next()
	assert.Equal(t, "b", second.GameState.BoardHash)
	assert.Equal(t, 104, second.GameState.Score)
}
