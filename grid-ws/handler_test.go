package gridws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func startRelayServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()

	registry := NewRegistry()
	relay := &Relay{Registry: registry, Logger: zerolog.Nop()}
	handler := &Handler{Relay: relay, Registry: registry, Logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = relay.Run(ctx) }()

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) *Message {
	t.Helper()
	assert.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	assert.NoError(t, err)
	msg, err := ParseMessage(data)
	assert.NoError(t, err)
	return msg
}

func TestHandlerGreeting(t *testing.T) {
	srv, registry := startRelayServer(t)

	ws := dial(t, srv)
	greeting := readMessage(t, ws)
	assert.Equal(t, MsgConnected, greeting.Type)
	assert.Equal(t, Greeting, greeting.Text)

	eventually(t, func() bool { return registry.Len() == 1 }, "connection never registered")
}

func TestHandlerBroadcastBetweenClients(t *testing.T) {
	srv, registry := startRelayServer(t)

	a := dial(t, srv)
	b := dial(t, srv)
	readMessage(t, a)
	readMessage(t, b)
	eventually(t, func() bool { return registry.Len() == 2 }, "clients never registered")

	err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"update","rowId":"row_42","columnId":"revenue","newValue":500000}`))
	assert.NoError(t, err)

	// Both clients, the originator included, see the echoed update.
	for _, ws := range []*websocket.Conn{a, b} {
		msg := readMessage(t, ws)
		assert.Equal(t, MsgUpdate, msg.Type)
		assert.Equal(t, "row_42", msg.RowID)
		assert.Equal(t, "revenue", msg.ColumnID)
		assert.Equal(t, "500000", string(msg.NewValue))
		assert.NotEmpty(t, msg.Timestamp)
	}
}

func TestHandlerDroppedClient(t *testing.T) {
	srv, registry := startRelayServer(t)

	a := dial(t, srv)
	b := dial(t, srv)
	c := dial(t, srv)
	for _, ws := range []*websocket.Conn{a, b, c} {
		readMessage(t, ws)
	}
	eventually(t, func() bool { return registry.Len() == 3 }, "clients never registered")

	assert.NoError(t, c.Close())
	eventually(t, func() bool { return registry.Len() == 2 }, "dropped client never unregistered")

	err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"update","rowId":"row_1","columnId":"status","newValue":"active"}`))
	assert.NoError(t, err)

	for _, ws := range []*websocket.Conn{a, b} {
		msg := readMessage(t, ws)
		assert.Equal(t, "status", msg.ColumnID)
	}
}

func TestHandlerStopAccepting(t *testing.T) {
	srv, registry := startRelayServer(t)

	a := dial(t, srv)
	readMessage(t, a)
	eventually(t, func() bool { return registry.Len() == 1 }, "client never registered")

	srv.Config.Handler.(*Handler).StopAccepting()

	// New connections are refused once the drain begins...
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, 1, registry.Len())

	// ...while connections established before it still receive broadcasts.
	assert.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"update","rowId":"row_1","columnId":"revenue","newValue":42}`)))
	msg := readMessage(t, a)
	assert.Equal(t, "42", string(msg.NewValue))
}

func TestHandlerMalformedMessageKeepsConnectionOpen(t *testing.T) {
	srv, _ := startRelayServer(t)

	a := dial(t, srv)
	b := dial(t, srv)
	readMessage(t, a)
	readMessage(t, b)

	assert.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	assert.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"update","rowId":"row_1","columnId":"revenue","newValue":7}`)))

	// The malformed frame is dropped silently; the next valid one flows.
	msg := readMessage(t, a)
	assert.Equal(t, "7", string(msg.NewValue))
	msg = readMessage(t, b)
	assert.Equal(t, "7", string(msg.NewValue))
}
