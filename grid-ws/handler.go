package gridws

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	gridmetrics "github.com/gridlive/gridlive/grid-metrics"
)

// DefaultWriteWait bounds every transport write. Expiry counts as a send
// failure, so one slow client cannot degrade fan-out to the others.
const DefaultWriteWait = 10 * time.Second

// Greeting is the human-readable body of the connected frame.
const Greeting = "Connected to gridlive update stream"

// Handler upgrades HTTP requests to websocket sessions, registers them, and
// pumps inbound frames into the relay.
type Handler struct {
	Relay    *Relay
	Registry *Registry
	Logger   zerolog.Logger
	Metrics  *gridmetrics.Metrics // optional

	// WriteWait overrides DefaultWriteWait when positive.
	WriteWait time.Duration

	nextID   atomic.Uint64
	draining atomic.Bool
}

// StopAccepting rejects any further upgrade attempts. Connections already
// established stay registered; the shutdown drain notifies and closes them.
func (h *Handler) StopAccepting() {
	h.draining.Store(true)
}

// The demo serves browsers from any origin; auth is out of scope.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (h *Handler) writeWait() time.Duration {
	if h.WriteWait > 0 {
		return h.WriteWait
	}
	return DefaultWriteWait
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// A client upgraded mid-drain would miss the going-away pass.
	if h.draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Str("remote", req.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	id := fmt.Sprintf("conn-%d", h.nextID.Add(1))
	logger := h.Logger.With().Str("connection_id", id).Str("remote", req.RemoteAddr).Logger()
	conn := NewConn(id, &wsSender{ws: ws, writeWait: h.writeWait()})

	if err := conn.Send(ConnectedMessage(Greeting)); err != nil {
		logger.Warn().Err(err).Msg("failed to send greeting")
		_ = conn.Close()
		return
	}

	conn.setState(StateOpen)
	h.Registry.Register(conn)
	h.Metrics.ConnectionOpened()
	logger.Info().Int("connections", h.Registry.Len()).Msg("connection established")

	defer func() {
		h.Registry.Unregister(conn)
		_ = conn.Close()
		h.Metrics.ConnectionClosed()
		logger.Info().Int("connections", h.Registry.Len()).Msg("connection closed")
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("connection read error")
			}
			return
		}
		h.Relay.HandleRaw(req.Context(), conn, data)
	}
}

// wsSender adapts a gorilla connection to the Sender interface. The mutex
// keeps the relay loop, the greeting, and the shutdown close frame off each
// other; gorilla permits only one concurrent writer.
type wsSender struct {
	mu        sync.Mutex
	ws        *websocket.Conn
	writeWait time.Duration
}

func (s *wsSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(s.writeWait))
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

// Close notifies the peer that the server is going away, then tears down the
// transport.
func (s *wsSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(s.writeWait)
	_ = s.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing connection"),
		deadline,
	)
	return s.ws.Close()
}
