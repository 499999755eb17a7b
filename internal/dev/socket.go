package dev

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/langyo/React-frontback-scaffold/internal/bridge"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

const writeWait = 10 * time.Second

// SocketServer accepts WebSocket connections and connects them to the bridge.
// The most recently opened connection is the one server logic sends to.
type SocketServer struct {
	bridge         *bridge.Bridge
	metrics        *metrics
	upgrader       websocket.Upgrader
	maxMessageSize int64
	logger         *slog.Logger

	mu    sync.RWMutex
	conns map[*socketConn]struct{}
}

type socketConn struct {
	id     string
	remote string
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
}

// NewSocketServer creates a socket server routing messages through b.
// Inbound messages larger than maxMessageSize bytes close the connection;
// zero or less means no limit.
func NewSocketServer(b *bridge.Bridge, m *metrics, maxMessageSize int64) *SocketServer {
	return &SocketServer{
		bridge:         b,
		metrics:        m,
		maxMessageSize: maxMessageSize,
		conns:          make(map[*socketConn]struct{}),
		logger:         slog.Default().With("component", "socket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes.
func (s *SocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if s.maxMessageSize > 0 {
		ws.SetReadLimit(s.maxMessageSize)
	}

	id := uuid.NewString()
	c := &socketConn{
		id:     id,
		remote: r.RemoteAddr,
		ws:     ws,
		logger: s.logger.With("conn", id),
	}

	s.bridge.BindSender(c, s.sender(c))
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	s.metrics.connectionsTotal.Inc()
	s.metrics.activeConnections.Inc()
	c.logger.Info("connection open", "remote", c.remote)

	s.readLoop(c)

	s.bridge.ReleaseSender(c)
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.metrics.activeConnections.Dec()
	ws.Close()
	c.logger.Info("connection closed", "remote", c.remote)
}

func (s *SocketServer) readLoop(c *socketConn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if err == websocket.ErrReadLimit {
				c.logger.Warn("message exceeds size limit, closing", "limit", s.maxMessageSize)
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.Warn("connection read failed", "error", err)
			}
			return
		}

		var msg any
		if err := json.Unmarshal(data, &msg); err != nil {
			devErr := errors.New("E401").WithDetail(preview(data)).Wrap(err)
			c.logger.Warn("malformed message dropped", "code", devErr.Code, "error", devErr)
			s.metrics.malformedMessages.Inc()
			continue
		}

		s.metrics.messagesTotal.Inc()
		s.bridge.Receive(msg)
	}
}

func (s *SocketServer) sender(c *socketConn) bridge.SendFunc {
	return func(msg any) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}

		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			s.metrics.sendErrors.Inc()
			return errors.New("E403").Wrap(err)
		}
		return nil
	}
}

// ConnectionCount returns the number of open connections.
func (s *SocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close closes every open connection.
func (s *SocketServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.conns {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.ws.Close()
	}
}

// preview shortens a payload for logging.
func preview(data []byte) string {
	const limit = 120
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
