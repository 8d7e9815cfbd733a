// Package live is the event transport: one WebSocket per client,
// JSON event messages in, JSON delta updates out.
package live

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/recera/pulse/internal/session"
	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/state"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendBuffer = 256
)

// Server upgrades connections and routes events to per-token state
// trees. Events for one token are processed in arrival order by that
// connection's single read loop; distinct tokens are independent.
type Server struct {
	upgrader websocket.Upgrader
	store    session.Store
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewServer returns a server dispatching against the given store.
func NewServer(store session.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the deploy config carries them
				return true
			},
		},
		store:    store,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Session is one live connection, identified by its client token.
type Session struct {
	Token string

	server *Server
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

// ServeHTTP upgrades the request and runs the session until the
// connection drops. The token comes from the "token" query parameter.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := &Session{
		Token:  token,
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	s.register(sess)
	s.logger.Info("session connected", "token", token, "remote", r.RemoteAddr)

	go sess.writeLoop()
	sess.readLoop()
}

func (s *Server) register(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[sess.Token]; ok {
		old.close()
	}
	s.sessions[sess.Token] = sess
}

func (s *Server) unregister(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.Token] == sess {
		delete(s.sessions, sess.Token)
	}
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (sess *Session) close() {
	sess.once.Do(func() {
		close(sess.done)
		sess.conn.Close()
	})
}

// readLoop decodes inbound events and dispatches them one at a time,
// which serializes all mutation of this token's tree.
func (sess *Session) readLoop() {
	defer func() {
		sess.server.unregister(sess)
		sess.close()
		sess.server.logger.Info("session closed", "token", sess.Token)
	}()

	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.server.logger.Warn("unexpected close", "token", sess.Token, "error", err)
			}
			return
		}

		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			sess.server.logger.Warn("malformed event", "token", sess.Token, "error", err)
			continue
		}
		ev.Token = sess.Token
		sess.dispatch(ev)
	}
}

// dispatch runs one event through the token's tree and sends the
// resulting update. The yield hook streams partial deltas pushed by
// the handler before its final update.
func (sess *Session) dispatch(ev event.Event) {
	instance, err := sess.server.store.Get(sess.Token)
	if err != nil {
		sess.server.logger.Error("load state failed", "token", sess.Token, "error", err)
		return
	}

	instance.SetYield(func(u state.Update) { sess.sendUpdate(u) })
	update, err := instance.Process(ev)
	instance.SetYield(nil)
	if err != nil {
		var de *state.DispatchError
		if errors.As(err, &de) {
			sess.server.logger.Warn("dropping undeliverable event", "token", sess.Token, "name", ev.Name, "reason", de.Reason)
			return
		}
		sess.server.logger.Error("dispatch failed", "token", sess.Token, "name", ev.Name, "error", err)
		return
	}

	if err := sess.server.store.Set(sess.Token, instance); err != nil {
		sess.server.logger.Error("persist state failed", "token", sess.Token, "error", err)
	}
	sess.sendUpdate(*update)
}

func (sess *Session) sendUpdate(u state.Update) {
	data, err := json.Marshal(u)
	if err != nil {
		sess.server.logger.Error("encode update failed", "token", sess.Token, "error", err)
		return
	}
	select {
	case sess.send <- data:
	case <-sess.done:
	default:
		sess.server.logger.Warn("send buffer full, dropping update", "token", sess.Token)
	}
}

// writeLoop owns all writes to the connection, interleaving updates
// with keepalive pings.
func (sess *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.close()
	}()

	for {
		select {
		case data := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sess.done:
			return
		}
	}
}
