package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bdobrica/aether/internal/aether/chat"
)

const (
	pingInterval = 30 * time.Second
	pongTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	sendBuffer   = 32
)

// Event is pushed to websocket subscribers of a character.
type Event struct {
	Type      string    `json:"type"` // "status" or "message"
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type subscriber struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// offer queues msg without blocking. It reports false when the buffer is
// full.
func (s *subscriber) offer(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	s.mu.Unlock()
	_ = s.conn.Close()
}

// Hub fans engine notifications out to the websocket clients subscribed to
// each character. It implements chat.Observer and never blocks the cycle:
// a subscriber whose buffer is full is dropped.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates an empty hub. A nil logger falls back to slog.Default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		logger: logger,
		upgrader: websocket.Upgrader{
			// The UI is served from arbitrary local origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// StatusChanged implements chat.Observer.
func (h *Hub) StatusChanged(st chat.Status) {
	h.publish(st.CharID, Event{Type: "status", Payload: st})
}

// MessageAppended implements chat.Observer.
func (h *Hub) MessageAppended(m chat.Message) {
	h.publish(m.CharID, Event{Type: "message", Payload: m})
}

// Subscribers reports how many clients follow charID.
func (h *Hub) Subscribers(charID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[charID])
}

func (h *Hub) publish(charID string, ev Event) {
	ev.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("api: encode event", "err", err)
		return
	}

	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[charID]))
	for s := range h.subs[charID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.offer(payload) {
			h.remove(charID, s)
		}
	}
}

func (h *Hub) add(charID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[charID] == nil {
		h.subs[charID] = make(map[*subscriber]struct{})
	}
	h.subs[charID][s] = struct{}{}
}

func (h *Hub) remove(charID string, s *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[charID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, charID)
		}
	}
	h.mu.Unlock()
	s.close()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for charID, set := range h.subs {
		for s := range set {
			s.close()
		}
		delete(h.subs, charID)
	}
}

// serve upgrades the request and streams charID's events until the client
// goes away. The initial event is the character's current status.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, charID string, initial chat.Status) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("api: websocket upgrade failed", "err", err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(charID, s)

	if first, err := json.Marshal(Event{Type: "status", Timestamp: time.Now().UTC(), Payload: initial}); err == nil {
		s.offer(first)
	}

	go h.writePump(charID, s)
	h.readPump(charID, s)
}

// readPump only drains control frames; clients do not send commands.
func (h *Hub) readPump(charID string, s *subscriber) {
	defer h.remove(charID, s)

	deadline := pingInterval + pongTimeout
	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(deadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("api: websocket read", "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(charID string, s *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(charID, s)
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
