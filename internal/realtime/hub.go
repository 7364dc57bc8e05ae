// Package realtime pushes analytics snapshots to connected WebSocket clients.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/logger"
)

// Conn is the part of a WebSocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// State is the lifecycle state of a subscriber connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

var errNotOpen = errors.New("subscriber is not open")

// Subscriber is a registered connection bound to the user that opened it.
type Subscriber struct {
	ID     string
	UserID string

	conn      Conn
	state     atomic.Int32
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// SetState moves the subscriber to st.
func (s *Subscriber) SetState(st State) {
	s.state.Store(int32(st))
}

func (s *Subscriber) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.State() != StateOpen {
		return errNotOpen
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		s.SetState(StateClosed)
		_ = s.conn.Close()
	})
}

// Result counts the outcome of one fan-out.
type Result struct {
	Delivered int `json:"delivered"`
	Dropped   int `json:"dropped"`
	Skipped   int `json:"skipped"`
}

// Hub owns the set of live subscribers. It is safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[Conn]*Subscriber
	log         *zap.SugaredLogger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[Conn]*Subscriber),
		log:         logger.Named("realtime.hub"),
	}
}

// Register adds conn as an open subscriber for userID. Registering the same
// connection twice returns the existing subscriber.
func (h *Hub) Register(conn Conn, userID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[conn]; ok {
		return sub
	}

	sub := &Subscriber{ID: uuid.NewString(), UserID: userID, conn: conn}
	sub.SetState(StateOpen)
	h.subscribers[conn] = sub

	h.log.Debugw("subscriber registered", "subscriber_id", sub.ID, "user_id", userID, "total", len(h.subscribers))
	return sub
}

// Unregister removes conn and closes it. Unknown connections are ignored.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	sub, ok := h.subscribers[conn]
	if ok {
		delete(h.subscribers, conn)
	}
	total := len(h.subscribers)
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.SetState(StateClosing)
	sub.close()
	h.log.Debugw("subscriber unregistered", "subscriber_id", sub.ID, "user_id", sub.UserID, "total", total)
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast sends payload to every open subscriber.
func (h *Hub) Broadcast(payload any) (Result, error) {
	return h.publish(payload, func(*Subscriber) bool { return true })
}

// BroadcastTo sends payload to the open subscribers of userID only.
func (h *Hub) BroadcastTo(userID string, payload any) (Result, error) {
	return h.publish(payload, func(s *Subscriber) bool { return s.UserID == userID })
}

// Close unregisters every subscriber.
func (h *Hub) Close() {
	for _, sub := range h.snapshot() {
		h.Unregister(sub.conn)
	}
}

func (h *Hub) snapshot() []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

// publish serializes payload once and writes the same bytes to each matching
// subscriber. Nothing is queued or retried; a subscriber whose write fails is
// unregistered.
func (h *Hub) publish(payload any, match func(*Subscriber) bool) (Result, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, sub := range h.snapshot() {
		if !match(sub) {
			continue
		}
		if sub.State() != StateOpen {
			res.Skipped++
			continue
		}

		if err := sub.send(data); err != nil {
			if errors.Is(err, errNotOpen) {
				res.Skipped++
				continue
			}
			res.Dropped++
			h.log.Warnw("broadcast delivery failed",
				"code", apperrors.ErrBroadcastPartialFailure.Code,
				"subscriber_id", sub.ID,
				"user_id", sub.UserID,
				"error", err,
			)
			h.Unregister(sub.conn)
			continue
		}
		res.Delivered++
	}
	return res, nil
}
