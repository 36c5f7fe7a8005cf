package relay

import (
	"errors"
	"sync"

	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

// RoomKind namespaces room ids, so a group id can never name a personal or
// conversation room.
type RoomKind string

const (
	RoomUser         RoomKind = "user"
	RoomConversation RoomKind = "conversation"
	RoomGroup        RoomKind = "group"
)

func roomName(kind RoomKind, id string) string {
	return string(kind) + ":" + id
}

// Hub is the in-memory room table. A room is a set of connections; every
// connection sits in the personal room of its user and in any conversation
// or group rooms it joined. Nothing here is persisted.
type Hub struct {
	rooms   map[string]map[*Conn]struct{}
	members map[*Conn]map[string]struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Conn]struct{}),
		members: make(map[*Conn]map[string]struct{}),
	}
}

// Register adds the connection and joins it to its personal room.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	if _, ok := h.members[c]; !ok {
		h.members[c] = make(map[string]struct{})
		connectionsGauge.Inc()
	}
	h.join(c, roomName(RoomUser, c.userId))
	h.mu.Unlock()

	logging.Info("connection registered",
		zap.String("user_id", c.userId),
		zap.String("conn_id", c.id),
	)
}

// Unregister removes the connection from every room it joined.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	rooms, ok := h.members[c]
	if ok {
		for room := range rooms {
			h.leave(c, room)
		}
		delete(h.members, c)
		connectionsGauge.Dec()
	}
	h.mu.Unlock()

	if ok {
		logging.Info("connection unregistered",
			zap.String("user_id", c.userId),
			zap.String("conn_id", c.id),
		)
	}
}

// Join adds a registered connection to a conversation or group room. The
// personal room is joined by Register only.
func (h *Hub) Join(c *Conn, kind RoomKind, id string) {
	if kind == RoomUser {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.members[c]; !ok {
		return
	}
	h.join(c, roomName(kind, id))
}

func (h *Hub) Leave(c *Conn, kind RoomKind, id string) {
	if kind == RoomUser {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.members[c]; !ok {
		return
	}
	h.leave(c, roomName(kind, id))
}

func (h *Hub) join(c *Conn, room string) {
	conns, ok := h.rooms[room]
	if !ok {
		conns = make(map[*Conn]struct{})
		h.rooms[room] = conns
		roomsGauge.Inc()
	}
	conns[c] = struct{}{}
	h.members[c][room] = struct{}{}
}

func (h *Hub) leave(c *Conn, room string) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, room)
			roomsGauge.Dec()
		}
	}
	delete(h.members[c], room)
}

func (h *Hub) IsMember(c *Conn, kind RoomKind, id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomName(kind, id)][c]
	return ok
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomName(RoomUser, userId)]) > 0
}

func (h *Hub) snapshot(room string, except *Conn) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != except {
			conns = append(conns, c)
		}
	}
	return conns
}

// Broadcast emits the event to every connection of the room except the
// given one (nil excludes nobody) and returns how many connections got it.
// Write failures are logged; the read loop of a broken connection tears it
// down.
func (h *Hub) Broadcast(kind RoomKind, id string, except *Conn, event string, data interface{}) int {
	delivered := 0
	for _, c := range h.snapshot(roomName(kind, id), except) {
		err := c.Emit(event, data)
		if errors.Is(err, ErrConnClosed) {
			continue
		}
		if err != nil {
			logging.Warn("failed to deliver event",
				zap.String("event", event),
				zap.String("conn_id", c.id),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	framesCounter.WithLabelValues(event).Add(float64(delivered))
	return delivered
}

// EmitToUser delivers to the personal room of userId.
func (h *Hub) EmitToUser(userId, event string, data interface{}) int {
	return h.Broadcast(RoomUser, userId, nil, event, data)
}

// CloseAll closes every registered connection. Their read loops then fail
// and unregister them.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.members))
	for c := range h.members {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			logging.Warn("failed to close connection", zap.String("conn_id", c.id), zap.Error(err))
		}
	}
}

type Stats struct {
	Connections int
	OnlineUsers int
	Rooms       int
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make(map[string]struct{})
	for c := range h.members {
		users[c.userId] = struct{}{}
	}
	return Stats{
		Connections: len(h.members),
		OnlineUsers: len(users),
		Rooms:       len(h.rooms),
	}
}
