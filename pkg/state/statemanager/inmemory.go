package statemanager

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/davidpro08/web15-ipconfig/pkg/state"
	"github.com/google/uuid"
)

// InMemorySessions keeps the connection→session map plus a per-room index so
// ListByRoom does not scan every session. Empty room buckets are pruned.
type InMemorySessions struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]state.Session
	rooms    map[string]map[uuid.UUID]struct{}

	logger *slog.Logger
}

func NewInMemorySessions(logger *slog.Logger) *InMemorySessions {
	return &InMemorySessions{
		sessions: make(map[uuid.UUID]state.Session),
		rooms:    make(map[string]map[uuid.UUID]struct{}),
		logger:   logger.With(slog.String("component", "session_registry")),
	}
}

// compile-time check to ensure InMemorySessions implements SessionRegistry.
var _ state.SessionRegistry = (*InMemorySessions)(nil)

func (m *InMemorySessions) Join(connID uuid.UUID, roomID string, user state.User) state.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.sessions[connID]; ok {
		m.dropFromRoom(prev.RoomID, connID)
	}

	sess := state.Session{ConnID: connID, RoomID: roomID, User: user}
	m.sessions[connID] = sess

	members, ok := m.rooms[roomID]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		m.rooms[roomID] = members
	}
	members[connID] = struct{}{}

	m.logger.Debug("session joined", slog.String("connID", connID.String()), slog.String("roomID", roomID), slog.String("userID", user.ID))
	return sess
}

func (m *InMemorySessions) Leave(connID uuid.UUID) (state.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	if !ok {
		return state.Session{}, false
	}
	delete(m.sessions, connID)
	m.dropFromRoom(sess.RoomID, connID)

	m.logger.Debug("session left", slog.String("connID", connID.String()), slog.String("roomID", sess.RoomID))
	return sess, true
}

func (m *InMemorySessions) LeaveIfRoom(connID uuid.UUID, roomID string) (state.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	if !ok || sess.RoomID != roomID {
		return state.Session{}, false
	}
	delete(m.sessions, connID)
	m.dropFromRoom(sess.RoomID, connID)

	m.logger.Debug("session left", slog.String("connID", connID.String()), slog.String("roomID", sess.RoomID))
	return sess, true
}

func (m *InMemorySessions) Get(connID uuid.UUID) (state.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[connID]
	return sess, ok
}

func (m *InMemorySessions) ListByRoom(roomID string) []state.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.rooms[roomID]
	users := make([]state.User, 0, len(members))
	for connID := range members {
		users = append(users, m.sessions[connID].User)
	}
	// map order is random; keep the roster stable for clients and tests.
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// dropFromRoom removes connID from the room index, pruning the bucket when
// it empties. Caller must hold the write lock.
func (m *InMemorySessions) dropFromRoom(roomID string, connID uuid.UUID) {
	members, ok := m.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(m.rooms, roomID)
		m.logger.Debug("removed empty room index", slog.String("roomID", roomID))
	}
}
