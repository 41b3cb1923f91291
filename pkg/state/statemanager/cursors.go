package statemanager

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/davidpro08/web15-ipconfig/pkg/state"
)

// InMemoryCursors stores pointer positions per room. Writes are last-write-
// wins and commutative, so a single mutex around the map updates is all the
// serialization they need.
type InMemoryCursors struct {
	mu    sync.RWMutex
	rooms map[string]map[string]state.Cursor

	logger *slog.Logger
}

func NewInMemoryCursors(logger *slog.Logger) *InMemoryCursors {
	return &InMemoryCursors{
		rooms:  make(map[string]map[string]state.Cursor),
		logger: logger.With(slog.String("component", "cursor_store")),
	}
}

var _ state.CursorStore = (*InMemoryCursors)(nil)

func (m *InMemoryCursors) SetCursor(roomID, userID string, x, y float64) {
	m.upsert(roomID, userID, x, y)
}

func (m *InMemoryCursors) UpdateCursor(roomID, userID string, x, y float64) {
	m.upsert(roomID, userID, x, y)
}

func (m *InMemoryCursors) upsert(roomID, userID string, x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cursors, ok := m.rooms[roomID]
	if !ok {
		cursors = make(map[string]state.Cursor)
		m.rooms[roomID] = cursors
	}
	cursors[userID] = state.Cursor{RoomID: roomID, UserID: userID, X: x, Y: y}
}

func (m *InMemoryCursors) RemoveCursor(roomID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cursors, ok := m.rooms[roomID]
	if !ok {
		return
	}
	delete(cursors, userID)
	if len(cursors) == 0 {
		delete(m.rooms, roomID)
	}
}

func (m *InMemoryCursors) ListByRoom(roomID string) []state.Cursor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cursors := make([]state.Cursor, 0, len(m.rooms[roomID]))
	for _, c := range m.rooms[roomID] {
		cursors = append(cursors, c)
	}
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].UserID < cursors[j].UserID })
	return cursors
}
