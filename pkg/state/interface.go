package state

import (
	"github.com/google/uuid"
)

// SessionRegistry is the single source of truth for "which room is this
// connection in". All operations are atomic map updates.
type SessionRegistry interface {
	// Join stores the session for connID, overwriting any previous one.
	// Last join wins: callers that allow switching rooms must tear down the
	// old room's broadcast membership themselves.
	Join(connID uuid.UUID, roomID string, user User) Session

	// Leave removes and returns the prior session. Absence is not an error;
	// the second return reports whether a session existed.
	Leave(connID uuid.UUID) (Session, bool)

	// LeaveIfRoom removes the session only if it is still bound to roomID,
	// in one critical section. Concurrent teardown paths race to claim a
	// departure; exactly one caller sees true.
	LeaveIfRoom(connID uuid.UUID, roomID string) (Session, bool)

	// Get looks up the session for connID without side effects.
	Get(connID uuid.UUID) (Session, bool)

	// ListByRoom returns the users currently joined to roomID.
	ListByRoom(roomID string) []User
}

// CursorStore holds the ephemeral pointer positions of a room. SetCursor and
// UpdateCursor are the same upsert; the two names match the two call sites
// (seed-on-join vs. live-move).
type CursorStore interface {
	SetCursor(roomID, userID string, x, y float64)
	UpdateCursor(roomID, userID string, x, y float64)
	RemoveCursor(roomID, userID string)
	ListByRoom(roomID string) []Cursor
}
