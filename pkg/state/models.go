package state

import (
	"github.com/google/uuid"
)

// User is the identity a client presents when joining a workspace. There is
// no account system behind it; the join payload is the source of truth.
type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Color    string `json:"color"`
}

// Session binds a live connection to its current room and user identity.
// At most one session exists per connection at any time.
type Session struct {
	ConnID uuid.UUID
	RoomID string
	User   User
}

// Cursor is the ephemeral pointer position of one user within one room.
// Seeded off-canvas on join, overwritten on every move, removed on leave or
// disconnect. At most one cursor exists per (room, user).
type Cursor struct {
	RoomID string  `json:"workspaceId"`
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}
