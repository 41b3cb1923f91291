package router

import (
	"encoding/json"

	"github.com/davidpro08/web15-ipconfig/pkg/state"
	"github.com/davidpro08/web15-ipconfig/pkg/widget"
)

// Inbound events.
const (
	EventUserJoin      = "user:join"
	EventUserLeave     = "user:leave"
	EventCursorMove    = "cursor:move"
	EventWidgetCreate  = "widget:create"
	EventWidgetUpdate  = "widget:update"
	EventWidgetDelete  = "widget:delete"
	EventWidgetLoadAll = "widget:load_all"
)

// Outbound events.
const (
	EventUserStatus    = "user:status"
	EventUserJoined    = "user:joined"
	EventUserLeft      = "user:left"
	EventCursorMoved   = "cursor:moved"
	EventWidgetCreated = "widget:created"
	EventWidgetUpdated = "widget:updated"
	EventWidgetDeleted = "widget:deleted"
	EventWidgetList    = "widget:list"
	EventError         = "error"
)

const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
)

// Error codes carried in direct error replies. Failures are reported to the
// originating connection only, never broadcast.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeNotJoined  = "NOT_JOINED"
	CodeBadRequest = "BAD_REQUEST"
)

// ClientMessage is the inbound wire frame.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	WorkspaceID string     `json:"workspaceId"`
	User        state.User `json:"user"`
}

type cursorMovePayload struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type widgetUpdatePayload struct {
	WidgetID string             `json:"widgetId"`
	Data     widget.PartialData `json:"data"`
}

type widgetDeletePayload struct {
	WidgetID string `json:"widgetId"`
}

type statusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type joinedPayload struct {
	AllUsers []state.User   `json:"allUsers"`
	Cursors  []state.Cursor `json:"cursors"`
}

type leftPayload struct {
	UserID string `json:"userId"`
}

type widgetListPayload struct {
	Widgets []widget.Widget `json:"widgets"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
