package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/davidpro08/web15-ipconfig/pkg/state"
	"github.com/davidpro08/web15-ipconfig/pkg/widget"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Publisher is the minimal broadcast capability the router depends on. The
// transport broker implements it; tests substitute an in-memory fake.
type Publisher interface {
	Subscribe(roomID string, connID uuid.UUID) error
	Unsubscribe(roomID string, connID uuid.UUID)
	Publish(roomID, event string, payload any) error
	Reply(connID uuid.UUID, event string, payload any) error
}

// EventRouter turns inbound client events into store operations and
// room-wide broadcasts. Every room-scoped unit of work runs on the room's
// serial queue, so two mutations of the same room never interleave and
// subscribers see fan-out in processing order.
type EventRouter struct {
	logger   *slog.Logger
	sessions state.SessionRegistry
	cursors  state.CursorStore
	widgets  *widget.Store
	pub      Publisher
	sched    *roomScheduler
}

func NewEventRouter(logger *slog.Logger, sessions state.SessionRegistry, cursors state.CursorStore, widgets *widget.Store, pub Publisher) *EventRouter {
	return &EventRouter{
		logger:   logger.With(slog.String("component", "event_router")),
		sessions: sessions,
		cursors:  cursors,
		widgets:  widgets,
		pub:      pub,
		sched:    newRoomScheduler(),
	}
}

// HandleMessage is the transport's inbound callback. It resolves the room
// the event belongs to and hands the work to that room's queue.
func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var cm ClientMessage
	if err := json.Unmarshal(msg, &cm); err != nil {
		r.logger.Warn("unreadable client message", slog.String("connID", connID.String()), slog.Any("error", err))
		r.replyError(connID, CodeBadRequest, "malformed message")
		return
	}

	switch cm.Event {
	case EventUserJoin:
		// The room key comes from the payload; everything else resolves it
		// through the session registry.
		roomID := gjson.GetBytes(cm.Payload, "workspaceId").String()
		if roomID == "" {
			r.replyError(connID, CodeBadRequest, "join requires a workspaceId")
			return
		}
		r.sched.Submit(roomID, func() { r.handleJoin(connID, cm.Payload) })

	case EventUserLeave:
		sess, ok := r.sessions.Get(connID)
		if !ok {
			// Never announce the departure of a user who was never
			// announced as present.
			return
		}
		roomID := sess.RoomID
		r.sched.Submit(roomID, func() { r.teardown(connID, roomID) })

	case EventCursorMove:
		sess, ok := r.sessions.Get(connID)
		if !ok {
			// Sent before joining; drop silently.
			return
		}
		roomID := sess.RoomID
		r.sched.Submit(roomID, func() { r.handleCursorMove(connID, roomID, cm.Payload) })

	case EventWidgetCreate, EventWidgetUpdate, EventWidgetDelete, EventWidgetLoadAll:
		sess, ok := r.sessions.Get(connID)
		if !ok {
			r.replyError(connID, CodeNotJoined, "no active room session")
			return
		}
		roomID, event := sess.RoomID, cm.Event
		r.sched.Submit(roomID, func() { r.handleWidgetEvent(connID, roomID, event, cm.Payload) })

	default:
		r.logger.Warn("unknown event", slog.String("event", cm.Event), slog.String("connID", connID.String()))
		r.replyError(connID, CodeBadRequest, "unknown event "+cm.Event)
	}
}

// HandleDisconnect is the transport close hook. It performs exactly the same
// cleanup and broadcasts as an explicit user:leave.
func (r *EventRouter) HandleDisconnect(connID uuid.UUID) {
	sess, ok := r.sessions.Get(connID)
	if !ok {
		return
	}
	roomID := sess.RoomID
	r.sched.Submit(roomID, func() { r.teardown(connID, roomID) })
}

func (r *EventRouter) replyError(connID uuid.UUID, code, message string) {
	if err := r.pub.Reply(connID, EventError, errorPayload{Code: code, Message: message}); err != nil {
		r.logger.Debug("error reply dropped", slog.String("connID", connID.String()), slog.Any("error", err))
	}
}
