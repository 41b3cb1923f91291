package router

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/davidpro08/web15-ipconfig/pkg/widget"
	"github.com/google/uuid"
)

// New cursors are seeded outside the visible canvas until the first real
// move arrives.
const (
	offCanvasX = -100
	offCanvasY = -100
)

// handleJoin runs on the target room's queue. A connection that is still in
// a different room is torn down from it first, so the old room's broadcast
// group never keeps an orphaned subscription.
func (r *EventRouter) handleJoin(connID uuid.UUID, payload json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.replyError(connID, CodeBadRequest, "malformed join payload")
		return
	}
	if p.User.ID == "" {
		r.replyError(connID, CodeBadRequest, "join requires a user id")
		return
	}
	roomID := p.WorkspaceID

	if prev, ok := r.sessions.Get(connID); ok {
		if prev.RoomID != roomID {
			r.teardown(connID, prev.RoomID)
		} else if prev.User.ID != p.User.ID {
			// same room under a new identity: the old identity's cursor
			// must not linger.
			r.cursors.RemoveCursor(roomID, prev.User.ID)
		}
	}

	r.sessions.Join(connID, roomID, p.User)
	if err := r.pub.Subscribe(roomID, connID); err != nil {
		// The connection vanished between dispatch and execution; undo the
		// join so no half-established session lingers.
		r.sessions.Leave(connID)
		r.logger.Debug("join aborted", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}
	r.cursors.SetCursor(roomID, p.User.ID, offCanvasX, offCanvasY)

	r.publish(roomID, EventUserStatus, statusPayload{UserID: p.User.ID, Status: StatusOnline})
	r.publish(roomID, EventUserJoined, joinedPayload{
		AllUsers: r.sessions.ListByRoom(roomID),
		Cursors:  r.cursors.ListByRoom(roomID),
	})
}

// teardown is the single cleanup path shared by explicit leave, transport
// disconnect and implicit leave-on-rejoin. The expected room guards against
// a stale task removing a session the connection re-established elsewhere.
// Removal is one atomic claim: teardowns for the same departure can run on
// different room queues, and only the claimant may announce it.
func (r *EventRouter) teardown(connID uuid.UUID, expectRoomID string) {
	sess, ok := r.sessions.LeaveIfRoom(connID, expectRoomID)
	if !ok {
		return
	}
	r.cursors.RemoveCursor(sess.RoomID, sess.User.ID)
	// Unsubscribe first so the leaver does not receive its own departure.
	r.pub.Unsubscribe(sess.RoomID, connID)

	r.publish(sess.RoomID, EventUserStatus, statusPayload{UserID: sess.User.ID, Status: StatusOffline})
	r.publish(sess.RoomID, EventUserLeft, leftPayload{UserID: sess.User.ID})
}

func (r *EventRouter) handleCursorMove(connID uuid.UUID, roomID string, payload json.RawMessage) {
	sess, ok := r.sessions.Get(connID)
	if !ok || sess.RoomID != roomID {
		return
	}
	var p cursorMovePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}

	// The session, not the payload, decides whose cursor moves.
	r.cursors.UpdateCursor(roomID, sess.User.ID, p.X, p.Y)
	r.publish(roomID, EventCursorMoved, cursorMovePayload{UserID: sess.User.ID, X: p.X, Y: p.Y})
}

func (r *EventRouter) handleWidgetEvent(connID uuid.UUID, roomID, event string, payload json.RawMessage) {
	sess, ok := r.sessions.Get(connID)
	if !ok || sess.RoomID != roomID {
		r.replyError(connID, CodeNotJoined, "no active room session")
		return
	}

	switch event {
	case EventWidgetCreate:
		r.handleWidgetCreate(connID, roomID, payload)
	case EventWidgetUpdate:
		r.handleWidgetUpdate(connID, roomID, payload)
	case EventWidgetDelete:
		r.handleWidgetDelete(connID, roomID, payload)
	case EventWidgetLoadAll:
		// Point-to-point snapshot, never a broadcast.
		if err := r.pub.Reply(connID, EventWidgetList, widgetListPayload{Widgets: r.widgets.FindAll(roomID)}); err != nil {
			r.logger.Debug("widget list reply dropped", slog.String("connID", connID.String()), slog.Any("error", err))
		}
	}
}

func (r *EventRouter) handleWidgetCreate(connID uuid.UUID, roomID string, payload json.RawMessage) {
	var w widget.Widget
	if err := json.Unmarshal(payload, &w); err != nil {
		r.replyError(connID, CodeBadRequest, "malformed widget payload")
		return
	}
	if w.WidgetID == "" || !w.Type.Valid() {
		r.replyError(connID, CodeBadRequest, "widget requires an id and a known type")
		return
	}
	if w.Data.Content == nil || w.Data.Content.WidgetType() != w.Type {
		r.replyError(connID, CodeBadRequest, "widget content does not match declared type")
		return
	}

	stored := r.widgets.Create(roomID, w)
	r.publish(roomID, EventWidgetCreated, stored)
}

func (r *EventRouter) handleWidgetUpdate(connID uuid.UUID, roomID string, payload json.RawMessage) {
	var p widgetUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.replyError(connID, CodeBadRequest, "malformed widget update")
		return
	}
	if p.WidgetID == "" {
		r.replyError(connID, CodeBadRequest, "widget update requires a widgetId")
		return
	}

	updated, err := r.widgets.Update(roomID, p.WidgetID, p.Data)
	if err != nil {
		r.replyStoreError(connID, err)
		return
	}
	r.publish(roomID, EventWidgetUpdated, updated)
}

func (r *EventRouter) handleWidgetDelete(connID uuid.UUID, roomID string, payload json.RawMessage) {
	var p widgetDeletePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.WidgetID == "" {
		r.replyError(connID, CodeBadRequest, "widget delete requires a widgetId")
		return
	}

	removed, err := r.widgets.Remove(roomID, p.WidgetID)
	if err != nil {
		r.replyStoreError(connID, err)
		return
	}
	r.publish(roomID, EventWidgetDeleted, widgetDeletePayload{WidgetID: removed})
}

// replyStoreError maps store failures onto protocol error codes. Failed
// mutations go back to the caller only.
func (r *EventRouter) replyStoreError(connID uuid.UUID, err error) {
	if errors.Is(err, widget.ErrNotFound) {
		r.replyError(connID, CodeNotFound, err.Error())
		return
	}
	r.replyError(connID, CodeBadRequest, err.Error())
}

func (r *EventRouter) publish(roomID, event string, payload any) {
	if err := r.pub.Publish(roomID, event, payload); err != nil {
		r.logger.Error("broadcast failed", slog.String("roomID", roomID), slog.String("event", event), slog.Any("error", err))
	}
}
