package widget

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrNotFound is returned when the requested widget does not exist in
	// the room.
	ErrNotFound = errors.New("widget not found")

	// ErrBadContent marks a content payload whose discriminator is unknown
	// or inconsistent with the declared widget type.
	ErrBadContent = errors.New("invalid widget content")
)

// Store is the per-room widget collection. Widgets are kept in insertion
// order and returned as deep copies, so a snapshot handed to a caller is
// never changed by later mutations.
//
// Widget maps are retained even when a room's last user leaves: widgets have
// no implicit expiry and must survive everyone disconnecting.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*roomWidgets

	logger *slog.Logger
}

type roomWidgets struct {
	byID  map[string]Widget
	order []string
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		rooms:  make(map[string]*roomWidgets),
		logger: logger.With(slog.String("component", "widget_store")),
	}
}

// Create upserts w keyed by its widget ID. Calling it twice with the same ID
// overwrites, keeping the original insertion position.
func (s *Store) Create(roomID string, w Widget) Widget {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		room = &roomWidgets{byID: make(map[string]Widget)}
		s.rooms[roomID] = room
	}
	if _, exists := room.byID[w.WidgetID]; !exists {
		room.order = append(room.order, w.WidgetID)
	}
	room.byID[w.WidgetID] = w.Clone()

	s.logger.Debug("widget created", slog.String("roomID", roomID), slog.String("widgetID", w.WidgetID))
	return w.Clone()
}

// FindAll returns the room's widgets in insertion order.
func (s *Store) FindAll(roomID string) []Widget {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return []Widget{}
	}
	widgets := make([]Widget, 0, len(room.order))
	for _, id := range room.order {
		widgets = append(widgets, room.byID[id].Clone())
	}
	return widgets
}

func (s *Store) FindOne(roomID, widgetID string) (Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return Widget{}, fmt.Errorf("widget %q in room %q: %w", widgetID, roomID, ErrNotFound)
	}
	w, ok := room.byID[widgetID]
	if !ok {
		return Widget{}, fmt.Errorf("widget %q in room %q: %w", widgetID, roomID, ErrNotFound)
	}
	return w.Clone(), nil
}

// Update merges the partial into the existing widget. Fields absent from the
// partial keep their prior values; content merges one level deep and the
// variant tag never changes.
func (s *Store) Update(roomID, widgetID string, partial PartialData) (Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return Widget{}, fmt.Errorf("widget %q in room %q: %w", widgetID, roomID, ErrNotFound)
	}
	w, ok := room.byID[widgetID]
	if !ok {
		return Widget{}, fmt.Errorf("widget %q in room %q: %w", widgetID, roomID, ErrNotFound)
	}

	w.Data = mergeData(w.Data, partial)
	room.byID[widgetID] = w

	s.logger.Debug("widget updated", slog.String("roomID", roomID), slog.String("widgetID", widgetID))
	return w.Clone(), nil
}

// Remove deletes the widget and returns its ID. Removing twice fails with
// ErrNotFound on the second call.
func (s *Store) Remove(roomID, widgetID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return "", fmt.Errorf("widget %q in room %q: %w", widgetID, roomID, ErrNotFound)
	}
	if _, ok := room.byID[widgetID]; !ok {
		return "", fmt.Errorf("widget %q in room %q: %w", widgetID, roomID, ErrNotFound)
	}
	delete(room.byID, widgetID)
	for i, id := range room.order {
		if id == widgetID {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}

	s.logger.Debug("widget removed", slog.String("roomID", roomID), slog.String("widgetID", widgetID))
	return widgetID, nil
}
