package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Sink is the send side of a registered connection. *Connection satisfies
// it; tests use in-memory fakes.
type Sink interface {
	ID() uuid.UUID
	Send(msg []byte)
	Close(err error)
}

// Envelope is the wire frame for every server-to-client message.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Broker owns the table of live connections and the room-scoped broadcast
// groups. It is the process-local publish/subscribe primitive the event
// router fans out through: Subscribe/Unsubscribe manage group membership,
// Publish delivers to every subscriber of a room, Reply targets a single
// connection.
type Broker struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]*registration
	rooms   map[string]map[uuid.UUID]Sink
	nextSeq uint64

	logger *slog.Logger
}

type registration struct {
	sink Sink
	ip   string
	// seq orders registrations; timestamps can tie on coarse clocks.
	seq   uint64
	rooms map[string]struct{}
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		conns:  make(map[uuid.UUID]*registration),
		rooms:  make(map[string]map[uuid.UUID]Sink),
		logger: logger.With(slog.String("component", "broker")),
	}
}

// Register adds a live connection to the table. Must precede any Subscribe
// or Reply for that connection.
func (b *Broker) Register(s Sink, ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	b.conns[s.ID()] = &registration{
		sink:  s,
		ip:    ip,
		seq:   b.nextSeq,
		rooms: make(map[string]struct{}),
	}
	b.logger.Debug("connection registered", slog.String("connID", s.ID().String()), slog.String("ip", ip))
}

// Deregister drops the connection and any group memberships left behind.
func (b *Broker) Deregister(connID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, ok := b.conns[connID]
	if !ok {
		return
	}
	for roomID := range reg.rooms {
		b.dropMember(roomID, connID)
	}
	delete(b.conns, connID)
	b.logger.Debug("connection deregistered", slog.String("connID", connID.String()))
}

func (b *Broker) Subscribe(roomID string, connID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, ok := b.conns[connID]
	if !ok {
		return fmt.Errorf("subscribe: unknown connection %s", connID)
	}
	members, ok := b.rooms[roomID]
	if !ok {
		members = make(map[uuid.UUID]Sink)
		b.rooms[roomID] = members
	}
	members[connID] = reg.sink
	reg.rooms[roomID] = struct{}{}
	return nil
}

func (b *Broker) Unsubscribe(roomID string, connID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if reg, ok := b.conns[connID]; ok {
		delete(reg.rooms, roomID)
	}
	b.dropMember(roomID, connID)
}

// Publish fans the event out to every current subscriber of the room,
// including the originator if it is subscribed.
func (b *Broker) Publish(roomID, event string, payload any) error {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sink := range b.rooms[roomID] {
		sink.Send(frame)
	}
	return nil
}

// Reply sends the event to a single connection only.
func (b *Broker) Reply(connID uuid.UUID, event string, payload any) error {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	reg, ok := b.conns[connID]
	if !ok {
		return fmt.Errorf("reply: unknown connection %s", connID)
	}
	reg.sink.Send(frame)
	return nil
}

// CountByIP reports how many live connections share the given address.
func (b *Broker) CountByIP(ip string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, reg := range b.conns {
		if reg.ip == ip {
			n++
		}
	}
	return n
}

// OldestByIP returns the longest-lived connection from the given address.
func (b *Broker) OldestByIP(ip string) (Sink, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var oldest *registration
	for _, reg := range b.conns {
		if reg.ip != ip {
			continue
		}
		if oldest == nil || reg.seq < oldest.seq {
			oldest = reg
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest.sink, true
}

// CloseAll terminates every live connection, used during shutdown.
func (b *Broker) CloseAll(err error) {
	b.mu.RLock()
	sinks := make([]Sink, 0, len(b.conns))
	for _, reg := range b.conns {
		sinks = append(sinks, reg.sink)
	}
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Close(err)
	}
}

// dropMember removes connID from a room group, pruning empty groups.
// Caller must hold the write lock.
func (b *Broker) dropMember(roomID string, connID uuid.UUID) {
	members, ok := b.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(b.rooms, roomID)
	}
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return frame, nil
}
