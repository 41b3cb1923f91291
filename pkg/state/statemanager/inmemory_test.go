package statemanager_test

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/davidpro08/web15-ipconfig/pkg/state"
	"github.com/davidpro08/web15-ipconfig/pkg/state/statemanager"
	"github.com/google/uuid"
)

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestSessionLifecycle(t *testing.T) {
	m := statemanager.NewInMemorySessions(newTestLogger())
	connID := uuid.New()
	user := state.User{ID: "u1", Nickname: "SnailW", Color: "#FF5733"}

	// 1. Join
	sess := m.Join(connID, "w1", user)
	if sess.RoomID != "w1" || sess.User.ID != "u1" {
		t.Fatalf("unexpected session after join: %+v", sess)
	}

	// 2. Get
	got, found := m.Get(connID)
	if !found {
		t.Fatal("Get failed to find joined session")
	}
	if got.User.Nickname != "SnailW" {
		t.Errorf("expected nickname SnailW, got %s", got.User.Nickname)
	}

	// 3. Leave
	prior, found := m.Leave(connID)
	if !found {
		t.Fatal("Leave did not return the prior session")
	}
	if prior.RoomID != "w1" {
		t.Errorf("expected prior room w1, got %s", prior.RoomID)
	}
	if _, found := m.Get(connID); found {
		t.Error("found session after it should have been removed")
	}
}

func TestLeaveAbsentIsNotAnError(t *testing.T) {
	m := statemanager.NewInMemorySessions(newTestLogger())

	_, found := m.Leave(uuid.New())
	if found {
		t.Error("Leave of an unknown connection reported a session")
	}
}

func TestLastJoinWins(t *testing.T) {
	m := statemanager.NewInMemorySessions(newTestLogger())
	connID := uuid.New()

	m.Join(connID, "w1", state.User{ID: "u1"})
	m.Join(connID, "w2", state.User{ID: "u1"})

	sess, found := m.Get(connID)
	if !found {
		t.Fatal("expected a session after second join")
	}
	if sess.RoomID != "w2" {
		t.Errorf("expected room w2 after re-join, got %s", sess.RoomID)
	}

	if users := m.ListByRoom("w1"); len(users) != 0 {
		t.Errorf("expected w1 to be empty after re-join, got %d users", len(users))
	}
	if users := m.ListByRoom("w2"); len(users) != 1 {
		t.Errorf("expected 1 user in w2, got %d", len(users))
	}
}

func TestLeaveIfRoomClaimsSessionOnce(t *testing.T) {
	m := statemanager.NewInMemorySessions(newTestLogger())
	connID := uuid.New()
	m.Join(connID, "w1", state.User{ID: "u1"})

	if _, ok := m.LeaveIfRoom(connID, "w2"); ok {
		t.Error("claim succeeded for a room the session is not in")
	}

	sess, ok := m.LeaveIfRoom(connID, "w1")
	if !ok {
		t.Fatal("expected the first claim to succeed")
	}
	if sess.User.ID != "u1" {
		t.Errorf("claimed session carries wrong user: %+v", sess)
	}

	if _, ok := m.LeaveIfRoom(connID, "w1"); ok {
		t.Error("second claim succeeded; the session was already removed")
	}
}

func TestLeaveIfRoomHasExactlyOneWinnerUnderContention(t *testing.T) {
	m := statemanager.NewInMemorySessions(newTestLogger())

	for round := 0; round < 50; round++ {
		connID := uuid.New()
		m.Join(connID, "w1", state.User{ID: "u1"})

		var wins int64
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := m.LeaveIfRoom(connID, "w1"); ok {
					atomic.AddInt64(&wins, 1)
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("round %d: %d claimants won, want exactly 1", round, wins)
		}
	}
}

func TestListByRoomAcrossRooms(t *testing.T) {
	m := statemanager.NewInMemorySessions(newTestLogger())
	connA, connB, connC := uuid.New(), uuid.New(), uuid.New()

	m.Join(connA, "w1", state.User{ID: "u1"})
	m.Join(connB, "w1", state.User{ID: "u2"})
	m.Join(connC, "w2", state.User{ID: "u3"})

	users := m.ListByRoom("w1")
	if len(users) != 2 {
		t.Fatalf("expected 2 users in w1, got %d", len(users))
	}
	if users[0].ID != "u1" || users[1].ID != "u2" {
		t.Errorf("unexpected roster order: %+v", users)
	}

	m.Leave(connA)
	users = m.ListByRoom("w1")
	if len(users) != 1 || users[0].ID != "u2" {
		t.Errorf("expected only u2 left in w1, got %+v", users)
	}

	if users := m.ListByRoom("w2"); len(users) != 1 || users[0].ID != "u3" {
		t.Errorf("w2 roster disturbed by w1 activity: %+v", users)
	}
}
