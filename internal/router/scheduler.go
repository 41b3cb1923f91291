package router

import (
	"sync"

	"github.com/eapache/queue"
)

// roomScheduler serializes work per room key: tasks submitted under the same
// key run one at a time in submission order, while different rooms proceed
// independently. This is what makes every handler a non-preemptible unit of
// work within its room and keeps fan-out ordered the way operations were
// processed.
type roomScheduler struct {
	mu    sync.Mutex
	rooms map[string]*roomQueue
}

type roomQueue struct {
	tasks *queue.Queue
	busy  bool
}

func newRoomScheduler() *roomScheduler {
	return &roomScheduler{rooms: make(map[string]*roomQueue)}
}

// Submit enqueues the task under roomID, starting a drain goroutine if the
// room is idle.
func (s *roomScheduler) Submit(roomID string, task func()) {
	s.mu.Lock()
	q, ok := s.rooms[roomID]
	if !ok {
		q = &roomQueue{tasks: queue.New()}
		s.rooms[roomID] = q
	}
	q.tasks.Add(task)
	if q.busy {
		s.mu.Unlock()
		return
	}
	q.busy = true
	s.mu.Unlock()

	go s.drain(roomID, q)
}

func (s *roomScheduler) drain(roomID string, q *roomQueue) {
	for {
		s.mu.Lock()
		if q.tasks.Length() == 0 {
			q.busy = false
			// idle queues are pruned so long-running processes do not
			// accumulate one queue per room ever seen.
			delete(s.rooms, roomID)
			s.mu.Unlock()
			return
		}
		task := q.tasks.Remove().(func())
		s.mu.Unlock()

		task()
	}
}
