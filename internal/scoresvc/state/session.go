package state

import (
	"fmt"
	"sync"
)

// OutQueue is a session's outbound message queue: unbounded, FIFO, holding
// frames that are already serialized. Pushes never block, so a stalled
// client accumulates memory instead of stalling the room lock; that is a
// deliberate simplification. Frames for one session are drained in push
// order by a single writer goroutine.
type OutQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frames [][]byte
	closed bool
}

func NewOutQueue() *OutQueue {
	q := &OutQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues one frame. Fails only when the session is gone.
func (q *OutQueue) Push(frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%w: outbound queue closed", ErrSessionNotFound)
	}
	q.frames = append(q.frames, frame)
	q.cond.Signal()
	return nil
}

// Pop blocks until a frame is available or the queue is closed and drained.
func (q *OutQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.frames) == 0 {
		return nil, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

// TryPop dequeues without blocking.
func (q *OutQueue) TryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return nil, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

func (q *OutQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Session is the per-connection record living between connect and
// disconnect: the connection identity, the room the connection is currently
// in (if any) and the outbound delivery handle.
type Session struct {
	ConnID string

	mu          sync.Mutex
	currentRoom RoomCode
	inRoom      bool

	queue *OutQueue
}

func NewSession(connID string) *Session {
	return &Session{ConnID: connID, queue: NewOutQueue()}
}

func (s *Session) Queue() *OutQueue {
	return s.queue
}

func (s *Session) CurrentRoom() (RoomCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRoom, s.inRoom
}

func (s *Session) setRoom(code RoomCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoom = code
	s.inRoom = true
}

func (s *Session) clearRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoom = ""
	s.inRoom = false
}
