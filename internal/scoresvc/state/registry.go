package state

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry is the process-wide aggregate of rooms and sessions.
//
// Lock hierarchy, always acquired in this order and never backwards:
//
//	registry.mu  ->  room.mu  ->  session / queue mutex
//
// Structural changes (create/delete room, register/unregister session) take
// registry.mu exclusively. Ordinary room operations take registry.mu shared
// and the target room's mu exclusively, so unrelated rooms mutate
// concurrently while one room's mutations fully serialize. Delivery pushes
// happen inside the same lock scope as the mutation, which is what gives
// per-destination ordering.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[RoomCode]*Room
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[RoomCode]*Room),
		sessions: make(map[string]*Session),
	}
}

// AddRoom creates a room under the given code.
func (reg *Registry) AddRoom(code RoomCode, adminPass string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[code]; ok {
		return fmt.Errorf("%w: room %s already exists", ErrRoomExists, code)
	}
	reg.rooms[code] = NewRoom(code, adminPass)
	return nil
}

// DeleteRoom drops the room and unbinds every member's session from it.
// Returns the connection ids that were in the room so the caller can notify
// them.
func (reg *Registry) DeleteRoom(code RoomCode) ([]string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: room %s does not exist", ErrRoomNotFound, code)
	}
	room.mu.Lock()
	conns := room.ConnIDs()
	room.mu.Unlock()
	for _, conn := range conns {
		if sess, ok := reg.sessions[conn]; ok {
			sess.clearRoom()
		}
	}
	delete(reg.rooms, code)
	return conns, nil
}

// InitSession registers a fresh session for the connection.
func (reg *Registry) InitSession(connID string) *Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	sess := NewSession(connID)
	reg.sessions[connID] = sess
	return sess
}

// CleanupSession unregisters the session and, if it was in a room, removes
// that member with the full leave cascade. The sole caller is connection
// termination.
func (reg *Registry) CleanupSession(connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	sess, ok := reg.sessions[connID]
	if !ok {
		return
	}
	delete(reg.sessions, connID)
	sess.Queue().Close()
	code, inRoom := sess.CurrentRoom()
	if !inRoom {
		return
	}
	room, ok := reg.rooms[code]
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	id, err := room.MemberIDForConn(connID)
	if err != nil {
		log.Errorf("Error cleaning up session %s: %s", connID, err)
		return
	}
	if _, err := room.RemoveUser(id); err != nil {
		log.Errorf("Error removing member %d from room %s: %s", id, code, err)
	}
}

// Session looks up a live session.
func (reg *Registry) Session(connID string) (*Session, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	sess, ok := reg.sessions[connID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s does not exist", ErrSessionNotFound, connID)
	}
	return sess, nil
}

// CurrentRoomOf resolves the room the connection is currently in.
func (reg *Registry) CurrentRoomOf(connID string) (RoomCode, error) {
	sess, err := reg.Session(connID)
	if err != nil {
		return "", err
	}
	code, inRoom := sess.CurrentRoom()
	if !inRoom {
		return "", fmt.Errorf("%w: session %s is not in a room", ErrNotInAnyRoom, connID)
	}
	return code, nil
}

// SendToConn serializes nothing and mutates nothing: it pushes one already
// serialized frame onto the session's outbound queue.
func (reg *Registry) SendToConn(connID string, frame []byte) error {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.pushLocked(connID, frame)
}

// pushLocked requires reg.mu held in at least shared mode.
func (reg *Registry) pushLocked(connID string, frame []byte) error {
	sess, ok := reg.sessions[connID]
	if !ok {
		return fmt.Errorf("%w: session %s does not exist", ErrSessionNotFound, connID)
	}
	return sess.Queue().Push(frame)
}

// IsAdmin reports whether the connection holds admin rights in the given
// room, or in its current room when code is nil.
func (reg *Registry) IsAdmin(connID string, code *RoomCode) (bool, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	target := RoomCode("")
	if code != nil {
		target = *code
	} else {
		sess, ok := reg.sessions[connID]
		if !ok {
			return false, fmt.Errorf("%w: session %s does not exist", ErrSessionNotFound, connID)
		}
		current, inRoom := sess.CurrentRoom()
		if !inRoom {
			return false, fmt.Errorf("%w: session %s is not in a room", ErrNotInAnyRoom, connID)
		}
		target = current
	}
	room, ok := reg.rooms[target]
	if !ok {
		return false, fmt.Errorf("%w: room %s does not exist", ErrRoomNotFound, target)
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return room.IsAdmin(connID), nil
}

// ExecRoom runs fn with the registry lock shared and the room lock
// exclusive. fn receives a Delivery bound to the same lock scope, so frames
// it pushes are ordered with the mutation. Returns fn's error plus any
// delivery errors collected.
func (reg *Registry) ExecRoom(sender string, code RoomCode, fn func(*Room, *Delivery) error) ([]error, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: room %s does not exist", ErrRoomNotFound, code)
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	dl := &Delivery{reg: reg, room: room, sender: sender}
	if err := fn(room, dl); err != nil {
		return nil, err
	}
	return dl.errs, nil
}

// RoomSnapshot runs fn with the room lock shared, for read-only access.
func (reg *Registry) RoomSnapshot(code RoomCode, fn func(*Room) error) error {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[code]
	if !ok {
		return fmt.Errorf("%w: room %s does not exist", ErrRoomNotFound, code)
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return fn(room)
}
