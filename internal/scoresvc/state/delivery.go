package state

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Destination is the symbolic addressing mode for one outbound event. It is
// a small closed set resolved only here, never in command handlers.
type destKind int

const (
	destMyself destKind = iota
	destPeersExclusive
	destPeersInclusive
	destSpecific
	destEveryone
)

type Destination struct {
	kind   destKind
	connID string
}

var (
	// ToMyself delivers to the originating session only.
	ToMyself = Destination{kind: destMyself}
	// ToPeersExclusive delivers to the room's members except the sender.
	ToPeersExclusive = Destination{kind: destPeersExclusive}
	// ToPeersInclusive delivers to all of the room's members.
	ToPeersInclusive = Destination{kind: destPeersInclusive}
	// ToEveryone delivers to every connected session.
	ToEveryone = Destination{kind: destEveryone}
)

// ToSpecific delivers to one concrete session.
func ToSpecific(connID string) Destination {
	return Destination{kind: destSpecific, connID: connID}
}

// Delivery resolves destinations to sessions and enqueues serialized frames.
// A Delivery is only valid inside the lock scope that created it (ExecRoom),
// which is what makes the queue pushes ordered with the mutation. A failure
// to one recipient is collected and does not block the rest of the fan-out,
// nor does it undo the mutation that produced the frame.
type Delivery struct {
	reg    *Registry
	room   *Room
	sender string
	errs   []error
}

// Send fans the frame out to the destination's sessions.
func (d *Delivery) Send(frame []byte, dest Destination) {
	switch dest.kind {
	case destMyself:
		d.push(d.sender, frame)
	case destSpecific:
		d.push(dest.connID, frame)
	case destPeersExclusive, destPeersInclusive:
		for _, conn := range d.room.ConnIDs() {
			if dest.kind == destPeersExclusive && conn == d.sender {
				continue
			}
			d.push(conn, frame)
		}
	case destEveryone:
		for conn := range d.reg.sessions {
			d.push(conn, frame)
		}
	}
}

// Fail records a delivery-stage error, e.g. a frame that failed to encode.
func (d *Delivery) Fail(err error) {
	d.errs = append(d.errs, err)
}

// BindSessionRoom points the connection's session at this room.
func (d *Delivery) BindSessionRoom(connID string) {
	if sess, ok := d.reg.sessions[connID]; ok {
		sess.setRoom(d.room.Code())
	}
}

// UnbindSessionRoom clears the connection's session room pointer.
func (d *Delivery) UnbindSessionRoom(connID string) {
	if sess, ok := d.reg.sessions[connID]; ok {
		sess.clearRoom()
	}
}

func (d *Delivery) push(connID string, frame []byte) {
	if err := d.reg.pushLocked(connID, frame); err != nil {
		log.Errorf("Error delivering to session %s: %s", connID, err)
		d.errs = append(d.errs, fmt.Errorf("delivery to %s: %w", connID, err))
	}
}
