package state

import (
	"encoding/json"
	"fmt"
)

// ID identifies a member, pot or wager inside one room. Ids are allocated
// from per-room counters and never reused for the lifetime of the room.
type ID int

// RoomCode is the wire identity of a room: exactly 8 alphanumeric characters.
type RoomCode string

func (c RoomCode) Valid() bool {
	if len(c) != 8 {
		return false
	}
	for _, r := range c {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

func (c RoomCode) String() string {
	return string(c)
}

// UnmarshalJSON rejects anything that is not an 8 character alphanumeric
// string, so malformed codes never reach the state layer.
func (c *RoomCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	code := RoomCode(s)
	if !code.Valid() {
		return fmt.Errorf("room code %q is not an alphanumeric string of length 8", s)
	}
	*c = code
	return nil
}
