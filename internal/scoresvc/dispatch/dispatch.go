package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/avvvet/score-services/internal/comm"
	"github.com/avvvet/score-services/internal/scoresvc/state"
)

// Dispatcher routes one inbound command: decode, authorization gate, room
// mutation, then an ordered list of (event, destination) pairs handed to
// delivery. A command fully succeeds or fully fails; individual deliveries
// of a successful command may fail independently and are returned as
// secondary errors.
type Dispatcher struct {
	reg *state.Registry
}

func NewDispatcher(reg *state.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// outbound is one event waiting for serialization and fan-out.
type outbound struct {
	typ     string
	payload interface{}
	dest    state.Destination
}

// Dispatch handles one decoded envelope from sender. The first return value
// holds delivery-stage errors for a command that succeeded; the second is
// the command error, if any.
func (d *Dispatcher) Dispatch(sender string, msg *comm.WSMessage) ([]error, error) {
	switch msg.Type {
	case comm.CmdCreateRoom:
		return d.createRoom(sender, msg.Data)
	case comm.CmdJoinRoom:
		return d.joinRoom(sender, msg.Data)
	case comm.CmdLeaveRoom:
		return d.leaveRoom(sender, msg.Data)
	case comm.CmdRemoveFromRoom:
		return d.removeFromRoom(sender, msg.Data)
	case comm.CmdDeleteRoom:
		return d.deleteRoom(sender, msg.Data)
	case comm.CmdRequestAdmin:
		return d.requestAdmin(sender, msg.Data)
	case comm.CmdBlessScore:
		return d.blessScore(sender, msg.Data)
	case comm.CmdRemoveScore:
		return d.removeScore(sender, msg.Data)
	case comm.CmdGiveScore:
		return d.giveScore(sender, msg.Data)
	case comm.CmdTransferScore:
		return d.transferScore(sender, msg.Data)
	case comm.CmdCreatePot:
		return d.createPot(sender, msg.Data)
	case comm.CmdJoinPot:
		return d.joinPot(sender, msg.Data)
	case comm.CmdResolvePot:
		return d.resolvePot(sender, msg.Data)
	case comm.CmdCreateWager:
		return d.createWager(sender, msg.Data)
	case comm.CmdJoinWager:
		return d.joinWager(sender, msg.Data)
	case comm.CmdResolveWager:
		return d.resolveWager(sender, msg.Data)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", state.ErrBadPayload, msg.Type)
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s", state.ErrBadPayload, err)
	}
	return nil
}

// authorize rejects the command before it reaches the room unless the
// sender holds admin rights in the named room, or in their current room
// when code is nil.
func (d *Dispatcher) authorize(sender string, code *state.RoomCode) error {
	isAdmin, err := d.reg.IsAdmin(sender, code)
	if err != nil {
		return err
	}
	if !isAdmin {
		return fmt.Errorf("%w: this user is not an admin", state.ErrNotAuthorized)
	}
	return nil
}

// execRoom runs build under the room's lock and delivers whatever it
// produced inside the same lock scope.
func (d *Dispatcher) execRoom(sender string, code state.RoomCode,
	build func(room *state.Room, dl *state.Delivery) ([]outbound, error)) ([]error, error) {
	return d.reg.ExecRoom(sender, code, func(room *state.Room, dl *state.Delivery) error {
		msgs, err := build(room, dl)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			frame, err := comm.Encode(m.typ, m.payload)
			if err != nil {
				dl.Fail(fmt.Errorf("%w: %s", state.ErrEncodeEvent, err))
				continue
			}
			dl.Send(frame, m.dest)
		}
		return nil
	})
}

// currentRoomOf is the room context for commands that name no room.
func (d *Dispatcher) currentRoomOf(sender string) (state.RoomCode, error) {
	return d.reg.CurrentRoomOf(sender)
}

func (d *Dispatcher) createRoom(sender string, data json.RawMessage) ([]error, error) {
	var p comm.CreateRoom
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if err := d.reg.AddRoom(p.Code, p.AdminPass); err != nil {
		return nil, err
	}
	frame, err := comm.Encode(comm.EvtRoomCreated, comm.RoomCreated{Code: p.Code})
	if err != nil {
		return []error{fmt.Errorf("%w: %s", state.ErrEncodeEvent, err)}, nil
	}
	if err := d.reg.SendToConn(sender, frame); err != nil {
		return []error{err}, nil
	}
	return nil, nil
}

func (d *Dispatcher) joinRoom(sender string, data json.RawMessage) ([]error, error) {
	var p comm.JoinRoom
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.Code, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		id, err := room.AddUser(sender, p.Name)
		if err != nil {
			return nil, err
		}
		dl.BindSessionRoom(sender)
		sync := room.GetSyncData()
		return []outbound{
			{comm.EvtUserJoined, comm.UserJoined{Name: p.Name, ID: id}, state.ToPeersInclusive},
			{comm.EvtSynchronizeRoom, comm.SynchronizeRoom{
				Members:     sync.Members,
				Pots:        sync.Pots,
				Wagers:      sync.Wagers,
				RequesterID: id,
			}, state.ToMyself},
		}, nil
	})
}

func (d *Dispatcher) leaveRoom(sender string, data json.RawMessage) ([]error, error) {
	var p comm.LeaveRoom
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.RoomCode, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		id, err := room.MemberIDForConn(sender)
		if err != nil {
			return nil, err
		}
		if _, err := room.RemoveUser(id); err != nil {
			return nil, err
		}
		dl.UnbindSessionRoom(sender)
		return []outbound{
			{comm.EvtUserRemoved, comm.UserRemoved{ID: id}, state.ToPeersExclusive},
		}, nil
	})
}

func (d *Dispatcher) removeFromRoom(sender string, data json.RawMessage) ([]error, error) {
	var p comm.RemoveFromRoom
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if err := d.authorize(sender, &p.Code); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.Code, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		connID, err := room.RemoveUser(p.ID)
		if err != nil {
			return nil, err
		}
		dl.UnbindSessionRoom(connID)
		return []outbound{
			{comm.EvtUserRemoved, comm.UserRemoved{ID: p.ID}, state.ToPeersInclusive},
			{comm.EvtUserRemoved, comm.UserRemoved{ID: p.ID}, state.ToSpecific(connID)},
		}, nil
	})
}

func (d *Dispatcher) deleteRoom(sender string, data json.RawMessage) ([]error, error) {
	var p comm.DeleteRoom
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if err := d.authorize(sender, &p.RoomCode); err != nil {
		return nil, err
	}
	conns, err := d.reg.DeleteRoom(p.RoomCode)
	if err != nil {
		return nil, err
	}
	frame, err := comm.Encode(comm.EvtRoomDeleted, comm.RoomDeleted{})
	if err != nil {
		return []error{fmt.Errorf("%w: %s", state.ErrEncodeEvent, err)}, nil
	}
	var delivErrs []error
	for _, conn := range conns {
		if err := d.reg.SendToConn(conn, frame); err != nil {
			delivErrs = append(delivErrs, err)
		}
	}
	return delivErrs, nil
}

func (d *Dispatcher) requestAdmin(sender string, data json.RawMessage) ([]error, error) {
	var p comm.RequestAdmin
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.Room, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		if _, err := room.MemberIDForConn(sender); err != nil {
			return nil, err
		}
		if err := room.AddAdmin(sender, p.Password); err != nil {
			return nil, err
		}
		return []outbound{
			{comm.EvtAdminGranted, comm.AdminGranted{}, state.ToMyself},
		}, nil
	})
}

func (d *Dispatcher) blessScore(sender string, data json.RawMessage) ([]error, error) {
	var p comm.BlessScore
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.Amount < 0 {
		return nil, fmt.Errorf("%w: bless amount must not be negative", state.ErrNegativeScore)
	}
	if err := d.authorize(sender, nil); err != nil {
		return nil, err
	}
	code, err := d.currentRoomOf(sender)
	if err != nil {
		return nil, err
	}
	return d.execRoom(sender, code, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		update, err := room.BlessScore(p.To, p.Amount)
		if err != nil {
			return nil, err
		}
		return []outbound{
			{comm.EvtScoreChanged, update, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) removeScore(sender string, data json.RawMessage) ([]error, error) {
	var p comm.RemoveScore
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.Amount < 0 {
		return nil, fmt.Errorf("%w: remove amount must not be negative", state.ErrNegativeScore)
	}
	if err := d.authorize(sender, nil); err != nil {
		return nil, err
	}
	code, err := d.currentRoomOf(sender)
	if err != nil {
		return nil, err
	}
	return d.execRoom(sender, code, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		update, err := room.BlessScore(p.From, -p.Amount)
		if err != nil {
			return nil, err
		}
		return []outbound{
			{comm.EvtScoreChanged, update, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) giveScore(sender string, data json.RawMessage) ([]error, error) {
	var p comm.GiveScore
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.Amount < 0 {
		return nil, fmt.Errorf("%w: give amount must not be negative", state.ErrNegativeScore)
	}
	code, err := d.currentRoomOf(sender)
	if err != nil {
		return nil, err
	}
	return d.execRoom(sender, code, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		from, err := room.MemberIDForConn(sender)
		if err != nil {
			return nil, err
		}
		fromUpdate, toUpdate, err := room.TransferScore(from, p.To, p.Amount)
		if err != nil {
			return nil, err
		}
		return []outbound{
			{comm.EvtScoreChanged, fromUpdate, state.ToPeersInclusive},
			{comm.EvtScoreChanged, toUpdate, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) transferScore(sender string, data json.RawMessage) ([]error, error) {
	var p comm.TransferScore
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	code, err := d.currentRoomOf(sender)
	if err != nil {
		return nil, err
	}
	return d.execRoom(sender, code, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		fromUpdate, toUpdate, err := room.TransferScore(p.From, p.To, p.Amount)
		if err != nil {
			return nil, err
		}
		return []outbound{
			{comm.EvtScoreChanged, fromUpdate, state.ToPeersInclusive},
			{comm.EvtScoreChanged, toUpdate, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) createPot(sender string, data json.RawMessage) ([]error, error) {
	var p comm.CreatePot
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if err := d.authorize(sender, &p.RoomCode); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.RoomCode, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		pot := room.CreatePot(p.ScoreRequirement, p.Description)
		return []outbound{
			{comm.EvtPotCreated, comm.PotCreated{Pot: pot}, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) joinPot(sender string, data json.RawMessage) ([]error, error) {
	var p comm.JoinPot
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.RoomCode, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		id, err := room.MemberIDForConn(sender)
		if err != nil {
			return nil, err
		}
		newScore, err := room.AddUserToPot(id, p.PotID)
		if err != nil {
			return nil, err
		}
		return []outbound{
			{comm.EvtPotJoined, comm.PotJoined{PotID: p.PotID, UserID: id}, state.ToPeersInclusive},
			{comm.EvtScoreChanged, comm.ScoreChanged{UserID: id, NewAmount: newScore}, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) resolvePot(sender string, data json.RawMessage) ([]error, error) {
	var p comm.ResolvePot
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if err := d.authorize(sender, &p.RoomID); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.RoomID, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		update, err := room.ResolvePot(p.PotID, p.Winner)
		if err != nil {
			return nil, err
		}
		return []outbound{
			{comm.EvtPotResolved, comm.PotResolved{ID: p.PotID}, state.ToPeersInclusive},
			{comm.EvtScoreChanged, update, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) createWager(sender string, data json.RawMessage) ([]error, error) {
	var p comm.CreateWager
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	for _, o := range p.Outcomes {
		if o.Odds < 0 {
			return nil, fmt.Errorf("%w: outcome %d has negative odds %d", state.ErrBadPayload, o.ID, o.Odds)
		}
	}
	if err := d.authorize(sender, &p.RoomID); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.RoomID, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		wager := room.CreateWager(p.Name, p.Outcomes)
		return []outbound{
			{comm.EvtWagerCreated, comm.WagerCreated{Wager: wager}, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) joinWager(sender string, data json.RawMessage) ([]error, error) {
	var p comm.JoinWager
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.Amount < 0 {
		return nil, fmt.Errorf("%w: stake must not be negative", state.ErrNegativeScore)
	}
	return d.execRoom(sender, p.RoomID, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		id, err := room.MemberIDForConn(sender)
		if err != nil {
			return nil, err
		}
		newScore, err := room.AddUserToWager(p.WagerID, id, p.OutcomeID, p.Amount)
		if err != nil {
			return nil, err
		}
		return []outbound{
			{comm.EvtWagerJoined, comm.WagerJoined{
				WagerID:   p.WagerID,
				UserID:    id,
				OutcomeID: p.OutcomeID,
				Amount:    p.Amount,
			}, state.ToPeersInclusive},
			{comm.EvtScoreChanged, comm.ScoreChanged{UserID: id, NewAmount: newScore}, state.ToPeersInclusive},
		}, nil
	})
}

func (d *Dispatcher) resolveWager(sender string, data json.RawMessage) ([]error, error) {
	var p comm.ResolveWager
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if err := d.authorize(sender, &p.RoomID); err != nil {
		return nil, err
	}
	return d.execRoom(sender, p.RoomID, func(room *state.Room, dl *state.Delivery) ([]outbound, error) {
		updates, err := room.ResolveWager(p.WagerID, p.OutcomeID)
		if err != nil {
			return nil, err
		}
		msgs := make([]outbound, 0, len(updates)+1)
		for _, update := range updates {
			msgs = append(msgs, outbound{comm.EvtScoreChanged, update, state.ToPeersInclusive})
		}
		msgs = append(msgs, outbound{comm.EvtWagerResolved, comm.WagerResolved{ID: p.WagerID}, state.ToPeersInclusive})
		return msgs, nil
	})
}
