package comm

import (
	"encoding/json"

	"github.com/avvvet/score-services/internal/scoresvc/state"
)

// WSMessage is the envelope every frame carries: one tagged JSON document.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps a payload into a serialized envelope frame.
func Encode(typ string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&WSMessage{Type: typ, Data: data})
}

// command types
const (
	CmdCreateRoom     = "create_room"
	CmdJoinRoom       = "join_room"
	CmdLeaveRoom      = "leave_room"
	CmdRemoveFromRoom = "remove_from_room"
	CmdDeleteRoom     = "delete_room"
	CmdRequestAdmin   = "request_admin"
	CmdBlessScore     = "bless_score"
	CmdRemoveScore    = "remove_score"
	CmdGiveScore      = "give_score"
	CmdTransferScore  = "transfer_score"
	CmdCreatePot      = "create_pot"
	CmdJoinPot        = "join_pot"
	CmdResolvePot     = "resolve_pot"
	CmdCreateWager    = "create_wager"
	CmdJoinWager      = "join_wager"
	CmdResolveWager   = "resolve_wager"
)

// event types
const (
	EvtSynchronizeRoom = "synchronize_room"
	EvtRoomCreated     = "room_created"
	EvtUserJoined      = "user_joined"
	EvtRoomDeleted     = "room_deleted"
	EvtUserRemoved     = "user_removed"
	EvtPotCreated      = "pot_created"
	EvtPotJoined       = "pot_joined"
	EvtPotResolved     = "pot_resolved"
	EvtWagerCreated    = "wager_created"
	EvtWagerJoined     = "wager_joined"
	EvtWagerResolved   = "wager_resolved"
	EvtScoreChanged    = "score_changed"
	EvtAdminGranted    = "admin_granted"
	EvtError           = "error"
)

// commands

type CreateRoom struct {
	Code      state.RoomCode `json:"code"`
	AdminPass string         `json:"admin_pass"`
}

type JoinRoom struct {
	Code state.RoomCode `json:"code"`
	Name string         `json:"name"`
}

type LeaveRoom struct {
	RoomCode state.RoomCode `json:"room_code"`
}

type RemoveFromRoom struct {
	Code state.RoomCode `json:"code"`
	ID   state.ID       `json:"id"`
}

type DeleteRoom struct {
	RoomCode state.RoomCode `json:"room_code"`
}

type RequestAdmin struct {
	Room     state.RoomCode `json:"room"`
	Password string         `json:"password"`
}

type BlessScore struct {
	To     state.ID `json:"to"`
	Amount int64    `json:"amount"`
}

type RemoveScore struct {
	From   state.ID `json:"from"`
	Amount int64    `json:"amount"`
}

type GiveScore struct {
	To     state.ID `json:"to"`
	Amount int64    `json:"amount"`
}

type TransferScore struct {
	From   state.ID `json:"from"`
	To     state.ID `json:"to"`
	Amount int64    `json:"amount"`
}

type CreatePot struct {
	RoomCode         state.RoomCode `json:"room_code"`
	ScoreRequirement int64          `json:"score_requirement"`
	Description      string         `json:"description"`
}

type JoinPot struct {
	RoomCode state.RoomCode `json:"room_code"`
	PotID    state.ID       `json:"pot_id"`
}

type ResolvePot struct {
	RoomID state.RoomCode `json:"room_id"`
	PotID  state.ID       `json:"pot_id"`
	Winner state.ID       `json:"winner"`
}

type CreateWager struct {
	RoomID   state.RoomCode       `json:"room_id"`
	Name     string               `json:"name"`
	Outcomes []state.WagerOutcome `json:"outcomes"`
}

type JoinWager struct {
	RoomID    state.RoomCode `json:"room_id"`
	WagerID   state.ID       `json:"wager_id"`
	OutcomeID state.ID       `json:"outcome_id"`
	Amount    int64          `json:"amount"`
}

type ResolveWager struct {
	RoomID    state.RoomCode `json:"room_id"`
	WagerID   state.ID       `json:"wager_id"`
	OutcomeID state.ID       `json:"outcome_id"`
}

// events

type SynchronizeRoom struct {
	Members     []*state.Member `json:"members"`
	Pots        []*state.Pot    `json:"pots"`
	Wagers      []*state.Wager  `json:"wagers"`
	RequesterID state.ID        `json:"requester_id"`
}

type RoomCreated struct {
	Code state.RoomCode `json:"code"`
}

type UserJoined struct {
	Name string   `json:"name"`
	ID   state.ID `json:"id"`
}

type RoomDeleted struct{}

type UserRemoved struct {
	ID state.ID `json:"id"`
}

type PotCreated struct {
	Pot *state.Pot `json:"pot"`
}

type PotJoined struct {
	PotID  state.ID `json:"pot_id"`
	UserID state.ID `json:"user_id"`
}

type PotResolved struct {
	ID state.ID `json:"id"`
}

type WagerCreated struct {
	Wager *state.Wager `json:"wager"`
}

type WagerJoined struct {
	WagerID   state.ID `json:"wager_id"`
	UserID    state.ID `json:"user_id"`
	OutcomeID state.ID `json:"outcome_id"`
	Amount    int64    `json:"amount"`
}

type WagerResolved struct {
	ID state.ID `json:"id"`
}

// ScoreChanged reuses the state layer's post-mutation pair.
type ScoreChanged = state.ScoreUpdate

type AdminGranted struct{}

type Error struct {
	Description   string `json:"description"`
	DisplayToUser bool   `json:"display_to_user"`
}
