package state

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for the room admin secret.
const (
	passTime    = 1
	passMemory  = 64 * 1024
	passThreads = 2
	passKeyLen  = 32
	passSaltLen = 16
)

// Room owns one code's members, pots and wagers. It is the only component
// allowed to mutate those tables, and every exported method assumes the
// room's lock is held by the registry (see Registry for the lock hierarchy).
type Room struct {
	mu sync.RWMutex

	code    RoomCode
	members map[ID]*Member
	connMap map[string]ID // connection id -> member id

	passHash []byte
	passSalt []byte
	admins   map[string]struct{} // connection ids

	pots   map[ID]*Pot
	wagers map[ID]*Wager

	// monotonic, never reused within the room's lifetime
	nextMemberID ID
	nextPotID    ID
	nextWagerID  ID
}

func NewRoom(code RoomCode, adminPass string) *Room {
	salt := make([]byte, passSaltLen)
	if _, err := rand.Read(salt); err != nil {
		// crypto/rand does not fail on any supported platform
		panic(err)
	}
	return &Room{
		code:     code,
		members:  make(map[ID]*Member),
		connMap:  make(map[string]ID),
		passHash: hashPass(adminPass, salt),
		passSalt: salt,
		admins:   make(map[string]struct{}),
		pots:     make(map[ID]*Pot),
		wagers:   make(map[ID]*Wager),
	}
}

func hashPass(pass string, salt []byte) []byte {
	return argon2.IDKey([]byte(pass), salt, passTime, passMemory, passThreads, passKeyLen)
}

func (r *Room) Code() RoomCode {
	return r.code
}

// AddUser allocates the next member id for the connection.
func (r *Room) AddUser(connID, name string) (ID, error) {
	if _, ok := r.connMap[connID]; ok {
		return 0, fmt.Errorf("%w: connection %s already in room %s", ErrAlreadyInRoom, connID, r.code)
	}
	id := r.nextMemberID
	r.nextMemberID++
	r.connMap[connID] = id
	r.members[id] = NewMember(id, name)
	return id, nil
}

// RemoveUser drops the member and cascades a best-effort removal from every
// pot and wager they joined. Escrowed fees and stakes are not refunded.
// Returns the connection id that was mapped to the member.
func (r *Room) RemoveUser(id ID) (string, error) {
	member, ok := r.members[id]
	if !ok {
		return "", fmt.Errorf("%w: member %d not in room %s", ErrMemberNotFound, id, r.code)
	}
	delete(r.members, id)
	for wagerID := range member.currentWagers {
		if wager, ok := r.wagers[wagerID]; ok {
			wager.RemoveUser(id)
		}
	}
	for potID := range member.currentPots {
		if pot, ok := r.pots[potID]; ok {
			// best effort, the pot keeps the entry fee
			_ = pot.RemoveUser(id)
		}
	}
	var connID string
	for conn, memberID := range r.connMap {
		if memberID == id {
			connID = conn
			break
		}
	}
	delete(r.connMap, connID)
	return connID, nil
}

// AddAdmin grants admin rights to the connection after a one-way check of
// the shared room secret.
func (r *Room) AddAdmin(connID, pass string) error {
	if subtle.ConstantTimeCompare(r.passHash, hashPass(pass, r.passSalt)) != 1 {
		return ErrIncorrectPassword
	}
	if _, ok := r.admins[connID]; ok {
		return ErrAlreadyAdmin
	}
	r.admins[connID] = struct{}{}
	return nil
}

func (r *Room) IsAdmin(connID string) bool {
	_, ok := r.admins[connID]
	return ok
}

// MemberIDForConn resolves a connection to its member id in this room.
func (r *Room) MemberIDForConn(connID string) (ID, error) {
	id, ok := r.connMap[connID]
	if !ok {
		return 0, fmt.Errorf("%w: connection %s not in room %s", ErrConnNotInRoom, connID, r.code)
	}
	return id, nil
}

// ConnIDs returns the connection ids of every member.
func (r *Room) ConnIDs() []string {
	conns := make([]string, 0, len(r.connMap))
	for conn := range r.connMap {
		conns = append(conns, conn)
	}
	return conns
}

// BlessScore adds amount to the member's score out of thin air.
func (r *Room) BlessScore(to ID, amount int64) (ScoreUpdate, error) {
	member, ok := r.members[to]
	if !ok {
		return ScoreUpdate{}, fmt.Errorf("%w: member %d not in room %s", ErrMemberNotFound, to, r.code)
	}
	if err := member.SetScore(member.Score() + amount); err != nil {
		return ScoreUpdate{}, err
	}
	return ScoreUpdate{UserID: to, NewAmount: member.Score()}, nil
}

// TransferScore moves amount between two members as one transaction: both
// post-transfer balances are validated before either account is touched, so
// no reader under the room lock can ever observe a half-applied transfer.
func (r *Room) TransferScore(from, to ID, amount int64) (ScoreUpdate, ScoreUpdate, error) {
	fromMember, ok := r.members[from]
	if !ok {
		return ScoreUpdate{}, ScoreUpdate{}, fmt.Errorf("%w: member %d not in room %s", ErrMemberNotFound, from, r.code)
	}
	toMember, ok := r.members[to]
	if !ok {
		return ScoreUpdate{}, ScoreUpdate{}, fmt.Errorf("%w: member %d not in room %s", ErrMemberNotFound, to, r.code)
	}
	newFrom := fromMember.Score() - amount
	newTo := toMember.Score() + amount
	if newFrom < 0 {
		return ScoreUpdate{}, ScoreUpdate{}, fmt.Errorf("%w: member %d cannot hold score %d", ErrNegativeScore, from, newFrom)
	}
	if newTo < 0 {
		return ScoreUpdate{}, ScoreUpdate{}, fmt.Errorf("%w: member %d cannot hold score %d", ErrNegativeScore, to, newTo)
	}
	fromMember.score = newFrom
	toMember.score = newTo
	return ScoreUpdate{UserID: from, NewAmount: newFrom}, ScoreUpdate{UserID: to, NewAmount: newTo}, nil
}

func (r *Room) CreatePot(requirement int64, description string) *Pot {
	id := r.nextPotID
	r.nextPotID++
	pot := NewPot(id, requirement, description)
	r.pots[id] = pot
	return pot
}

// AddUserToPot debits the entry fee and escrows it in the pot. The member
// needs score >= requirement; on any failure the score is left untouched.
func (r *Room) AddUserToPot(member, potID ID) (int64, error) {
	pot, ok := r.pots[potID]
	if !ok {
		return 0, fmt.Errorf("%w: pot %d not in room %s", ErrPotNotFound, potID, r.code)
	}
	m, ok := r.members[member]
	if !ok {
		return 0, fmt.Errorf("%w: member %d not in room %s", ErrMemberNotFound, member, r.code)
	}
	if m.Score() < pot.Requirement {
		return 0, fmt.Errorf("%w: member %d has score %d, pot %d requires %d",
			ErrInsufficientScore, member, m.Score(), potID, pot.Requirement)
	}
	if err := pot.Join(member); err != nil {
		return 0, err
	}
	// cannot fail, sufficiency was checked above
	if err := m.SetScore(m.Score() - pot.Requirement); err != nil {
		panic(err)
	}
	m.joinPot(potID)
	return m.Score(), nil
}

// ResolvePot pays the entire total to the winner, dissolves the pot and
// scrubs every participant's membership reference.
func (r *Room) ResolvePot(potID, winner ID) (ScoreUpdate, error) {
	pot, ok := r.pots[potID]
	if !ok {
		return ScoreUpdate{}, fmt.Errorf("%w: pot %d not in room %s", ErrPotNotFound, potID, r.code)
	}
	winnerMember, ok := r.members[winner]
	if !ok {
		return ScoreUpdate{}, fmt.Errorf("%w: member %d not in room %s", ErrMemberNotFound, winner, r.code)
	}
	if err := winnerMember.SetScore(winnerMember.Score() + pot.Resolve()); err != nil {
		return ScoreUpdate{}, err
	}
	for _, participant := range pot.Participants() {
		if m, ok := r.members[participant]; ok {
			m.leavePot(potID)
		}
	}
	delete(r.pots, potID)
	return ScoreUpdate{UserID: winner, NewAmount: winnerMember.Score()}, nil
}

func (r *Room) CreateWager(name string, outcomes []WagerOutcome) *Wager {
	id := r.nextWagerID
	r.nextWagerID++
	wager := NewWager(id, name, outcomes)
	r.wagers[id] = wager
	return wager
}

// AddUserToWager stakes amount on one outcome and debits it from the member.
// Sufficiency is validated before the wager records the join, so a failed
// debit never leaves a stake behind.
func (r *Room) AddUserToWager(wagerID, member, outcome ID, amount int64) (int64, error) {
	wager, ok := r.wagers[wagerID]
	if !ok {
		return 0, fmt.Errorf("%w: wager %d not in room %s", ErrWagerNotFound, wagerID, r.code)
	}
	m, ok := r.members[member]
	if !ok {
		return 0, fmt.Errorf("%w: member %d not in room %s", ErrMemberNotFound, member, r.code)
	}
	if amount < 0 {
		amount = -amount
	}
	if m.Score() < amount {
		return 0, fmt.Errorf("%w: member %d cannot hold score %d", ErrNegativeScore, member, m.Score()-amount)
	}
	if err := wager.Join(member, outcome, amount); err != nil {
		return 0, err
	}
	if err := m.SetScore(m.Score() - amount); err != nil {
		panic(err)
	}
	m.joinWager(wagerID)
	return m.Score(), nil
}

// ResolveWager settles the wager for one outcome. Payouts are computed
// without touching the wager, then every recipient's existence and resulting
// balance are verified, and only then is anything applied; the whole
// resolution is rejected if any winner has since left the room or would be
// pushed below zero. Losers forfeit their stakes, winners and losers alike
// are scrubbed, and the wager is dissolved.
func (r *Room) ResolveWager(wagerID, outcome ID) ([]ScoreUpdate, error) {
	wager, ok := r.wagers[wagerID]
	if !ok {
		return nil, fmt.Errorf("%w: wager %d not in room %s", ErrWagerNotFound, wagerID, r.code)
	}
	payouts, err := wager.Payouts(outcome)
	if err != nil {
		return nil, err
	}
	for _, p := range payouts {
		m, ok := r.members[p.Participant]
		if !ok {
			return nil, fmt.Errorf("%w: member %d not in room %s", ErrMemberNotFound, p.Participant, r.code)
		}
		if m.Score()+p.ScoreDiff < 0 {
			return nil, fmt.Errorf("%w: member %d cannot hold score %d", ErrNegativeScore, p.Participant, m.Score()+p.ScoreDiff)
		}
	}
	updates := make([]ScoreUpdate, 0, len(payouts))
	for _, p := range payouts {
		m := r.members[p.Participant]
		// cannot fail, balances were checked above
		if err := m.SetScore(m.Score() + p.ScoreDiff); err != nil {
			panic(err)
		}
		updates = append(updates, ScoreUpdate{UserID: p.Participant, NewAmount: m.Score()})
	}
	for _, participant := range wager.Participants() {
		if m, ok := r.members[participant]; ok {
			m.leaveWager(wagerID)
		}
	}
	delete(r.wagers, wagerID)
	return updates, nil
}

// SyncData is the full snapshot sent to a (re)joining client.
type SyncData struct {
	Members []*Member `json:"members"`
	Pots    []*Pot    `json:"pots"`
	Wagers  []*Wager  `json:"wagers"`
}

func (r *Room) GetSyncData() SyncData {
	data := SyncData{
		Members: make([]*Member, 0, len(r.members)),
		Pots:    make([]*Pot, 0, len(r.pots)),
		Wagers:  make([]*Wager, 0, len(r.wagers)),
	}
	for _, m := range r.members {
		data.Members = append(data.Members, m)
	}
	for _, p := range r.pots {
		data.Pots = append(data.Pots, p)
	}
	for _, w := range r.wagers {
		data.Wagers = append(data.Wagers, w)
	}
	sort.Slice(data.Members, func(i, j int) bool { return data.Members[i].ID < data.Members[j].ID })
	sort.Slice(data.Pots, func(i, j int) bool { return data.Pots[i].ID < data.Pots[j].ID })
	sort.Slice(data.Wagers, func(i, j int) bool { return data.Wagers[i].ID < data.Wagers[j].ID })
	return data
}

// Member returns the live member record, for use under the room lock.
func (r *Room) Member(id ID) (*Member, bool) {
	m, ok := r.members[id]
	return m, ok
}

func (r *Room) Pot(id ID) (*Pot, bool) {
	p, ok := r.pots[id]
	return p, ok
}

func (r *Room) Wager(id ID) (*Wager, bool) {
	w, ok := r.wagers[id]
	return w, ok
}
