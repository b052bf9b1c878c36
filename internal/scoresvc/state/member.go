package state

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Member is one participant's ledger entry in a room.
type Member struct {
	ID   ID
	Name string

	score         int64
	currentPots   map[ID]struct{}
	currentWagers map[ID]struct{}
}

func NewMember(id ID, name string) *Member {
	return &Member{
		ID:            id,
		Name:          name,
		currentPots:   make(map[ID]struct{}),
		currentWagers: make(map[ID]struct{}),
	}
}

func (m *Member) Score() int64 {
	return m.score
}

// SetScore commits the new balance, rejecting negatives outright. Scores are
// never clamped.
func (m *Member) SetScore(score int64) error {
	if score < 0 {
		return fmt.Errorf("%w: member %d cannot hold score %d", ErrNegativeScore, m.ID, score)
	}
	m.score = score
	return nil
}

// ScoreUpdate is the post-mutation (member, score) pair broadcast after any
// ledger change.
type ScoreUpdate struct {
	UserID    ID    `json:"user_id"`
	NewAmount int64 `json:"new_amount"`
}

func (m *Member) joinPot(id ID)      { m.currentPots[id] = struct{}{} }
func (m *Member) leavePot(id ID)     { delete(m.currentPots, id) }
func (m *Member) joinWager(id ID)    { m.currentWagers[id] = struct{}{} }
func (m *Member) leaveWager(id ID)   { delete(m.currentWagers, id) }
func (m *Member) inPot(id ID) bool   { _, ok := m.currentPots[id]; return ok }
func (m *Member) inWager(id ID) bool { _, ok := m.currentWagers[id]; return ok }

func sortedIDs(set map[ID]struct{}) []ID {
	ids := make([]ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Member) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID            ID     `json:"id"`
		Name          string `json:"name"`
		Score         int64  `json:"score"`
		CurrentPots   []ID   `json:"current_pots"`
		CurrentWagers []ID   `json:"current_wagers"`
	}{
		ID:            m.ID,
		Name:          m.Name,
		Score:         m.score,
		CurrentPots:   sortedIDs(m.currentPots),
		CurrentWagers: sortedIDs(m.currentWagers),
	})
}
