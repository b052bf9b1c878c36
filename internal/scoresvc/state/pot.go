package state

import (
	"encoding/json"
	"fmt"
)

// Pot is a fixed-entry-fee escrow pool. Every entrant pays the same fee and
// a single winner eventually takes the whole total.
type Pot struct {
	ID          ID
	Requirement int64
	Description string

	total        int64
	participants map[ID]struct{}
}

func NewPot(id ID, requirement int64, description string) *Pot {
	return &Pot{
		ID:           id,
		Requirement:  requirement,
		Description:  description,
		participants: make(map[ID]struct{}),
	}
}

// Join escrows one entry fee for the member. At most one join per member.
func (p *Pot) Join(member ID) error {
	if _, ok := p.participants[member]; ok {
		return fmt.Errorf("%w: member %d already in pot %d", ErrAlreadyInPot, member, p.ID)
	}
	p.participants[member] = struct{}{}
	p.total += p.Requirement
	return nil
}

// RemoveUser drops the member from the participant set. The entry fee stays
// in the pot; leaving is not a refund.
func (p *Pot) RemoveUser(member ID) error {
	if _, ok := p.participants[member]; !ok {
		return fmt.Errorf("%w: member %d not in pot %d", ErrNotInPot, member, p.ID)
	}
	delete(p.participants, member)
	return nil
}

// Resolve reads the accumulated total. Paying the winner and dissolving the
// pot is the room's job.
func (p *Pot) Resolve() int64 {
	return p.total
}

func (p *Pot) Total() int64 {
	return p.total
}

func (p *Pot) Participants() []ID {
	return sortedIDs(p.participants)
}

func (p *Pot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           ID     `json:"pot_id"`
		TotalScore   int64  `json:"total_score"`
		Requirement  int64  `json:"score_requirement"`
		Participants []ID   `json:"participants"`
		Description  string `json:"description"`
	}{
		ID:           p.ID,
		TotalScore:   p.total,
		Requirement:  p.Requirement,
		Participants: sortedIDs(p.participants),
		Description:  p.Description,
	})
}
