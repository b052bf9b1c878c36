package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// WagerOutcome is one fixed-odds outcome of a wager. Odds are expressed in
// hundredths: odds of 30 pays round(stake * 0.30) on top of the stake.
type WagerOutcome struct {
	Name        string `json:"name"`
	ID          ID     `json:"id"`
	Description string `json:"description"`
	Odds        int64  `json:"odds"`
}

// Wager is a parimutuel-style bet: each member stakes once on exactly one
// outcome, winners get their stake back plus the odds fraction, losers
// forfeit their stake.
type Wager struct {
	ID   ID
	Name string

	outcomes map[ID]WagerOutcome
	stakes   map[ID]int64
	choices  map[ID]map[ID]struct{} // outcome id -> choosers
}

func NewWager(id ID, name string, outcomes []WagerOutcome) *Wager {
	table := make(map[ID]WagerOutcome, len(outcomes))
	for _, o := range outcomes {
		table[o.ID] = o
	}
	return &Wager{
		ID:       id,
		Name:     name,
		outcomes: table,
		stakes:   make(map[ID]int64),
		choices:  make(map[ID]map[ID]struct{}),
	}
}

// Join records a stake on one outcome. A member stakes at most once per
// wager, regardless of outcome; the stake is stored as an absolute value.
func (w *Wager) Join(member, outcome ID, amount int64) error {
	if _, ok := w.stakes[member]; ok {
		return fmt.Errorf("%w: member %d already staked on wager %d", ErrAlreadyInWager, member, w.ID)
	}
	if amount < 0 {
		amount = -amount
	}
	if w.choices[outcome] == nil {
		w.choices[outcome] = make(map[ID]struct{})
	}
	w.choices[outcome][member] = struct{}{}
	w.stakes[member] = amount
	return nil
}

// RemoveUser scrubs the member's stake and choice. Best effort, no refund.
func (w *Wager) RemoveUser(member ID) {
	delete(w.stakes, member)
	for _, choosers := range w.choices {
		delete(choosers, member)
	}
}

func (w *Wager) Stake(member ID) (int64, bool) {
	s, ok := w.stakes[member]
	return s, ok
}

func (w *Wager) Participants() []ID {
	ids := make([]ID, 0, len(w.stakes))
	for id := range w.stakes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Payout is the score delta owed to one winning participant.
type Payout struct {
	Participant ID
	ScoreDiff   int64
}

// Payouts computes, without mutating the wager, what each backer of the
// winning outcome is owed: stake + round(stake * odds / 100), rounded half
// away from zero at full precision. A winning outcome nobody chose is not an
// error; it yields an empty payout list.
func (w *Wager) Payouts(outcome ID) ([]Payout, error) {
	won, ok := w.outcomes[outcome]
	if !ok {
		return nil, fmt.Errorf("%w: outcome %d not in wager %d", ErrUnknownOutcome, outcome, w.ID)
	}
	winners := w.choices[outcome]
	if len(winners) == 0 {
		log.Warnf("wager %d resolved for outcome %d with no winners", w.ID, outcome)
		return nil, nil
	}
	mult := decimal.NewFromInt(won.Odds).Div(decimal.NewFromInt(100))
	payouts := make([]Payout, 0, len(winners))
	for member := range winners {
		stake, ok := w.stakes[member]
		if !ok {
			continue
		}
		bonus := decimal.NewFromInt(stake).Mul(mult).Round(0).IntPart()
		payouts = append(payouts, Payout{Participant: member, ScoreDiff: stake + bonus})
	}
	sort.Slice(payouts, func(i, j int) bool { return payouts[i].Participant < payouts[j].Participant })
	return payouts, nil
}

func (w *Wager) MarshalJSON() ([]byte, error) {
	choices := make(map[ID][]ID, len(w.choices))
	for outcome, choosers := range w.choices {
		choices[outcome] = sortedIDs(choosers)
	}
	return json.Marshal(struct {
		ID       ID                 `json:"id"`
		Bets     map[ID]int64       `json:"participant_bets"`
		Choices  map[ID][]ID        `json:"participant_choices"`
		Outcomes map[ID]WagerOutcome `json:"outcomes"`
		Name     string             `json:"name"`
	}{
		ID:       w.ID,
		Bets:     w.stakes,
		Choices:  choices,
		Outcomes: w.outcomes,
		Name:     w.Name,
	})
}
