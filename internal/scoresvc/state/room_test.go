package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPass = "pass"

func testRoom(t *testing.T) *Room {
	t.Helper()
	return NewRoom("AAAAAAAA", testPass)
}

// joinMember adds a member and blesses it up to score.
func joinMember(t *testing.T, r *Room, conn, name string, score int64) ID {
	t.Helper()
	id, err := r.AddUser(conn, name)
	require.NoError(t, err)
	if score > 0 {
		_, err = r.BlessScore(id, score)
		require.NoError(t, err)
	}
	return id
}

func TestRoomMembers(t *testing.T) {
	t.Run("ids are monotonic and never reused", func(t *testing.T) {
		r := testRoom(t)
		id0 := joinMember(t, r, "conn-a", "alice", 0)
		id1 := joinMember(t, r, "conn-b", "bob", 0)
		assert.Equal(t, ID(0), id0)
		assert.Equal(t, ID(1), id1)

		_, err := r.RemoveUser(id0)
		require.NoError(t, err)

		id2 := joinMember(t, r, "conn-c", "carol", 0)
		assert.Equal(t, ID(2), id2)
	})

	t.Run("one membership per connection", func(t *testing.T) {
		r := testRoom(t)
		joinMember(t, r, "conn-a", "alice", 0)
		_, err := r.AddUser("conn-a", "alice again")
		assert.ErrorIs(t, err, ErrAlreadyInRoom)
	})

	t.Run("remove unknown member", func(t *testing.T) {
		r := testRoom(t)
		_, err := r.RemoveUser(7)
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})

	t.Run("remove returns the connection id", func(t *testing.T) {
		r := testRoom(t)
		id := joinMember(t, r, "conn-a", "alice", 0)
		conn, err := r.RemoveUser(id)
		require.NoError(t, err)
		assert.Equal(t, "conn-a", conn)
	})
}

func TestRoomAdmin(t *testing.T) {
	r := testRoom(t)
	joinMember(t, r, "conn-a", "alice", 0)

	t.Run("wrong password", func(t *testing.T) {
		assert.ErrorIs(t, r.AddAdmin("conn-a", "wrong"), ErrIncorrectPassword)
		assert.False(t, r.IsAdmin("conn-a"))
	})

	t.Run("correct password grants once", func(t *testing.T) {
		require.NoError(t, r.AddAdmin("conn-a", testPass))
		assert.True(t, r.IsAdmin("conn-a"))

		assert.ErrorIs(t, r.AddAdmin("conn-a", testPass), ErrAlreadyAdmin)
	})
}

func TestBlessScore(t *testing.T) {
	r := testRoom(t)
	id := joinMember(t, r, "conn-a", "alice", 0)

	update, err := r.BlessScore(id, 100)
	require.NoError(t, err)
	assert.Equal(t, ScoreUpdate{UserID: id, NewAmount: 100}, update)

	t.Run("debit below zero is rejected, not clamped", func(t *testing.T) {
		_, err := r.BlessScore(id, -150)
		assert.ErrorIs(t, err, ErrNegativeScore)

		m, ok := r.Member(id)
		require.True(t, ok)
		assert.Equal(t, int64(100), m.Score())
	})
}

func TestTransferScore(t *testing.T) {
	t.Run("moves exactly the amount", func(t *testing.T) {
		r := testRoom(t)
		from := joinMember(t, r, "conn-a", "alice", 100)
		to := joinMember(t, r, "conn-b", "bob", 10)

		fromUpdate, toUpdate, err := r.TransferScore(from, to, 40)
		require.NoError(t, err)
		assert.Equal(t, ScoreUpdate{UserID: from, NewAmount: 60}, fromUpdate)
		assert.Equal(t, ScoreUpdate{UserID: to, NewAmount: 50}, toUpdate)
	})

	t.Run("failure leaves both balances untouched", func(t *testing.T) {
		r := testRoom(t)
		from := joinMember(t, r, "conn-a", "alice", 30)
		to := joinMember(t, r, "conn-b", "bob", 10)

		_, _, err := r.TransferScore(from, to, 40)
		assert.ErrorIs(t, err, ErrNegativeScore)

		fromM, _ := r.Member(from)
		toM, _ := r.Member(to)
		assert.Equal(t, int64(30), fromM.Score())
		assert.Equal(t, int64(10), toM.Score())
	})

	t.Run("negative amount cannot drain the receiver", func(t *testing.T) {
		r := testRoom(t)
		from := joinMember(t, r, "conn-a", "alice", 0)
		to := joinMember(t, r, "conn-b", "bob", 10)

		_, _, err := r.TransferScore(from, to, -40)
		assert.ErrorIs(t, err, ErrNegativeScore)
	})

	t.Run("unknown members", func(t *testing.T) {
		r := testRoom(t)
		from := joinMember(t, r, "conn-a", "alice", 10)
		_, _, err := r.TransferScore(from, 9, 5)
		assert.ErrorIs(t, err, ErrMemberNotFound)
		_, _, err = r.TransferScore(9, from, 5)
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})
}

func TestPotLifecycle(t *testing.T) {
	t.Run("join debits the fee into escrow", func(t *testing.T) {
		r := testRoom(t)
		id := joinMember(t, r, "conn-a", "alice", 100)
		pot := r.CreatePot(60, "the pot")

		newScore, err := r.AddUserToPot(id, pot.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(40), newScore)
		assert.Equal(t, int64(60), pot.Total())
	})

	t.Run("total equals fee times participants", func(t *testing.T) {
		r := testRoom(t)
		a := joinMember(t, r, "conn-a", "alice", 100)
		b := joinMember(t, r, "conn-b", "bob", 100)
		pot := r.CreatePot(25, "")

		_, err := r.AddUserToPot(a, pot.ID)
		require.NoError(t, err)
		_, err = r.AddUserToPot(b, pot.ID)
		require.NoError(t, err)

		assert.Equal(t, pot.Requirement*int64(len(pot.Participants())), pot.Total())
	})

	t.Run("insufficient score leaves everything untouched", func(t *testing.T) {
		r := testRoom(t)
		id := joinMember(t, r, "conn-a", "alice", 50)
		pot := r.CreatePot(60, "")

		_, err := r.AddUserToPot(id, pot.ID)
		assert.ErrorIs(t, err, ErrInsufficientScore)

		m, _ := r.Member(id)
		assert.Equal(t, int64(50), m.Score())
		assert.Equal(t, int64(0), pot.Total())
	})

	t.Run("double join debits exactly once", func(t *testing.T) {
		r := testRoom(t)
		id := joinMember(t, r, "conn-a", "alice", 100)
		pot := r.CreatePot(30, "")

		_, err := r.AddUserToPot(id, pot.ID)
		require.NoError(t, err)
		_, err = r.AddUserToPot(id, pot.ID)
		assert.ErrorIs(t, err, ErrAlreadyInPot)

		m, _ := r.Member(id)
		assert.Equal(t, int64(70), m.Score())
		assert.Equal(t, int64(30), pot.Total())
	})

	t.Run("resolve pays the winner everything and dissolves", func(t *testing.T) {
		r := testRoom(t)
		a := joinMember(t, r, "conn-a", "alice", 100)
		b := joinMember(t, r, "conn-b", "bob", 100)
		pot := r.CreatePot(40, "")
		_, err := r.AddUserToPot(a, pot.ID)
		require.NoError(t, err)
		_, err = r.AddUserToPot(b, pot.ID)
		require.NoError(t, err)

		update, err := r.ResolvePot(pot.ID, a)
		require.NoError(t, err)
		assert.Equal(t, ScoreUpdate{UserID: a, NewAmount: 60 + 80}, update)

		_, ok := r.Pot(pot.ID)
		assert.False(t, ok)

		bM, _ := r.Member(b)
		assert.False(t, bM.inPot(pot.ID))
	})

	t.Run("leaving the room forfeits the fee", func(t *testing.T) {
		r := testRoom(t)
		a := joinMember(t, r, "conn-a", "alice", 100)
		b := joinMember(t, r, "conn-b", "bob", 100)
		pot := r.CreatePot(40, "")
		_, err := r.AddUserToPot(a, pot.ID)
		require.NoError(t, err)
		_, err = r.AddUserToPot(b, pot.ID)
		require.NoError(t, err)

		_, err = r.RemoveUser(a)
		require.NoError(t, err)

		assert.Equal(t, []ID{b}, pot.Participants())
		assert.Equal(t, int64(80), pot.Total())
	})
}

func TestWagerLifecycle(t *testing.T) {
	outcomes := []WagerOutcome{
		{ID: 0, Name: "Outcome 1", Odds: 30},
		{ID: 1, Name: "Outcome 2", Odds: 70},
	}

	t.Run("join debits the stake", func(t *testing.T) {
		r := testRoom(t)
		id := joinMember(t, r, "conn-a", "alice", 100)
		w := r.CreateWager("wager", outcomes)

		newScore, err := r.AddUserToWager(w.ID, id, 0, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(0), newScore)
	})

	t.Run("insufficient score records nothing", func(t *testing.T) {
		r := testRoom(t)
		id := joinMember(t, r, "conn-a", "alice", 50)
		w := r.CreateWager("wager", outcomes)

		_, err := r.AddUserToWager(w.ID, id, 0, 100)
		assert.ErrorIs(t, err, ErrNegativeScore)

		_, staked := w.Stake(id)
		assert.False(t, staked)
		m, _ := r.Member(id)
		assert.Equal(t, int64(50), m.Score())
		assert.False(t, m.inWager(w.ID))
	})

	t.Run("resolve pays winners and forfeits losers", func(t *testing.T) {
		r := testRoom(t)
		a := joinMember(t, r, "conn-a", "alice", 100)
		b := joinMember(t, r, "conn-b", "bob", 100)
		w := r.CreateWager("wager", outcomes)
		_, err := r.AddUserToWager(w.ID, a, 0, 100)
		require.NoError(t, err)
		_, err = r.AddUserToWager(w.ID, b, 1, 100)
		require.NoError(t, err)

		updates, err := r.ResolveWager(w.ID, 0)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, ScoreUpdate{UserID: a, NewAmount: 130}, updates[0])

		_, ok := r.Wager(w.ID)
		assert.False(t, ok)

		bM, _ := r.Member(b)
		assert.Equal(t, int64(0), bM.Score())
		assert.False(t, bM.inWager(w.ID))
	})

	t.Run("resolving with no winners dissolves the wager", func(t *testing.T) {
		r := testRoom(t)
		a := joinMember(t, r, "conn-a", "alice", 100)
		w := r.CreateWager("wager", outcomes)
		_, err := r.AddUserToWager(w.ID, a, 1, 100)
		require.NoError(t, err)

		updates, err := r.ResolveWager(w.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, updates)

		_, ok := r.Wager(w.ID)
		assert.False(t, ok)
	})

	t.Run("a payout that would go below zero rejects the resolution", func(t *testing.T) {
		r := testRoom(t)
		a := joinMember(t, r, "conn-a", "alice", 100)
		w := r.CreateWager("wager", []WagerOutcome{{ID: 0, Name: "Outcome 1", Odds: -300}})
		_, err := r.AddUserToWager(w.ID, a, 0, 100)
		require.NoError(t, err)

		_, err = r.ResolveWager(w.ID, 0)
		assert.ErrorIs(t, err, ErrNegativeScore)

		_, ok := r.Wager(w.ID)
		assert.True(t, ok)
		m, _ := r.Member(a)
		assert.Equal(t, int64(0), m.Score())
	})

	t.Run("leaving the room forfeits the stake", func(t *testing.T) {
		r := testRoom(t)
		a := joinMember(t, r, "conn-a", "alice", 100)
		b := joinMember(t, r, "conn-b", "bob", 100)
		w := r.CreateWager("wager", outcomes)
		_, err := r.AddUserToWager(w.ID, a, 0, 100)
		require.NoError(t, err)
		_, err = r.AddUserToWager(w.ID, b, 1, 100)
		require.NoError(t, err)

		_, err = r.RemoveUser(a)
		require.NoError(t, err)

		// the stake is gone with the member, the other backer still wins
		updates, err := r.ResolveWager(w.ID, 1)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, ScoreUpdate{UserID: b, NewAmount: 170}, updates[0])
	})
}
