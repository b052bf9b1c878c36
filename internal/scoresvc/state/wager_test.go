package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWager() *Wager {
	return NewWager(0, "wager", []WagerOutcome{
		{ID: 0, Name: "Outcome 1", Description: "outcome 1", Odds: 30},
		{ID: 1, Name: "Outcome 2", Description: "outcome 2", Odds: 70},
	})
}

func TestWagerJoin(t *testing.T) {
	t.Run("one stake per member", func(t *testing.T) {
		w := testWager()
		require.NoError(t, w.Join(0, 0, 100))

		err := w.Join(0, 1, 50)
		assert.ErrorIs(t, err, ErrAlreadyInWager)

		stake, ok := w.Stake(0)
		require.True(t, ok)
		assert.Equal(t, int64(100), stake)
	})

	t.Run("stake stored as absolute value", func(t *testing.T) {
		w := testWager()
		require.NoError(t, w.Join(0, 0, -100))

		stake, ok := w.Stake(0)
		require.True(t, ok)
		assert.Equal(t, int64(100), stake)
	})
}

func TestWagerPayouts(t *testing.T) {
	t.Run("winner gets stake plus odds fraction", func(t *testing.T) {
		w := testWager()
		require.NoError(t, w.Join(0, 0, 100))
		require.NoError(t, w.Join(1, 1, 100))

		payouts, err := w.Payouts(0)
		require.NoError(t, err)
		require.Len(t, payouts, 1)
		assert.Equal(t, ID(0), payouts[0].Participant)
		// 100 + round(100 * 0.30)
		assert.Equal(t, int64(130), payouts[0].ScoreDiff)
	})

	t.Run("rounds half away from zero", func(t *testing.T) {
		w := NewWager(0, "w", []WagerOutcome{{ID: 0, Odds: 25}})
		require.NoError(t, w.Join(0, 0, 50))

		payouts, err := w.Payouts(0)
		require.NoError(t, err)
		require.Len(t, payouts, 1)
		// 50 + round(12.5) = 50 + 13
		assert.Equal(t, int64(63), payouts[0].ScoreDiff)
	})

	t.Run("zero odds returns just the stake", func(t *testing.T) {
		w := NewWager(0, "w", []WagerOutcome{{ID: 0, Odds: 0}})
		require.NoError(t, w.Join(0, 0, 50))

		payouts, err := w.Payouts(0)
		require.NoError(t, err)
		require.Len(t, payouts, 1)
		assert.Equal(t, int64(50), payouts[0].ScoreDiff)
	})

	t.Run("unknown outcome", func(t *testing.T) {
		w := testWager()
		_, err := w.Payouts(9)
		assert.ErrorIs(t, err, ErrUnknownOutcome)
	})

	t.Run("no winners is empty, not an error", func(t *testing.T) {
		w := testWager()
		require.NoError(t, w.Join(0, 1, 100))

		payouts, err := w.Payouts(0)
		require.NoError(t, err)
		assert.Empty(t, payouts)
	})

	t.Run("does not mutate the wager", func(t *testing.T) {
		w := testWager()
		require.NoError(t, w.Join(0, 0, 100))

		_, err := w.Payouts(0)
		require.NoError(t, err)

		_, ok := w.Stake(0)
		assert.True(t, ok)
		assert.Equal(t, []ID{0}, w.Participants())
	})
}

func TestWagerRemoveUser(t *testing.T) {
	w := testWager()
	require.NoError(t, w.Join(0, 0, 100))
	require.NoError(t, w.Join(1, 0, 100))

	w.RemoveUser(0)

	_, ok := w.Stake(0)
	assert.False(t, ok)

	payouts, err := w.Payouts(0)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, ID(1), payouts[0].Participant)
}
