package state

import "errors"

// Sentinel errors for everything the state layer can refuse. Handlers wrap
// these with context via fmt.Errorf("%w: ...") and clients match with
// errors.Is.
var (
	// lookup
	ErrRoomNotFound    = errors.New("room-not-found")
	ErrRoomExists      = errors.New("room-already-exists")
	ErrSessionNotFound = errors.New("session-not-found")
	ErrNotInAnyRoom    = errors.New("not-in-any-room")
	ErrMemberNotFound  = errors.New("member-not-in-room")
	ErrConnNotInRoom   = errors.New("connection-not-in-room")
	ErrPotNotFound     = errors.New("pot-not-found")
	ErrWagerNotFound   = errors.New("wager-not-found")
	ErrUnknownOutcome  = errors.New("unknown-outcome")

	// authorization
	ErrIncorrectPassword = errors.New("incorrect-password")
	ErrAlreadyAdmin      = errors.New("already-admin")
	ErrNotAuthorized     = errors.New("not-authorized")

	// invariant
	ErrNegativeScore     = errors.New("negative-score")
	ErrInsufficientScore = errors.New("insufficient-score")
	ErrAlreadyInRoom     = errors.New("already-in-room")
	ErrAlreadyInPot      = errors.New("already-in-pot")
	ErrNotInPot          = errors.New("not-in-pot")
	ErrAlreadyInWager    = errors.New("already-in-wager")

	// protocol / delivery
	ErrBadPayload  = errors.New("bad-payload")
	ErrEncodeEvent = errors.New("event-encode-failed")
)

// DisplayToUser reports whether the error text is safe and useful to show
// verbatim to the client. Everything else is surfaced as a generic internal
// error; session lookups and serialization failures are always internal.
func DisplayToUser(err error) bool {
	for _, e := range []error{
		ErrRoomNotFound,
		ErrRoomExists,
		ErrNotInAnyRoom,
		ErrIncorrectPassword,
		ErrAlreadyAdmin,
		ErrNotAuthorized,
		ErrNegativeScore,
		ErrInsufficientScore,
		ErrAlreadyInPot,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
