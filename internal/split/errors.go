package split

import "errors"

var (
	// ErrStaleSession is returned when the announcement-message key does
	// not resolve to an open session: it either never existed or was
	// already finalized.
	ErrStaleSession = errors.New("split session expired or unknown")

	// ErrAlreadyJoined is returned when a member joins a roster they are
	// already on.
	ErrAlreadyJoined = errors.New("already on the roster")

	// ErrNotOwner is returned when someone other than the organizer tries
	// to finalize a split.
	ErrNotOwner = errors.New("only the split owner can finalize")

	// ErrEmptyRoster is returned when finalizing a split nobody joined.
	ErrEmptyRoster = errors.New("roster is empty")
)
