package trip

import "errors"

// The error taxonomy for trip events. All of these are recoverable and local
// to the triggering event; none is a process fault.
var (
	// ErrInvalidRequest rejects malformed events: missing ids, unknown trip,
	// fare owned by another user. No state changes.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStaleTransition marks the loser of an event race: an accept for a
	// trip that already moved on, a duplicate of an applied event, a cancel
	// of a terminal trip. Callers ignore it.
	ErrStaleTransition = errors.New("stale transition")

	// ErrQuoteExpired rejects a start-trip call whose fare quote outlived
	// the configured TTL. The rider must re-preview.
	ErrQuoteExpired = errors.New("quote expired")

	// ErrNoDriverAvailable reports an exhausted match: every candidate in
	// range declined or timed out.
	ErrNoDriverAvailable = errors.New("no driver available")
)
