package service

import "errors"

// Caller-visible error taxonomy for the allocation engine. Transient
// collisions are absorbed by bounded retries and never reach callers; these
// sentinels cover the conditions that do.
var (
	// ErrCodeSpaceExhausted: a bounded retry loop ran out of attempts without
	// drawing a unique code. Practically unreachable for classic codes but
	// handled, not assumed away.
	ErrCodeSpaceExhausted = errors.New("could not draw a unique code within the attempt budget")

	// ErrPoolExhausted: the ultra inventory has zero free slots even after the
	// lazy sweep. Will not self-resolve within the same request.
	ErrPoolExhausted = errors.New("no free ultra code slot")

	// ErrPoolTemporarilyUnavailable: every digit length is either past its
	// entropy gate or exhausted its attempts. Maps to "try again later".
	ErrPoolTemporarilyUnavailable = errors.New("no digit code is available right now, try again later")

	// ErrSlotAlreadyHeld: the link already holds an ultra slot. A caller-logic
	// error, never retried.
	ErrSlotAlreadyHeld = errors.New("a link may hold only one ultra code at a time")

	// ErrLeaseAlreadyHeld: the link already holds a digit lease. A caller-logic
	// error, never retried.
	ErrLeaseAlreadyHeld = errors.New("a link may hold only one digit code at a time")

	// ErrUsernameTaken: another account reserves the requested username.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrUsernameNotSwitchable: the switch target does not exist for the
	// account or is already active.
	ErrUsernameNotSwitchable = errors.New("username does not exist or is already active")

	// ErrUnknownCodeSpace: the requested code space is not one a caller may
	// claim into.
	ErrUnknownCodeSpace = errors.New("unknown code space")
)
