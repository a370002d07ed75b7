package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyOpened rejects a withdrawal after the recipient opened
	// the letter.
	ErrAlreadyOpened = errors.New("letter already opened")
	// ErrLetterDeleted rejects operations on a withdrawn letter.
	ErrLetterDeleted = errors.New("letter withdrawn")
	// ErrAlreadyClaimed means another claimant won the invite race; the
	// caller must not learn who.
	ErrAlreadyClaimed = errors.New("invite already claimed")
	// ErrAlreadyResponded means the request was already accepted or
	// declined, possibly by a concurrent response.
	ErrAlreadyResponded = errors.New("request already responded")
	// ErrRateLimited rejects a connection request over the daily cap.
	ErrRateLimited = errors.New("daily connection request limit reached")
	// ErrCooldownActive rejects a connection request during the
	// post-decline cooldown.
	ErrCooldownActive = errors.New("decline cooldown active")
	// ErrAlreadyPendingOrConnected rejects a duplicate or pointless
	// connection request.
	ErrAlreadyPendingOrConnected = errors.New("already pending or connected")
)

// ValidationError marks bad input shape or range, rejected before any
// write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
