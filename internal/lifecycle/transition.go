package lifecycle

import (
	"errors"
	"time"

	"letter-service/internal/models"
)

var (
	// ErrInvalidTransition means the state machine has no edge for the
	// requested action from the letter's current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotAuthorized means the actor may not perform the transition.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotYetEligible means the transition's time guard has not passed.
	ErrNotYetEligible = errors.New("not yet eligible")
)

// Action is a requested transition on a letter.
type Action int

const (
	// ActionUnlock advances a sealed letter whose unlock time has passed.
	ActionUnlock Action = iota
	// ActionOpen is the recipient opening the letter.
	ActionOpen
	// ActionReveal discloses the sender of an anonymous, opened letter.
	ActionReveal
	// ActionWithdraw is the sender soft-deleting an unopened letter.
	ActionWithdraw
)

// NextStatus is the pure decision function of the letter state machine.
// Given the letter, the requested action, the acting user ("" for the
// reconcilers) and the current time, it returns the status the letter
// should move to, or a rejection. It performs no I/O; callers persist
// the result with a conditional write on the current status.
func NextStatus(l models.Letter, action Action, actor string, now time.Time) (models.LetterStatus, error) {
	if l.Withdrawn() {
		return "", ErrInvalidTransition
	}

	switch action {
	case ActionUnlock:
		if l.Status != models.StatusSealed {
			return "", ErrInvalidTransition
		}
		if now.Before(l.UnlocksAt) {
			return "", ErrNotYetEligible
		}
		return models.StatusReady, nil

	case ActionOpen:
		// Sealed letters can be opened directly once past due; the
		// reconciler's Ready hop is not a gate.
		if l.Status != models.StatusSealed && l.Status != models.StatusReady {
			return "", ErrInvalidTransition
		}
		if !l.SentTo(actor) {
			return "", ErrNotAuthorized
		}
		if now.Before(l.UnlocksAt) {
			return "", ErrNotYetEligible
		}
		return models.StatusOpened, nil

	case ActionReveal:
		if l.Status != models.StatusOpened {
			return "", ErrInvalidTransition
		}
		if !l.IsAnonymous || l.SenderRevealedAt != nil || l.RevealAt == nil {
			return "", ErrInvalidTransition
		}
		if now.Before(*l.RevealAt) {
			return "", ErrNotYetEligible
		}
		return models.StatusRevealed, nil

	case ActionWithdraw:
		if l.Status != models.StatusSealed && l.Status != models.StatusReady {
			return "", ErrInvalidTransition
		}
		if l.SenderID != actor {
			return "", ErrNotAuthorized
		}
		if l.OpenedAt != nil {
			return "", ErrInvalidTransition
		}
		return models.StatusExpired, nil
	}

	return "", ErrInvalidTransition
}
