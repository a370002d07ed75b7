package models

import "time"

// LetterStatus is the lifecycle state of a letter.
type LetterStatus string

const (
	StatusSealed   LetterStatus = "sealed"
	StatusReady    LetterStatus = "ready"
	StatusOpened   LetterStatus = "opened"
	StatusRevealed LetterStatus = "revealed"
	StatusExpired  LetterStatus = "expired"
)

// Letter is a time-locked message between a sender and a recipient.
// RecipientID is null for letters delivered by invite until the invite
// is claimed; after that it never changes again.
type Letter struct {
	ID                 string       `db:"id" json:"id"`
	SenderID           string       `db:"sender_id" json:"sender_id,omitempty"`
	RecipientID        *string      `db:"recipient_id" json:"recipient_id,omitempty"`
	Status             LetterStatus `db:"status" json:"status"`
	Body               string       `db:"body" json:"body,omitempty"`
	UnlocksAt          time.Time    `db:"unlocks_at" json:"unlocks_at"`
	OpenedAt           *time.Time   `db:"opened_at" json:"opened_at,omitempty"`
	IsAnonymous        bool         `db:"is_anonymous" json:"is_anonymous"`
	RevealDelaySeconds int          `db:"reveal_delay_seconds" json:"reveal_delay_seconds,omitempty"`
	RevealAt           *time.Time   `db:"reveal_at" json:"reveal_at,omitempty"`
	SenderRevealedAt   *time.Time   `db:"sender_revealed_at" json:"sender_revealed_at,omitempty"`
	DeletedAt          *time.Time   `db:"deleted_at" json:"-"`
	ExpiresAt          *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
}

// Withdrawn reports whether the sender has soft-deleted the letter.
func (l Letter) Withdrawn() bool {
	return l.DeletedAt != nil
}

// SentTo reports whether the letter is addressed to the given user.
func (l Letter) SentTo(userID string) bool {
	return l.RecipientID != nil && *l.RecipientID == userID
}

// RecipientView strips fields the recipient must not see: the sender of an
// anonymous letter stays hidden until the reveal reconciler discloses it.
func (l Letter) RecipientView() Letter {
	if l.IsAnonymous && l.SenderRevealedAt == nil {
		l.SenderID = ""
	}
	return l
}
