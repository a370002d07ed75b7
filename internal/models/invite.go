package models

import "time"

// LetterInvite lets an unregistered recipient claim a letter. One invite
// per letter; the claim is a one-time, first-writer-wins event.
type LetterInvite struct {
	ID        string     `db:"id" json:"id"`
	LetterID  string     `db:"letter_id" json:"letter_id"`
	Token     string     `db:"token" json:"token"`
	ClaimedAt *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	ClaimedBy *string    `db:"claimed_by" json:"claimed_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Claimed reports whether the invite has been consumed.
func (i LetterInvite) Claimed() bool {
	return i.ClaimedAt != nil
}
