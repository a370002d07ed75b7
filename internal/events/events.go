package events

import "time"

// Routing keys for the topic exchange; the notification service binds to
// "letters.#" and "connections.#".
const (
	TypeLetterBecameReady     = "letter_became_ready"
	TypeLetterOpened          = "letter_opened"
	TypeSenderRevealed        = "sender_revealed"
	TypeConnectionEstablished = "connection_established"
	TypeInviteClaimed         = "invite_claimed"

	KeyLetterReady    = "letters.ready"
	KeyLetterOpened   = "letters.opened"
	KeySenderRevealed = "letters.revealed"
	KeyConnection     = "connections.established"
	KeyInviteClaimed  = "invites.claimed"
)

// Envelope wraps every published event.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Service       string    `json:"service"`
	Payload       any       `json:"payload"`
}

type LetterBecameReady struct {
	LetterID    string    `json:"letter_id"`
	RecipientID *string   `json:"recipient_id,omitempty"`
	UnlocksAt   time.Time `json:"unlocks_at"`
}

type LetterOpened struct {
	LetterID string     `json:"letter_id"`
	OpenedBy string     `json:"opened_by"`
	OpenedAt time.Time  `json:"opened_at"`
	RevealAt *time.Time `json:"reveal_at,omitempty"`
}

type SenderRevealed struct {
	LetterID   string    `json:"letter_id"`
	SenderID   string    `json:"sender_id"`
	RevealedAt time.Time `json:"revealed_at"`
}

type ConnectionEstablished struct {
	UserA  string `json:"user_a"`
	UserB  string `json:"user_b"`
	Source string `json:"source"` // "request_accepted" or "invite_claimed"
}

type InviteClaimed struct {
	InviteID  string `json:"invite_id"`
	LetterID  string `json:"letter_id"`
	ClaimedBy string `json:"claimed_by"`
}
