package models

import "time"

// RequestStatus is the lifecycle state of a connection request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// ConnectionRequest is a one-directional ask for a mutual connection.
// At most one pending request may exist per (from, to) pair.
type ConnectionRequest struct {
	ID         string        `db:"id" json:"id"`
	FromUser   string        `db:"from_user" json:"from_user"`
	ToUser     string        `db:"to_user" json:"to_user"`
	Status     RequestStatus `db:"status" json:"status"`
	Message    *string       `db:"message" json:"message,omitempty"`
	Reason     *string       `db:"reason" json:"reason,omitempty"`
	DeclinedAt *time.Time    `db:"declined_at" json:"declined_at,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// Connection is a mutual link between two users, stored with the smaller
// id first so each pair has exactly one row.
type Connection struct {
	UserA       string    `db:"user_a" json:"user_a"`
	UserB       string    `db:"user_b" json:"user_b"`
	ConnectedAt time.Time `db:"connected_at" json:"connected_at"`
}

// CanonicalPair orders two user ids for storage.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Contact is a one-directional contact-book entry; connections always
// create them reciprocally.
type Contact struct {
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	ContactID string    `db:"contact_id" json:"contact_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
