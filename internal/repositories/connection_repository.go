package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"letter-service/internal/models"
)

var (
	ErrRequestNotFound  = errors.New("connection request not found")
	ErrDuplicatePending = errors.New("pending request already exists")
)

// ConnectionRepository abstracts connections, connection requests and the
// reciprocal contact-book entries that every new connection creates.
type ConnectionRepository interface {
	AreConnected(ctx context.Context, a, b string) (bool, error)
	// EstablishConnection creates the connection row and both contact
	// entries in one transaction. Every statement is idempotent so a
	// partial failure can be replayed safely.
	EstablishConnection(ctx context.Context, a, b string, at time.Time) error
	ListConnections(ctx context.Context, userID string) ([]models.Connection, error)

	CreateRequest(ctx context.Context, req *models.ConnectionRequest) error
	GetRequest(ctx context.Context, id string) (models.ConnectionRequest, error)
	HasPendingRequest(ctx context.Context, from, to string) (bool, error)
	// RespondRequest closes a pending request; reports false when the
	// request was no longer pending.
	RespondRequest(ctx context.Context, id string, status models.RequestStatus, reason *string, declinedAt *time.Time) (bool, error)
	CountRequestsSince(ctx context.Context, from string, since time.Time) (int, error)
	LatestDecline(ctx context.Context, from, to string) (*time.Time, error)
	ListRequests(ctx context.Context, userID string, incoming bool) ([]models.ConnectionRequest, error)
}

// ConnectionRepo is a sqlx implementation of ConnectionRepository.
type ConnectionRepo struct {
	db *sqlx.DB
}

// NewConnectionRepo constructs a ConnectionRepo.
func NewConnectionRepo(db *sqlx.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

func (r *ConnectionRepo) AreConnected(ctx context.Context, a, b string) (bool, error) {
	userA, userB := models.CanonicalPair(a, b)
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM connections WHERE user_a=$1 AND user_b=$2)`, userA, userB)
	return exists, err
}

func (r *ConnectionRepo) EstablishConnection(ctx context.Context, a, b string, at time.Time) error {
	userA, userB := models.CanonicalPair(a, b)
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statements := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO connections (user_a, user_b, connected_at) VALUES ($1, $2, $3)
          ON CONFLICT (user_a, user_b) DO NOTHING`, []any{userA, userB, at}},
		{`INSERT INTO contacts (owner_id, contact_id, created_at) VALUES ($1, $2, $3)
          ON CONFLICT (owner_id, contact_id) DO NOTHING`, []any{userA, userB, at}},
		{`INSERT INTO contacts (owner_id, contact_id, created_at) VALUES ($1, $2, $3)
          ON CONFLICT (owner_id, contact_id) DO NOTHING`, []any{userB, userA, at}},
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ConnectionRepo) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.SelectContext(ctx, &conns,
		`SELECT user_a, user_b, connected_at FROM connections
         WHERE user_a=$1 OR user_b=$1 ORDER BY connected_at DESC`, userID)
	return conns, err
}

// CreateRequest inserts a pending request. The partial unique index on
// (from_user, to_user) WHERE status='pending' is the backstop against a
// race between the duplicate check and the insert.
func (r *ConnectionRepo) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connection_requests (id, from_user, to_user, status, message, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.FromUser, req.ToUser, req.Status, req.Message, req.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicatePending
	}
	return err
}

func (r *ConnectionRepo) GetRequest(ctx context.Context, id string) (models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT id, from_user, to_user, status, message, reason, declined_at, created_at
         FROM connection_requests WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConnectionRequest{}, ErrRequestNotFound
	}
	return req, err
}

func (r *ConnectionRepo) HasPendingRequest(ctx context.Context, from, to string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM connection_requests
         WHERE from_user=$1 AND to_user=$2 AND status=$3)`,
		from, to, models.RequestPending)
	return exists, err
}

func (r *ConnectionRepo) RespondRequest(ctx context.Context, id string, status models.RequestStatus, reason *string, declinedAt *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connection_requests SET status=$2, reason=$3, declined_at=$4
         WHERE id=$1 AND status=$5`,
		id, status, reason, declinedAt, models.RequestPending)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *ConnectionRepo) CountRequestsSince(ctx context.Context, from string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM connection_requests WHERE from_user=$1 AND created_at>=$2`,
		from, since)
	return count, err
}

func (r *ConnectionRepo) LatestDecline(ctx context.Context, from, to string) (*time.Time, error) {
	var declinedAt time.Time
	err := r.db.GetContext(ctx, &declinedAt,
		`SELECT declined_at FROM connection_requests
         WHERE from_user=$1 AND to_user=$2 AND status=$3 AND declined_at IS NOT NULL
         ORDER BY declined_at DESC LIMIT 1`,
		from, to, models.RequestDeclined)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &declinedAt, nil
}

func (r *ConnectionRepo) ListRequests(ctx context.Context, userID string, incoming bool) ([]models.ConnectionRequest, error) {
	column := "from_user"
	if incoming {
		column = "to_user"
	}
	var reqs []models.ConnectionRequest
	err := r.db.SelectContext(ctx, &reqs,
		`SELECT id, from_user, to_user, status, message, reason, declined_at, created_at
         FROM connection_requests WHERE `+column+`=$1 ORDER BY created_at DESC`, userID)
	return reqs, err
}
