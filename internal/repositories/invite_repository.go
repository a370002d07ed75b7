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
	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteExists   = errors.New("invite already exists for letter")
)

// InviteRepository abstracts letter-invite persistence. Claim must be a
// single compare-and-set so that under concurrent claims exactly one
// caller observes success.
type InviteRepository interface {
	Create(ctx context.Context, invite *models.LetterInvite) error
	GetByLetter(ctx context.Context, letterID string) (models.LetterInvite, error)
	GetByToken(ctx context.Context, token string) (models.LetterInvite, error)
	Claim(ctx context.Context, token string, userID string, at time.Time) (bool, error)
}

// InviteRepo is a sqlx implementation of InviteRepository.
type InviteRepo struct {
	db *sqlx.DB
}

// NewInviteRepo constructs an InviteRepo.
func NewInviteRepo(db *sqlx.DB) *InviteRepo {
	return &InviteRepo{db: db}
}

func (r *InviteRepo) Create(ctx context.Context, invite *models.LetterInvite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO letter_invites (id, letter_id, token, created_at) VALUES ($1, $2, $3, $4)`,
		invite.ID, invite.LetterID, invite.Token, invite.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrInviteExists
	}
	return err
}

func (r *InviteRepo) GetByLetter(ctx context.Context, letterID string) (models.LetterInvite, error) {
	var invite models.LetterInvite
	err := r.db.GetContext(ctx, &invite,
		`SELECT id, letter_id, token, claimed_at, claimed_by, created_at FROM letter_invites WHERE letter_id=$1`,
		letterID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LetterInvite{}, ErrInviteNotFound
	}
	return invite, err
}

func (r *InviteRepo) GetByToken(ctx context.Context, token string) (models.LetterInvite, error) {
	var invite models.LetterInvite
	err := r.db.GetContext(ctx, &invite,
		`SELECT id, letter_id, token, claimed_at, claimed_by, created_at FROM letter_invites WHERE token=$1`,
		token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LetterInvite{}, ErrInviteNotFound
	}
	return invite, err
}

// Claim consumes the invite with a single conditional update; it reports
// false when another claimant already won.
func (r *InviteRepo) Claim(ctx context.Context, token string, userID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE letter_invites SET claimed_at=$2, claimed_by=$3 WHERE token=$1 AND claimed_at IS NULL`,
		token, at, userID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}
