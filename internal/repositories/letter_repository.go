package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"letter-service/internal/models"
)

var ErrLetterNotFound = errors.New("letter not found")

// LetterRepository abstracts letter persistence. All transition writes are
// conditional on the current state so concurrent writers cannot both win.
type LetterRepository interface {
	Create(ctx context.Context, letter *models.Letter) error
	GetByID(ctx context.Context, id string) (models.Letter, error)
	ListForSender(ctx context.Context, userID string) ([]models.Letter, error)
	ListForRecipient(ctx context.Context, userID string) ([]models.Letter, error)

	// AdvanceStatus moves the letter from one status to another; it
	// reports false when the letter was no longer in the expected status.
	AdvanceStatus(ctx context.Context, id string, from, to models.LetterStatus) (bool, error)
	// MarkOpened sets opened_at (and reveal_at for anonymous letters)
	// exactly once, conditional on the expected prior status.
	MarkOpened(ctx context.Context, id string, from models.LetterStatus, openedAt time.Time, revealAt *time.Time) (bool, error)
	// MarkRevealed sets status and sender_revealed_at in a single write.
	MarkRevealed(ctx context.Context, id string, revealedAt time.Time) (bool, error)
	// Withdraw soft-deletes the letter only while it is still unopened.
	Withdraw(ctx context.Context, id string, at time.Time) (bool, error)
	// SetRecipient fixes the recipient of an invite letter exactly once.
	SetRecipient(ctx context.Context, id string, userID string) error

	DueForUnlock(ctx context.Context, now time.Time, limit int) ([]models.Letter, error)
	DueForReveal(ctx context.Context, now time.Time, limit int) ([]models.Letter, error)
}

const letterColumns = `id, sender_id, recipient_id, status, body, unlocks_at, opened_at,
    is_anonymous, reveal_delay_seconds, reveal_at, sender_revealed_at, deleted_at, expires_at, created_at`

// LetterRepo is a sqlx implementation of LetterRepository.
type LetterRepo struct {
	db *sqlx.DB
}

// NewLetterRepo constructs a LetterRepo.
func NewLetterRepo(db *sqlx.DB) *LetterRepo {
	return &LetterRepo{db: db}
}

func (r *LetterRepo) Create(ctx context.Context, letter *models.Letter) error {
	query := `INSERT INTO letters
        (id, sender_id, recipient_id, status, body, unlocks_at, is_anonymous, reveal_delay_seconds, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		letter.ID, letter.SenderID, letter.RecipientID, letter.Status, letter.Body,
		letter.UnlocksAt, letter.IsAnonymous, letter.RevealDelaySeconds, letter.ExpiresAt, letter.CreatedAt)
	return err
}

func (r *LetterRepo) GetByID(ctx context.Context, id string) (models.Letter, error) {
	var letter models.Letter
	err := r.db.GetContext(ctx, &letter, `SELECT `+letterColumns+` FROM letters WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Letter{}, ErrLetterNotFound
	}
	return letter, err
}

func (r *LetterRepo) ListForSender(ctx context.Context, userID string) ([]models.Letter, error) {
	var letters []models.Letter
	err := r.db.SelectContext(ctx, &letters,
		`SELECT `+letterColumns+` FROM letters WHERE sender_id=$1 ORDER BY created_at DESC`, userID)
	return letters, err
}

// ListForRecipient excludes withdrawn letters; the recipient never learns
// a withdrawn letter existed.
func (r *LetterRepo) ListForRecipient(ctx context.Context, userID string) ([]models.Letter, error) {
	var letters []models.Letter
	err := r.db.SelectContext(ctx, &letters,
		`SELECT `+letterColumns+` FROM letters
         WHERE recipient_id=$1 AND deleted_at IS NULL ORDER BY created_at DESC`, userID)
	return letters, err
}

func (r *LetterRepo) AdvanceStatus(ctx context.Context, id string, from, to models.LetterStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE letters SET status=$3 WHERE id=$1 AND status=$2 AND deleted_at IS NULL`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *LetterRepo) MarkOpened(ctx context.Context, id string, from models.LetterStatus, openedAt time.Time, revealAt *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE letters SET status=$3, opened_at=$4, reveal_at=$5
         WHERE id=$1 AND status=$2 AND opened_at IS NULL AND deleted_at IS NULL`,
		id, from, models.StatusOpened, openedAt, revealAt)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *LetterRepo) MarkRevealed(ctx context.Context, id string, revealedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE letters SET status=$2, sender_revealed_at=$3
         WHERE id=$1 AND status=$4 AND sender_revealed_at IS NULL AND deleted_at IS NULL`,
		id, models.StatusRevealed, revealedAt, models.StatusOpened)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *LetterRepo) Withdraw(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE letters SET deleted_at=$2, status=$3
         WHERE id=$1 AND opened_at IS NULL AND deleted_at IS NULL`,
		id, at, models.StatusExpired)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *LetterRepo) SetRecipient(ctx context.Context, id string, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE letters SET recipient_id=$2 WHERE id=$1 AND recipient_id IS NULL`, id, userID)
	return err
}

func (r *LetterRepo) DueForUnlock(ctx context.Context, now time.Time, limit int) ([]models.Letter, error) {
	var letters []models.Letter
	err := r.db.SelectContext(ctx, &letters,
		`SELECT `+letterColumns+` FROM letters
         WHERE status=$1 AND unlocks_at<=$2 AND deleted_at IS NULL
         ORDER BY unlocks_at LIMIT $3`,
		models.StatusSealed, now, limit)
	return letters, err
}

func (r *LetterRepo) DueForReveal(ctx context.Context, now time.Time, limit int) ([]models.Letter, error) {
	var letters []models.Letter
	err := r.db.SelectContext(ctx, &letters,
		`SELECT `+letterColumns+` FROM letters
         WHERE is_anonymous AND opened_at IS NOT NULL AND sender_revealed_at IS NULL
           AND reveal_at<=$1 AND deleted_at IS NULL
         ORDER BY reveal_at LIMIT $2`,
		now, limit)
	return letters, err
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
