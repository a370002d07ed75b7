package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"letter-service/internal/clock"
	"letter-service/internal/events"
	"letter-service/internal/lifecycle"
	"letter-service/internal/models"
	"letter-service/internal/repositories"
)

const inviteTokenBytes = 32

// LetterConfig carries the reveal-delay policy.
type LetterConfig struct {
	MaxRevealDelaySeconds     int // 72h
	DefaultRevealDelaySeconds int // 6h
}

// LetterService coordinates letter creation, opening, withdrawal and the
// invite claim flow.
type LetterService struct {
	letters     repositories.LetterRepository
	invites     repositories.InviteRepository
	connections repositories.ConnectionRepository
	clock       clock.Clock
	sink        lifecycle.EventSink
	cfg         LetterConfig
}

// NewLetterService builds a LetterService.
func NewLetterService(
	letters repositories.LetterRepository,
	invites repositories.InviteRepository,
	connections repositories.ConnectionRepository,
	clk clock.Clock,
	sink lifecycle.EventSink,
	cfg LetterConfig,
) *LetterService {
	return &LetterService{
		letters:     letters,
		invites:     invites,
		connections: connections,
		clock:       clk,
		sink:        sink,
		cfg:         cfg,
	}
}

// CreateLetterParams is the input to CreateLetter. RecipientID may be nil
// for letters delivered by invite; RevealDelaySeconds defaults when nil
// and the letter is anonymous.
type CreateLetterParams struct {
	RecipientID        *string
	Body               string
	UnlocksAt          time.Time
	IsAnonymous        bool
	RevealDelaySeconds *int
	ExpiresAt          *time.Time
}

// CreateLetter validates the input and persists a new sealed letter.
// Anonymous letters require an explicit recipient with a pre-existing
// mutual connection; this is checked once, here, and never re-validated.
func (s *LetterService) CreateLetter(ctx context.Context, senderID string, params CreateLetterParams) (models.Letter, error) {
	if params.UnlocksAt.IsZero() {
		return models.Letter{}, &ValidationError{Field: "unlocks_at", Reason: "required"}
	}

	revealDelay := 0
	if params.IsAnonymous {
		revealDelay = s.cfg.DefaultRevealDelaySeconds
		if params.RevealDelaySeconds != nil {
			revealDelay = *params.RevealDelaySeconds
		}
		if revealDelay < 0 || revealDelay > s.cfg.MaxRevealDelaySeconds {
			return models.Letter{}, &ValidationError{
				Field:  "reveal_delay_seconds",
				Reason: fmt.Sprintf("must be in [0, %d]", s.cfg.MaxRevealDelaySeconds),
			}
		}
	} else if params.RevealDelaySeconds != nil {
		return models.Letter{}, &ValidationError{Field: "reveal_delay_seconds", Reason: "only valid for anonymous letters"}
	}

	if params.RecipientID != nil && *params.RecipientID == senderID {
		return models.Letter{}, &ValidationError{Field: "recipient_id", Reason: "cannot send a letter to yourself"}
	}

	if params.IsAnonymous {
		if params.RecipientID == nil {
			return models.Letter{}, &ValidationError{Field: "recipient_id", Reason: "anonymous letters require a recipient"}
		}
		connected, err := s.connections.AreConnected(ctx, senderID, *params.RecipientID)
		if err != nil {
			return models.Letter{}, fmt.Errorf("check connection: %w", err)
		}
		if !connected {
			return models.Letter{}, &ValidationError{Field: "recipient_id", Reason: "anonymous letters require a mutual connection"}
		}
	}

	letter := models.Letter{
		ID:                 uuid.New().String(),
		SenderID:           senderID,
		RecipientID:        params.RecipientID,
		Status:             models.StatusSealed,
		Body:               params.Body,
		UnlocksAt:          params.UnlocksAt.UTC(),
		IsAnonymous:        params.IsAnonymous,
		RevealDelaySeconds: revealDelay,
		ExpiresAt:          params.ExpiresAt,
		CreatedAt:          s.clock.Now(),
	}
	if err := s.letters.Create(ctx, &letter); err != nil {
		return models.Letter{}, fmt.Errorf("create letter: %w", err)
	}
	return letter, nil
}

// GetLetter returns the letter as the actor may see it. Withdrawn letters
// are invisible to everyone but the sender; anonymous senders stay hidden
// until revealed.
func (s *LetterService) GetLetter(ctx context.Context, letterID, actorID string) (models.Letter, error) {
	letter, err := s.letters.GetByID(ctx, letterID)
	if err != nil {
		return models.Letter{}, err
	}
	if letter.SenderID == actorID {
		return letter, nil
	}
	if letter.Withdrawn() || !letter.SentTo(actorID) {
		return models.Letter{}, repositories.ErrLetterNotFound
	}
	return letter.RecipientView(), nil
}

// Inbox lists letters addressed to the user, withdrawn letters excluded.
func (s *LetterService) Inbox(ctx context.Context, userID string) ([]models.Letter, error) {
	letters, err := s.letters.ListForRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range letters {
		letters[i] = letters[i].RecipientView()
	}
	return letters, nil
}

// Outbox lists letters the user sent.
func (s *LetterService) Outbox(ctx context.Context, userID string) ([]models.Letter, error) {
	return s.letters.ListForSender(ctx, userID)
}

// OpenLetter records the recipient's first open. For anonymous letters it
// computes reveal_at exactly once, as opened_at + reveal_delay_seconds.
// The write is a compare-and-set on the current status; if the unlock
// reconciler advances the letter mid-open, the open re-reads and retries
// once so no transition is silently lost.
func (s *LetterService) OpenLetter(ctx context.Context, letterID, actorID string) (models.Letter, error) {
	letter, err := s.letters.GetByID(ctx, letterID)
	if err != nil {
		return models.Letter{}, err
	}
	if letter.Withdrawn() {
		return models.Letter{}, repositories.ErrLetterNotFound
	}

	for attempt := 0; attempt < 2; attempt++ {
		now := s.clock.Now()
		if _, err := lifecycle.NextStatus(letter, lifecycle.ActionOpen, actorID, now); err != nil {
			if letter.Status == models.StatusOpened || letter.Status == models.StatusRevealed {
				// Already open; opening is not repeatable but the
				// recipient, and only the recipient, may still read it.
				if !letter.SentTo(actorID) {
					return models.Letter{}, lifecycle.ErrNotAuthorized
				}
				return letter.RecipientView(), nil
			}
			return models.Letter{}, err
		}

		var revealAt *time.Time
		if letter.IsAnonymous {
			at := now.Add(time.Duration(letter.RevealDelaySeconds) * time.Second)
			revealAt = &at
		}

		opened, err := s.letters.MarkOpened(ctx, letter.ID, letter.Status, now, revealAt)
		if err != nil {
			return models.Letter{}, fmt.Errorf("mark opened: %w", err)
		}
		if opened {
			letter.Status = models.StatusOpened
			letter.OpenedAt = &now
			letter.RevealAt = revealAt
			s.sink.Emit(ctx, events.KeyLetterOpened, events.TypeLetterOpened, events.LetterOpened{
				LetterID: letter.ID,
				OpenedBy: actorID,
				OpenedAt: now,
				RevealAt: revealAt,
			})
			return letter.RecipientView(), nil
		}

		// Status moved under us (reconciler tick or concurrent open);
		// re-read and re-evaluate.
		letter, err = s.letters.GetByID(ctx, letter.ID)
		if err != nil {
			return models.Letter{}, err
		}
		if letter.Withdrawn() {
			return models.Letter{}, repositories.ErrLetterNotFound
		}
	}
	return models.Letter{}, lifecycle.ErrInvalidTransition
}

// WithdrawLetter soft-deletes an unopened letter. The opened_at check is
// part of the conditional update itself, so a concurrent open cannot
// slip past it. Withdrawal is one-way; repeating it is an idempotent ack.
func (s *LetterService) WithdrawLetter(ctx context.Context, letterID, actorID string) error {
	letter, err := s.letters.GetByID(ctx, letterID)
	if err != nil {
		return err
	}
	if letter.SenderID != actorID {
		return lifecycle.ErrNotAuthorized
	}
	if letter.Withdrawn() {
		return nil
	}

	withdrawn, err := s.letters.Withdraw(ctx, letter.ID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("withdraw letter: %w", err)
	}
	if withdrawn {
		return nil
	}

	letter, err = s.letters.GetByID(ctx, letter.ID)
	if err != nil {
		return err
	}
	if letter.OpenedAt != nil {
		return ErrAlreadyOpened
	}
	// Another withdrawal won the race; same outcome.
	return nil
}

// CreateInvite issues the letter's single high-entropy invite token,
// returning the existing invite when one was already created.
func (s *LetterService) CreateInvite(ctx context.Context, letterID, actorID string) (models.LetterInvite, bool, error) {
	letter, err := s.letters.GetByID(ctx, letterID)
	if err != nil {
		return models.LetterInvite{}, false, err
	}
	if letter.SenderID != actorID {
		return models.LetterInvite{}, false, lifecycle.ErrNotAuthorized
	}
	if letter.Withdrawn() {
		return models.LetterInvite{}, false, ErrLetterDeleted
	}

	if existing, err := s.invites.GetByLetter(ctx, letterID); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, repositories.ErrInviteNotFound) {
		return models.LetterInvite{}, false, err
	}

	token, err := generateInviteToken()
	if err != nil {
		return models.LetterInvite{}, false, fmt.Errorf("generate token: %w", err)
	}
	invite := models.LetterInvite{
		ID:        uuid.New().String(),
		LetterID:  letterID,
		Token:     token,
		CreatedAt: s.clock.Now(),
	}
	if err := s.invites.Create(ctx, &invite); err != nil {
		if errors.Is(err, repositories.ErrInviteExists) {
			existing, getErr := s.invites.GetByLetter(ctx, letterID)
			if getErr != nil {
				return models.LetterInvite{}, false, getErr
			}
			return existing, true, nil
		}
		return models.LetterInvite{}, false, fmt.Errorf("create invite: %w", err)
	}
	return invite, false, nil
}

// ClaimInvite consumes an invite with a first-writer-wins conditional
// update, fixes the letter's recipient and establishes the mutual
// connection with reciprocal contacts. The claim is durable once the
// conditional update wins: if the connection step fails, a repeat call
// by the same claimant replays just that step. Events are published
// once the whole flow has completed for the winning claimant, so a
// retried claim still announces itself (at-least-once emission).
func (s *LetterService) ClaimInvite(ctx context.Context, token, actorID string) (string, error) {
	invite, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return "", err
	}
	letter, err := s.letters.GetByID(ctx, invite.LetterID)
	if err != nil {
		return "", err
	}
	if letter.Withdrawn() {
		return "", ErrLetterDeleted
	}
	if letter.SenderID == actorID {
		return "", lifecycle.ErrNotAuthorized
	}

	claimed, err := s.invites.Claim(ctx, token, actorID, s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("claim invite: %w", err)
	}
	if !claimed {
		invite, err = s.invites.GetByToken(ctx, token)
		if err != nil {
			return "", err
		}
		if !invite.Claimed() || invite.ClaimedBy == nil || *invite.ClaimedBy != actorID {
			return "", ErrAlreadyClaimed
		}
		// The claimant retrying after a partial failure falls through
		// to replay the idempotent connection establishment.
	}

	if err := s.letters.SetRecipient(ctx, letter.ID, actorID); err != nil {
		return "", fmt.Errorf("fix recipient: %w", err)
	}
	if err := s.connections.EstablishConnection(ctx, letter.SenderID, actorID, s.clock.Now()); err != nil {
		// The claim stands; surface the failure so the caller retries
		// the connection step by calling again.
		log.Error().Err(err).Str("letter_id", letter.ID).Msg("connection establishment failed after claim")
		return "", fmt.Errorf("establish connection: %w", err)
	}

	s.sink.Emit(ctx, events.KeyInviteClaimed, events.TypeInviteClaimed, events.InviteClaimed{
		InviteID:  invite.ID,
		LetterID:  letter.ID,
		ClaimedBy: actorID,
	})
	s.sink.Emit(ctx, events.KeyConnection, events.TypeConnectionEstablished, events.ConnectionEstablished{
		UserA:  letter.SenderID,
		UserB:  actorID,
		Source: "invite_claimed",
	})
	return letter.ID, nil
}

func generateInviteToken() (string, error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
