package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"letter-service/internal/clock"
	"letter-service/internal/events"
	"letter-service/internal/lifecycle"
	"letter-service/internal/models"
	"letter-service/internal/repositories"
)

// SocialConfig carries the connection-request policy.
type SocialConfig struct {
	DailyRequestCap int           // 5
	DeclineCooldown time.Duration // 7 days
}

// SocialService gates connection requests and handles responses.
type SocialService struct {
	connections repositories.ConnectionRepository
	clock       clock.Clock
	sink        lifecycle.EventSink
	cfg         SocialConfig
}

// NewSocialService builds a SocialService.
func NewSocialService(connections repositories.ConnectionRepository, clk clock.Clock, sink lifecycle.EventSink, cfg SocialConfig) *SocialService {
	return &SocialService{connections: connections, clock: clk, sink: sink, cfg: cfg}
}

// RequestConnection creates a pending request after the duplicate,
// cooldown and daily-cap checks all pass. The checks run before the
// insert; the partial unique index on pending (from, to) pairs is the
// backstop against a race between check and write.
func (s *SocialService) RequestConnection(ctx context.Context, from, to string, message *string) (models.ConnectionRequest, error) {
	if from == to {
		return models.ConnectionRequest{}, &ValidationError{Field: "to_user", Reason: "cannot request a connection with yourself"}
	}
	if to == "" {
		return models.ConnectionRequest{}, &ValidationError{Field: "to_user", Reason: "required"}
	}

	connected, err := s.connections.AreConnected(ctx, from, to)
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("check connection: %w", err)
	}
	if connected {
		return models.ConnectionRequest{}, ErrAlreadyPendingOrConnected
	}

	pending, err := s.connections.HasPendingRequest(ctx, from, to)
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("check pending: %w", err)
	}
	if pending {
		return models.ConnectionRequest{}, ErrAlreadyPendingOrConnected
	}

	now := s.clock.Now()

	declinedAt, err := s.connections.LatestDecline(ctx, from, to)
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("check cooldown: %w", err)
	}
	if declinedAt != nil && now.Sub(*declinedAt) < s.cfg.DeclineCooldown {
		return models.ConnectionRequest{}, ErrCooldownActive
	}

	count, err := s.connections.CountRequestsSince(ctx, from, startOfDay(now))
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("count requests: %w", err)
	}
	if count >= s.cfg.DailyRequestCap {
		return models.ConnectionRequest{}, ErrRateLimited
	}

	req := models.ConnectionRequest{
		ID:        uuid.New().String(),
		FromUser:  from,
		ToUser:    to,
		Status:    models.RequestPending,
		Message:   message,
		CreatedAt: now,
	}
	if err := s.connections.CreateRequest(ctx, &req); err != nil {
		if errors.Is(err, repositories.ErrDuplicatePending) {
			return models.ConnectionRequest{}, ErrAlreadyPendingOrConnected
		}
		return models.ConnectionRequest{}, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// RespondToRequest accepts or declines a pending request. Only the
// addressed user may respond, and only once: the status write is a
// compare-and-set on pending, so concurrent responses cannot both win.
// Acceptance establishes the connection and reciprocal contacts.
func (s *SocialService) RespondToRequest(ctx context.Context, requestID, actorID string, accept bool, reason *string) (models.ConnectionRequest, error) {
	req, err := s.connections.GetRequest(ctx, requestID)
	if err != nil {
		return models.ConnectionRequest{}, err
	}
	if req.ToUser != actorID {
		return models.ConnectionRequest{}, lifecycle.ErrNotAuthorized
	}
	if req.Status != models.RequestPending {
		return models.ConnectionRequest{}, ErrAlreadyResponded
	}

	now := s.clock.Now()
	status := models.RequestAccepted
	var declinedAt *time.Time
	if !accept {
		status = models.RequestDeclined
		declinedAt = &now
	}

	responded, err := s.connections.RespondRequest(ctx, requestID, status, reason, declinedAt)
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("respond request: %w", err)
	}
	if !responded {
		return models.ConnectionRequest{}, ErrAlreadyResponded
	}

	req.Status = status
	req.Reason = reason
	req.DeclinedAt = declinedAt

	if accept {
		if err := s.connections.EstablishConnection(ctx, req.FromUser, req.ToUser, now); err != nil {
			// Acceptance is durable; the connection statements are
			// idempotent and can be replayed by an operator or a retry.
			return req, fmt.Errorf("establish connection: %w", err)
		}
		s.sink.Emit(ctx, events.KeyConnection, events.TypeConnectionEstablished, events.ConnectionEstablished{
			UserA:  req.FromUser,
			UserB:  req.ToUser,
			Source: "request_accepted",
		})
	}
	return req, nil
}

// Connections lists the user's mutual connections.
func (s *SocialService) Connections(ctx context.Context, userID string) ([]models.Connection, error) {
	return s.connections.ListConnections(ctx, userID)
}

// Requests lists the user's incoming or outgoing requests.
func (s *SocialService) Requests(ctx context.Context, userID string, incoming bool) ([]models.ConnectionRequest, error) {
	return s.connections.ListRequests(ctx, userID, incoming)
}

// startOfDay truncates to the UTC calendar day; the daily cap window is
// keyed by day, not by a rolling 24h.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
