package mocks

import (
	"context"
	"sync"
	"time"

	"letter-service/internal/models"
	"letter-service/internal/repositories"
)

// MemLetterStore is an in-memory LetterRepository with the same
// compare-and-set semantics as the SQL implementation, for exercising
// races and reconciler idempotence without a database.
type MemLetterStore struct {
	mu      sync.Mutex
	letters map[string]models.Letter
}

func NewMemLetterStore() *MemLetterStore {
	return &MemLetterStore{letters: map[string]models.Letter{}}
}

func (s *MemLetterStore) Create(ctx context.Context, letter *models.Letter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters[letter.ID] = *letter
	return nil
}

func (s *MemLetterStore) GetByID(ctx context.Context, id string) (models.Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	letter, ok := s.letters[id]
	if !ok {
		return models.Letter{}, repositories.ErrLetterNotFound
	}
	return letter, nil
}

func (s *MemLetterStore) ListForSender(ctx context.Context, userID string) ([]models.Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Letter
	for _, l := range s.letters {
		if l.SenderID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemLetterStore) ListForRecipient(ctx context.Context, userID string) ([]models.Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Letter
	for _, l := range s.letters {
		if l.SentTo(userID) && !l.Withdrawn() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemLetterStore) AdvanceStatus(ctx context.Context, id string, from, to models.LetterStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	letter, ok := s.letters[id]
	if !ok || letter.Status != from || letter.Withdrawn() {
		return false, nil
	}
	letter.Status = to
	s.letters[id] = letter
	return true, nil
}

func (s *MemLetterStore) MarkOpened(ctx context.Context, id string, from models.LetterStatus, openedAt time.Time, revealAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	letter, ok := s.letters[id]
	if !ok || letter.Status != from || letter.OpenedAt != nil || letter.Withdrawn() {
		return false, nil
	}
	letter.Status = models.StatusOpened
	letter.OpenedAt = &openedAt
	letter.RevealAt = revealAt
	s.letters[id] = letter
	return true, nil
}

func (s *MemLetterStore) MarkRevealed(ctx context.Context, id string, revealedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	letter, ok := s.letters[id]
	if !ok || letter.Status != models.StatusOpened || letter.SenderRevealedAt != nil || letter.Withdrawn() {
		return false, nil
	}
	letter.Status = models.StatusRevealed
	letter.SenderRevealedAt = &revealedAt
	s.letters[id] = letter
	return true, nil
}

func (s *MemLetterStore) Withdraw(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	letter, ok := s.letters[id]
	if !ok || letter.OpenedAt != nil || letter.Withdrawn() {
		return false, nil
	}
	letter.DeletedAt = &at
	letter.Status = models.StatusExpired
	s.letters[id] = letter
	return true, nil
}

func (s *MemLetterStore) SetRecipient(ctx context.Context, id string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	letter, ok := s.letters[id]
	if !ok || letter.RecipientID != nil {
		return nil
	}
	letter.RecipientID = &userID
	s.letters[id] = letter
	return nil
}

func (s *MemLetterStore) DueForUnlock(ctx context.Context, now time.Time, limit int) ([]models.Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Letter
	for _, l := range s.letters {
		if l.Status == models.StatusSealed && !l.UnlocksAt.After(now) && !l.Withdrawn() {
			out = append(out, l)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemLetterStore) DueForReveal(ctx context.Context, now time.Time, limit int) ([]models.Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Letter
	for _, l := range s.letters {
		if l.IsAnonymous && l.OpenedAt != nil && l.SenderRevealedAt == nil && !l.Withdrawn() &&
			l.RevealAt != nil && !l.RevealAt.After(now) {
			out = append(out, l)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// MemInviteStore is an in-memory InviteRepository with first-writer-wins
// claim semantics.
type MemInviteStore struct {
	mu      sync.Mutex
	invites map[string]models.LetterInvite // by token
}

func NewMemInviteStore() *MemInviteStore {
	return &MemInviteStore{invites: map[string]models.LetterInvite{}}
}

func (s *MemInviteStore) Create(ctx context.Context, invite *models.LetterInvite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.LetterID == invite.LetterID {
			return repositories.ErrInviteExists
		}
	}
	s.invites[invite.Token] = *invite
	return nil
}

func (s *MemInviteStore) GetByLetter(ctx context.Context, letterID string) (models.LetterInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.LetterID == letterID {
			return inv, nil
		}
	}
	return models.LetterInvite{}, repositories.ErrInviteNotFound
}

func (s *MemInviteStore) GetByToken(ctx context.Context, token string) (models.LetterInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[token]
	if !ok {
		return models.LetterInvite{}, repositories.ErrInviteNotFound
	}
	return invite, nil
}

func (s *MemInviteStore) Claim(ctx context.Context, token string, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[token]
	if !ok || invite.ClaimedAt != nil {
		return false, nil
	}
	invite.ClaimedAt = &at
	invite.ClaimedBy = &userID
	s.invites[token] = invite
	return true, nil
}

// MemConnectionStore is an in-memory ConnectionRepository.
type MemConnectionStore struct {
	mu          sync.Mutex
	connections map[[2]string]time.Time
	requests    map[string]models.ConnectionRequest
}

func NewMemConnectionStore() *MemConnectionStore {
	return &MemConnectionStore{
		connections: map[[2]string]time.Time{},
		requests:    map[string]models.ConnectionRequest{},
	}
}

func (s *MemConnectionStore) AreConnected(ctx context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userA, userB := models.CanonicalPair(a, b)
	_, ok := s.connections[[2]string{userA, userB}]
	return ok, nil
}

func (s *MemConnectionStore) EstablishConnection(ctx context.Context, a, b string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	userA, userB := models.CanonicalPair(a, b)
	key := [2]string{userA, userB}
	if _, ok := s.connections[key]; !ok {
		s.connections[key] = at
	}
	return nil
}

// ConnectionCount reports how many connection rows exist, for asserting
// that races do not duplicate pairs.
func (s *MemConnectionStore) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *MemConnectionStore) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Connection
	for pair, at := range s.connections {
		if pair[0] == userID || pair[1] == userID {
			out = append(out, models.Connection{UserA: pair[0], UserB: pair[1], ConnectedAt: at})
		}
	}
	return out, nil
}

func (s *MemConnectionStore) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.FromUser == req.FromUser && existing.ToUser == req.ToUser && existing.Status == models.RequestPending {
			return repositories.ErrDuplicatePending
		}
	}
	s.requests[req.ID] = *req
	return nil
}

func (s *MemConnectionStore) GetRequest(ctx context.Context, id string) (models.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return models.ConnectionRequest{}, repositories.ErrRequestNotFound
	}
	return req, nil
}

func (s *MemConnectionStore) HasPendingRequest(ctx context.Context, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.FromUser == from && req.ToUser == to && req.Status == models.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemConnectionStore) RespondRequest(ctx context.Context, id string, status models.RequestStatus, reason *string, declinedAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != models.RequestPending {
		return false, nil
	}
	req.Status = status
	req.Reason = reason
	req.DeclinedAt = declinedAt
	s.requests[id] = req
	return true, nil
}

func (s *MemConnectionStore) CountRequestsSince(ctx context.Context, from string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, req := range s.requests {
		if req.FromUser == from && !req.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemConnectionStore) LatestDecline(ctx context.Context, from, to string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *time.Time
	for _, req := range s.requests {
		if req.FromUser == from && req.ToUser == to && req.Status == models.RequestDeclined && req.DeclinedAt != nil {
			if latest == nil || req.DeclinedAt.After(*latest) {
				at := *req.DeclinedAt
				latest = &at
			}
		}
	}
	return latest, nil
}

func (s *MemConnectionStore) ListRequests(ctx context.Context, userID string, incoming bool) ([]models.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConnectionRequest
	for _, req := range s.requests {
		if (incoming && req.ToUser == userID) || (!incoming && req.FromUser == userID) {
			out = append(out, req)
		}
	}
	return out, nil
}

// RecordingSink collects emitted events for assertions.
type RecordingSink struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

type RecordedEvent struct {
	RoutingKey string
	EventType  string
	Payload    any
}

func (s *RecordingSink) Emit(ctx context.Context, routingKey, eventType string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, RecordedEvent{RoutingKey: routingKey, EventType: eventType, Payload: payload})
}

// TypesSeen returns the emitted event types in order.
func (s *RecordingSink) TypesSeen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Events))
	for _, e := range s.Events {
		out = append(out, e.EventType)
	}
	return out
}

var _ repositories.LetterRepository = (*MemLetterStore)(nil)
var _ repositories.InviteRepository = (*MemInviteStore)(nil)
var _ repositories.ConnectionRepository = (*MemConnectionStore)(nil)
