package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"letter-service/internal/models"
	"letter-service/internal/repositories"
)

type LetterRepositoryMock struct {
	mock.Mock
}

func (m *LetterRepositoryMock) Create(ctx context.Context, letter *models.Letter) error {
	args := m.Called(ctx, letter)
	return args.Error(0)
}

func (m *LetterRepositoryMock) GetByID(ctx context.Context, id string) (models.Letter, error) {
	args := m.Called(ctx, id)
	var letter models.Letter
	if val := args.Get(0); val != nil {
		letter = val.(models.Letter)
	}
	return letter, args.Error(1)
}

func (m *LetterRepositoryMock) ListForSender(ctx context.Context, userID string) ([]models.Letter, error) {
	args := m.Called(ctx, userID)
	var letters []models.Letter
	if val := args.Get(0); val != nil {
		letters = val.([]models.Letter)
	}
	return letters, args.Error(1)
}

func (m *LetterRepositoryMock) ListForRecipient(ctx context.Context, userID string) ([]models.Letter, error) {
	args := m.Called(ctx, userID)
	var letters []models.Letter
	if val := args.Get(0); val != nil {
		letters = val.([]models.Letter)
	}
	return letters, args.Error(1)
}

func (m *LetterRepositoryMock) AdvanceStatus(ctx context.Context, id string, from, to models.LetterStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *LetterRepositoryMock) MarkOpened(ctx context.Context, id string, from models.LetterStatus, openedAt time.Time, revealAt *time.Time) (bool, error) {
	args := m.Called(ctx, id, from, openedAt, revealAt)
	return args.Bool(0), args.Error(1)
}

func (m *LetterRepositoryMock) MarkRevealed(ctx context.Context, id string, revealedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, revealedAt)
	return args.Bool(0), args.Error(1)
}

func (m *LetterRepositoryMock) Withdraw(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *LetterRepositoryMock) SetRecipient(ctx context.Context, id string, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *LetterRepositoryMock) DueForUnlock(ctx context.Context, now time.Time, limit int) ([]models.Letter, error) {
	args := m.Called(ctx, now, limit)
	var letters []models.Letter
	if val := args.Get(0); val != nil {
		letters = val.([]models.Letter)
	}
	return letters, args.Error(1)
}

func (m *LetterRepositoryMock) DueForReveal(ctx context.Context, now time.Time, limit int) ([]models.Letter, error) {
	args := m.Called(ctx, now, limit)
	var letters []models.Letter
	if val := args.Get(0); val != nil {
		letters = val.([]models.Letter)
	}
	return letters, args.Error(1)
}

type InviteRepositoryMock struct {
	mock.Mock
}

func (m *InviteRepositoryMock) Create(ctx context.Context, invite *models.LetterInvite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *InviteRepositoryMock) GetByLetter(ctx context.Context, letterID string) (models.LetterInvite, error) {
	args := m.Called(ctx, letterID)
	var invite models.LetterInvite
	if val := args.Get(0); val != nil {
		invite = val.(models.LetterInvite)
	}
	return invite, args.Error(1)
}

func (m *InviteRepositoryMock) GetByToken(ctx context.Context, token string) (models.LetterInvite, error) {
	args := m.Called(ctx, token)
	var invite models.LetterInvite
	if val := args.Get(0); val != nil {
		invite = val.(models.LetterInvite)
	}
	return invite, args.Error(1)
}

func (m *InviteRepositoryMock) Claim(ctx context.Context, token string, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, token, userID, at)
	return args.Bool(0), args.Error(1)
}

type ConnectionRepositoryMock struct {
	mock.Mock
}

func (m *ConnectionRepositoryMock) AreConnected(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func (m *ConnectionRepositoryMock) EstablishConnection(ctx context.Context, a, b string, at time.Time) error {
	args := m.Called(ctx, a, b, at)
	return args.Error(0)
}

func (m *ConnectionRepositoryMock) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	args := m.Called(ctx, userID)
	var conns []models.Connection
	if val := args.Get(0); val != nil {
		conns = val.([]models.Connection)
	}
	return conns, args.Error(1)
}

func (m *ConnectionRepositoryMock) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *ConnectionRepositoryMock) GetRequest(ctx context.Context, id string) (models.ConnectionRequest, error) {
	args := m.Called(ctx, id)
	var req models.ConnectionRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ConnectionRequest)
	}
	return req, args.Error(1)
}

func (m *ConnectionRepositoryMock) HasPendingRequest(ctx context.Context, from, to string) (bool, error) {
	args := m.Called(ctx, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *ConnectionRepositoryMock) RespondRequest(ctx context.Context, id string, status models.RequestStatus, reason *string, declinedAt *time.Time) (bool, error) {
	args := m.Called(ctx, id, status, reason, declinedAt)
	return args.Bool(0), args.Error(1)
}

func (m *ConnectionRepositoryMock) CountRequestsSince(ctx context.Context, from string, since time.Time) (int, error) {
	args := m.Called(ctx, from, since)
	return args.Int(0), args.Error(1)
}

func (m *ConnectionRepositoryMock) LatestDecline(ctx context.Context, from, to string) (*time.Time, error) {
	args := m.Called(ctx, from, to)
	var at *time.Time
	if val := args.Get(0); val != nil {
		at = val.(*time.Time)
	}
	return at, args.Error(1)
}

func (m *ConnectionRepositoryMock) ListRequests(ctx context.Context, userID string, incoming bool) ([]models.ConnectionRequest, error) {
	args := m.Called(ctx, userID, incoming)
	var reqs []models.ConnectionRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.ConnectionRequest)
	}
	return reqs, args.Error(1)
}

var _ repositories.LetterRepository = (*LetterRepositoryMock)(nil)
var _ repositories.InviteRepository = (*InviteRepositoryMock)(nil)
var _ repositories.ConnectionRepository = (*ConnectionRepositoryMock)(nil)
