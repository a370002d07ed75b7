package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"letter-service/internal/clock"
	"letter-service/internal/mocks"
	"letter-service/internal/models"
)

// Storage failures must surface to the caller and never emit events for
// work that did not happen.

func newMockedLetterService(letters *mocks.LetterRepositoryMock, invites *mocks.InviteRepositoryMock, connections *mocks.ConnectionRepositoryMock, sink *mocks.SinkMock) *LetterService {
	return NewLetterService(letters, invites, connections, clock.NewFake(testTime), sink, LetterConfig{
		MaxRevealDelaySeconds:     259200,
		DefaultRevealDelaySeconds: 21600,
	})
}

func TestOpenLetterStorageFailure(t *testing.T) {
	letters := new(mocks.LetterRepositoryMock)
	sink := new(mocks.SinkMock)
	svc := newMockedLetterService(letters, new(mocks.InviteRepositoryMock), new(mocks.ConnectionRepositoryMock), sink)

	boom := errors.New("connection reset")
	letters.On("GetByID", mock.Anything, "l1").Return(nil, boom)

	_, err := svc.OpenLetter(context.Background(), "l1", "bob")
	assert.ErrorIs(t, err, boom)
	letters.AssertExpectations(t)
	sink.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOpenLetterMarkOpenedFailure(t *testing.T) {
	letters := new(mocks.LetterRepositoryMock)
	sink := new(mocks.SinkMock)
	svc := newMockedLetterService(letters, new(mocks.InviteRepositoryMock), new(mocks.ConnectionRepositoryMock), sink)

	recipient := "bob"
	ready := models.Letter{
		ID:          "l1",
		SenderID:    "alice",
		RecipientID: &recipient,
		Status:      models.StatusReady,
		UnlocksAt:   testTime.Add(-time.Hour),
	}
	boom := errors.New("write timeout")
	letters.On("GetByID", mock.Anything, "l1").Return(ready, nil)
	letters.On("MarkOpened", mock.Anything, "l1", models.StatusReady, mock.Anything, mock.Anything).Return(false, boom)

	_, err := svc.OpenLetter(context.Background(), "l1", "bob")
	assert.ErrorIs(t, err, boom)
	sink.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClaimInviteConnectionStepFailure(t *testing.T) {
	letters := new(mocks.LetterRepositoryMock)
	invites := new(mocks.InviteRepositoryMock)
	connections := new(mocks.ConnectionRepositoryMock)
	sink := new(mocks.SinkMock)
	svc := newMockedLetterService(letters, invites, connections, sink)

	invite := models.LetterInvite{ID: "i1", LetterID: "l1", Token: "tok"}
	letter := models.Letter{ID: "l1", SenderID: "alice", Status: models.StatusSealed, UnlocksAt: testTime}
	boom := errors.New("deadlock detected")

	invites.On("GetByToken", mock.Anything, "tok").Return(invite, nil)
	letters.On("GetByID", mock.Anything, "l1").Return(letter, nil)
	invites.On("Claim", mock.Anything, "tok", "carol", mock.Anything).Return(true, nil)
	letters.On("SetRecipient", mock.Anything, "l1", "carol").Return(nil)
	connections.On("EstablishConnection", mock.Anything, "alice", "carol", mock.Anything).Return(boom)

	_, err := svc.ClaimInvite(context.Background(), "tok", "carol")
	require.ErrorIs(t, err, boom)

	// The claim is durable but no event goes out until the connection
	// step succeeds on a retry.
	sink.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestConnectionCountFailure(t *testing.T) {
	connections := new(mocks.ConnectionRepositoryMock)
	sink := new(mocks.SinkMock)
	svc := NewSocialService(connections, clock.NewFake(testTime), sink, SocialConfig{DailyRequestCap: 5, DeclineCooldown: 7 * 24 * time.Hour})

	boom := errors.New("relation missing")
	connections.On("AreConnected", mock.Anything, "alice", "bob").Return(false, nil)
	connections.On("HasPendingRequest", mock.Anything, "alice", "bob").Return(false, nil)
	connections.On("LatestDecline", mock.Anything, "alice", "bob").Return(nil, nil)
	connections.On("CountRequestsSince", mock.Anything, "alice", mock.Anything).Return(0, boom)

	_, err := svc.RequestConnection(context.Background(), "alice", "bob", nil)
	assert.ErrorIs(t, err, boom)
	connections.AssertExpectations(t)
}
