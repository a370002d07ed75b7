package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letter-service/internal/clock"
	"letter-service/internal/events"
	"letter-service/internal/mocks"
	"letter-service/internal/models"
)

func seedLetter(t *testing.T, store *mocks.MemLetterStore, letter models.Letter) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &letter))
}

func TestUnlockReconcilerAdvancesDueLetters(t *testing.T) {
	store := mocks.NewMemLetterStore()
	clk := clock.NewFake(baseTime)
	sink := &mocks.RecordingSink{}

	due := sealedLetter()
	due.ID = "due"
	due.UnlocksAt = baseTime.Add(-time.Minute)
	seedLetter(t, store, due)

	notDue := sealedLetter()
	notDue.ID = "not-due"
	notDue.UnlocksAt = baseTime.Add(time.Hour)
	seedLetter(t, store, notDue)

	r := NewUnlockReconciler(store, clk, sink, ReconcilerConfig{})
	r.Tick(context.Background())

	got, err := store.GetByID(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)

	got, err = store.GetByID(context.Background(), "not-due")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSealed, got.Status)

	assert.Equal(t, []string{events.TypeLetterBecameReady}, sink.TypesSeen())
}

func TestUnlockReconcilerSkipsWithdrawn(t *testing.T) {
	store := mocks.NewMemLetterStore()
	clk := clock.NewFake(baseTime)
	sink := &mocks.RecordingSink{}

	deletedAt := baseTime.Add(-time.Hour)
	withdrawn := sealedLetter()
	withdrawn.ID = "withdrawn"
	withdrawn.UnlocksAt = baseTime.Add(-time.Minute)
	withdrawn.DeletedAt = &deletedAt
	withdrawn.Status = models.StatusExpired
	seedLetter(t, store, withdrawn)

	r := NewUnlockReconciler(store, clk, sink, ReconcilerConfig{})
	r.Tick(context.Background())

	got, err := store.GetByID(context.Background(), "withdrawn")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)
	assert.Empty(t, sink.TypesSeen())
}

func TestUnlockReconcilerIdempotent(t *testing.T) {
	store := mocks.NewMemLetterStore()
	clk := clock.NewFake(baseTime)
	sink := &mocks.RecordingSink{}

	due := sealedLetter()
	due.ID = "due"
	due.UnlocksAt = baseTime.Add(-time.Minute)
	seedLetter(t, store, due)

	r := NewUnlockReconciler(store, clk, sink, ReconcilerConfig{})
	r.Tick(context.Background())
	r.Tick(context.Background())

	got, err := store.GetByID(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)
	// Second tick found nothing due and emitted nothing.
	assert.Len(t, sink.TypesSeen(), 1)
}

func TestRevealReconcilerDisclosesSender(t *testing.T) {
	store := mocks.NewMemLetterStore()
	clk := clock.NewFake(baseTime)
	sink := &mocks.RecordingSink{}

	openedAt := baseTime.Add(-time.Hour)
	revealAt := baseTime.Add(-time.Minute)
	letter := sealedLetter()
	letter.ID = "anon"
	letter.Status = models.StatusOpened
	letter.IsAnonymous = true
	letter.OpenedAt = &openedAt
	letter.RevealAt = &revealAt
	seedLetter(t, store, letter)

	r := NewRevealReconciler(store, clk, sink, ReconcilerConfig{})
	r.Tick(context.Background())

	got, err := store.GetByID(context.Background(), "anon")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevealed, got.Status)
	require.NotNil(t, got.SenderRevealedAt)
	assert.Equal(t, baseTime, *got.SenderRevealedAt)
	assert.Equal(t, []string{events.TypeSenderRevealed}, sink.TypesSeen())
}

func TestRevealReconcilerNoopWhenAlreadyRevealed(t *testing.T) {
	store := mocks.NewMemLetterStore()
	clk := clock.NewFake(baseTime)
	sink := &mocks.RecordingSink{}

	openedAt := baseTime.Add(-2 * time.Hour)
	revealAt := baseTime.Add(-time.Hour)
	revealedAt := baseTime.Add(-30 * time.Minute)
	letter := sealedLetter()
	letter.ID = "revealed"
	letter.Status = models.StatusRevealed
	letter.IsAnonymous = true
	letter.OpenedAt = &openedAt
	letter.RevealAt = &revealAt
	letter.SenderRevealedAt = &revealedAt
	seedLetter(t, store, letter)

	r := NewRevealReconciler(store, clk, sink, ReconcilerConfig{})
	r.Tick(context.Background())

	got, err := store.GetByID(context.Background(), "revealed")
	require.NoError(t, err)
	assert.Equal(t, revealedAt, *got.SenderRevealedAt)
	assert.Empty(t, sink.TypesSeen())
}

func TestRevealReconcilerHonorsRevealDeadline(t *testing.T) {
	store := mocks.NewMemLetterStore()
	clk := clock.NewFake(baseTime)
	sink := &mocks.RecordingSink{}

	openedAt := baseTime.Add(-time.Minute)
	revealAt := baseTime.Add(time.Hour)
	letter := sealedLetter()
	letter.ID = "pending-reveal"
	letter.Status = models.StatusOpened
	letter.IsAnonymous = true
	letter.OpenedAt = &openedAt
	letter.RevealAt = &revealAt
	seedLetter(t, store, letter)

	r := NewRevealReconciler(store, clk, sink, ReconcilerConfig{})
	r.Tick(context.Background())

	got, err := store.GetByID(context.Background(), "pending-reveal")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpened, got.Status)
	assert.Nil(t, got.SenderRevealedAt)

	// Past the deadline, the next tick discloses.
	clk.Advance(2 * time.Hour)
	r.Tick(context.Background())

	got, err = store.GetByID(context.Background(), "pending-reveal")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevealed, got.Status)
}

func TestReconcilersRunConcurrentlyOnDisjointLetters(t *testing.T) {
	store := mocks.NewMemLetterStore()
	clk := clock.NewFake(baseTime)
	sink := &mocks.RecordingSink{}

	due := sealedLetter()
	due.ID = "due"
	due.UnlocksAt = baseTime.Add(-time.Minute)
	seedLetter(t, store, due)

	openedAt := baseTime.Add(-time.Hour)
	revealAt := baseTime.Add(-time.Minute)
	anon := sealedLetter()
	anon.ID = "anon"
	anon.Status = models.StatusOpened
	anon.IsAnonymous = true
	anon.OpenedAt = &openedAt
	anon.RevealAt = &revealAt
	seedLetter(t, store, anon)

	unlock := NewUnlockReconciler(store, clk, sink, ReconcilerConfig{})
	reveal := NewRevealReconciler(store, clk, sink, ReconcilerConfig{})

	done := make(chan struct{}, 2)
	go func() { unlock.Tick(context.Background()); done <- struct{}{} }()
	go func() { reveal.Tick(context.Background()); done <- struct{}{} }()
	<-done
	<-done

	got, err := store.GetByID(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)

	got, err = store.GetByID(context.Background(), "anon")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevealed, got.Status)
}
