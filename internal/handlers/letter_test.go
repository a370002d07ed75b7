package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letter-service/internal/clock"
	"letter-service/internal/mocks"
	"letter-service/internal/services"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	router *gin.Engine
	clock  *clock.Fake
	sink   *mocks.RecordingSink

	letters     *mocks.MemLetterStore
	invites     *mocks.MemInviteStore
	connections *mocks.MemConnectionStore
}

// testAuth stands in for the JWT middleware, trusting a plain header.
func testAuth(c *gin.Context) {
	c.Set("userID", c.GetHeader("X-Test-User"))
	c.Next()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		clock:       clock.NewFake(testTime),
		sink:        &mocks.RecordingSink{},
		letters:     mocks.NewMemLetterStore(),
		invites:     mocks.NewMemInviteStore(),
		connections: mocks.NewMemConnectionStore(),
	}

	letterService := services.NewLetterService(env.letters, env.invites, env.connections, env.clock, env.sink, services.LetterConfig{
		MaxRevealDelaySeconds:     259200,
		DefaultRevealDelaySeconds: 21600,
	})
	socialService := services.NewSocialService(env.connections, env.clock, env.sink, services.SocialConfig{
		DailyRequestCap: 5,
		DeclineCooldown: 7 * 24 * time.Hour,
	})

	letterHandler := NewLetterHandler(letterService)
	socialHandler := NewSocialHandler(socialService)

	router := gin.New()
	router.Use(testAuth)
	router.POST("/letters", letterHandler.CreateLetter)
	router.GET("/letters", letterHandler.ListLetters)
	router.GET("/letters/:letter_id", letterHandler.GetLetter)
	router.POST("/letters/:letter_id/open", letterHandler.OpenLetter)
	router.DELETE("/letters/:letter_id", letterHandler.WithdrawLetter)
	router.POST("/letters/:letter_id/invite", letterHandler.CreateInvite)
	router.POST("/invites/claim", letterHandler.ClaimInvite)
	router.POST("/connections/requests", socialHandler.RequestConnection)
	router.POST("/connections/requests/:request_id/respond", socialHandler.RespondToRequest)
	router.GET("/connections/requests", socialHandler.ListRequests)
	router.GET("/connections", socialHandler.ListConnections)

	env.router = router
	return env
}

func (env *testEnv) do(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", userID)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (env *testEnv) createLetter(t *testing.T, sender string, body map[string]any) string {
	t.Helper()
	w := env.do(t, sender, http.MethodPost, "/letters", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestCreateLetterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "alice", http.MethodPost, "/letters", map[string]any{
		"recipient_id": "bob",
		"body":         "open this next year",
		"unlocks_at":   testTime.Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, "sealed", resp["status"])
	assert.NotEmpty(t, resp["id"])
}

func TestCreateLetterEndpointMissingUnlocksAt(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "alice", http.MethodPost, "/letters", map[string]any{
		"recipient_id": "bob",
		"body":         "no unlock time",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateLetterEndpointValidationError(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "alice", http.MethodPost, "/letters", map[string]any{
		"recipient_id": "alice",
		"unlocks_at":   testTime.Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode(t, w)["code"])
}

func TestOpenLetterEndpointBeforeUnlock(t *testing.T) {
	env := newTestEnv(t)
	id := env.createLetter(t, "alice", map[string]any{
		"recipient_id": "bob",
		"unlocks_at":   testTime.Add(time.Hour).Format(time.RFC3339),
	})

	w := env.do(t, "bob", http.MethodPost, "/letters/"+id+"/open", nil)
	require.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "not_yet_eligible", decode(t, w)["code"])
}

func TestOpenLetterEndpoint(t *testing.T) {
	env := newTestEnv(t)
	id := env.createLetter(t, "alice", map[string]any{
		"recipient_id": "bob",
		"unlocks_at":   testTime.Add(time.Hour).Format(time.RFC3339),
	})

	env.clock.Advance(2 * time.Hour)
	w := env.do(t, "bob", http.MethodPost, "/letters/"+id+"/open", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "opened", decode(t, w)["status"])
}

func TestOpenLetterEndpointByStranger(t *testing.T) {
	env := newTestEnv(t)
	id := env.createLetter(t, "alice", map[string]any{
		"recipient_id": "bob",
		"unlocks_at":   testTime.Add(-time.Hour).Format(time.RFC3339),
	})

	w := env.do(t, "mallory", http.MethodPost, "/letters/"+id+"/open", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Still forbidden once the recipient has opened it.
	w = env.do(t, "bob", http.MethodPost, "/letters/"+id+"/open", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, "mallory", http.MethodPost, "/letters/"+id+"/open", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetLetterHidesAnonymousSender(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.connections.EstablishConnection(context.Background(), "alice", "bob", testTime))

	id := env.createLetter(t, "alice", map[string]any{
		"recipient_id": "bob",
		"unlocks_at":   testTime.Add(-time.Hour).Format(time.RFC3339),
		"is_anonymous": true,
	})

	w := env.do(t, "bob", http.MethodGet, "/letters/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Empty(t, resp["sender_id"])

	// The sender still sees their own letter in full.
	w = env.do(t, "alice", http.MethodGet, "/letters/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["sender_id"])
}

func TestWithdrawLetterEndpoint(t *testing.T) {
	env := newTestEnv(t)
	id := env.createLetter(t, "alice", map[string]any{
		"recipient_id": "bob",
		"unlocks_at":   testTime.Add(time.Hour).Format(time.RFC3339),
	})

	w := env.do(t, "alice", http.MethodDelete, "/letters/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The recipient now sees nothing.
	w = env.do(t, "bob", http.MethodGet, "/letters/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWithdrawLetterEndpointAfterOpen(t *testing.T) {
	env := newTestEnv(t)
	id := env.createLetter(t, "alice", map[string]any{
		"recipient_id": "bob",
		"unlocks_at":   testTime.Add(-time.Hour).Format(time.RFC3339),
	})

	w := env.do(t, "bob", http.MethodPost, "/letters/"+id+"/open", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "alice", http.MethodDelete, "/letters/"+id, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_opened", decode(t, w)["code"])
}

func TestListLettersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createLetter(t, "alice", map[string]any{
		"recipient_id": "bob",
		"unlocks_at":   testTime.Add(time.Hour).Format(time.RFC3339),
	})

	w := env.do(t, "bob", http.MethodGet, "/letters?box=inbox", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["letters"], 1)

	w = env.do(t, "alice", http.MethodGet, "/letters?box=outbox", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["letters"], 1)

	w = env.do(t, "alice", http.MethodGet, "/letters?box=attic", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInviteFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	id := env.createLetter(t, "alice", map[string]any{
		"unlocks_at": testTime.Add(time.Hour).Format(time.RFC3339),
	})

	w := env.do(t, "alice", http.MethodPost, "/letters/"+id+"/invite", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	token := resp["token"].(string)
	assert.Equal(t, false, resp["already_existed"])

	// A repeat issue returns the same token with 200.
	w = env.do(t, "alice", http.MethodPost, "/letters/"+id+"/invite", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	assert.Equal(t, token, resp["token"])
	assert.Equal(t, true, resp["already_existed"])

	w = env.do(t, "carol", http.MethodPost, "/invites/claim", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, id, decode(t, w)["letter_id"])

	// A second claimant loses.
	w = env.do(t, "dave", http.MethodPost, "/invites/claim", map[string]any{"token": token})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_claimed", decode(t, w)["code"])
}

func TestClaimInviteEndpointUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "carol", http.MethodPost, "/invites/claim", map[string]any{"token": "bogus"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateInviteEndpointByNonSender(t *testing.T) {
	env := newTestEnv(t)
	id := env.createLetter(t, "alice", map[string]any{
		"unlocks_at": testTime.Add(time.Hour).Format(time.RFC3339),
	})

	w := env.do(t, "mallory", http.MethodPost, "/letters/"+id+"/invite", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateInviteEndpointForWithdrawnLetter(t *testing.T) {
	env := newTestEnv(t)
	id := env.createLetter(t, "alice", map[string]any{
		"unlocks_at": testTime.Add(time.Hour).Format(time.RFC3339),
	})
	w := env.do(t, "alice", http.MethodDelete, "/letters/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "alice", http.MethodPost, "/letters/"+id+"/invite", nil)
	require.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "letter_deleted", decode(t, w)["code"])
}

func TestLetterEndpointsNotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/letters/nope"},
		{http.MethodPost, "/letters/nope/open"},
		{http.MethodDelete, "/letters/nope"},
		{http.MethodPost, "/letters/nope/invite"},
	} {
		w := env.do(t, "alice", tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, fmt.Sprintf("%s %s", tc.method, tc.path))
	}
}
