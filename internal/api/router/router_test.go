package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saudeflow/agendabot/internal/http/handlers"
	"github.com/saudeflow/agendabot/internal/session"
)

type noopTurns struct{}

func (noopTurns) HandleTurn(context.Context, string, string, string, string) {}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, time.Hour)

	return New(&Config{
		Webhook:        handlers.NewWebhookHandler(noopTurns{}, nil),
		Dashboard:      handlers.NewDashboardHandler(store, nil),
		AdminJWTSecret: "s3cret",
	})
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	return signed
}

func TestHealthIsPublic(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sessions", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesAcceptValidJWT(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sessions")
}

func TestWebhookIsPublic(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	// Empty body is a bad request, not an auth failure.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
