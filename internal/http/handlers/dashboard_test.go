package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saudeflow/agendabot/internal/session"
)

func newDashboardRig(t *testing.T) (*DashboardHandler, *session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, time.Hour)
	return NewDashboardHandler(store, nil), store
}

func mountDashboard(h *DashboardHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/sessions", h.ListSessions)
	r.Get("/admin/sessions/{identity}/{instance}", h.GetSession)
	r.Delete("/admin/sessions/{identity}/{instance}", h.ClearSession)
	r.Delete("/admin/sessions", h.ClearAllSessions)
	return r
}

func TestListSessions(t *testing.T) {
	h, store := newDashboardRig(t)
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, "P1", "I1")
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, "P2", "I1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mountDashboard(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Sessions map[string]*session.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Sessions, 2)
	assert.Contains(t, out.Sessions, "P1:I1")
}

func TestGetSessionFound(t *testing.T) {
	h, store := newDashboardRig(t)
	sess, err := store.GetOrCreate(context.Background(), "P1", "I1")
	require.NoError(t, err)
	sess.Data["munic_id"] = "941"
	require.NoError(t, store.Save(context.Background(), sess))

	rec := httptest.NewRecorder()
	mountDashboard(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sessions/P1/I1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "P1", got.Identity)
	assert.Equal(t, "941", got.DataString("munic_id"))
}

func TestGetSessionNotFound(t *testing.T) {
	h, _ := newDashboardRig(t)

	rec := httptest.NewRecorder()
	mountDashboard(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sessions/nobody/I1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearSession(t *testing.T) {
	h, store := newDashboardRig(t)
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, "P1", "I1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mountDashboard(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/sessions/P1/I1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	sess, err := store.Get(ctx, "P1", "I1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestClearAllSessions(t *testing.T) {
	h, store := newDashboardRig(t)
	ctx := context.Background()
	for _, id := range []string{"P1", "P2", "P3"} {
		_, err := store.GetOrCreate(ctx, id, "I1")
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	mountDashboard(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "3")
	remaining, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
