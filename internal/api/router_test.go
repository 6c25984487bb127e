package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukepan/roomsync-backend/internal/config"
	"github.com/dukepan/roomsync-backend/internal/obslog"
	"github.com/dukepan/roomsync-backend/internal/registry"
	"github.com/dukepan/roomsync-backend/internal/telemetry"
)

func newTestRouter(t *testing.T, password string) http.Handler {
	t.Helper()
	cfg := &config.Config{
		RoomLimit:     10,
		LobbyLifetime: time.Minute,
		GameLifetime:  time.Minute,
		Password:      password,
	}
	return NewRouter(cfg, registry.NewRoomRegistry(cfg.RoomLimit), registry.NewSessionRegistry(),
		obslog.New("error"), telemetry.NewNoop())
}

func TestRouterRejectsUnversionedPath(t *testing.T) {
	router := newTestRouter(t, "")
	req := httptest.NewRequest(http.MethodGet, "/v999/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterMetricsIsNeverAuthenticated(t *testing.T) {
	router := newTestRouter(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRejectsBadBearerToken(t *testing.T) {
	router := newTestRouter(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/v2/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, rec.Body.Bytes(), "an auth mismatch must carry no body, unlike the invalid-version 404")
}

func TestRouterRejectsMissingBearerHeader(t *testing.T) {
	router := newTestRouter(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/v2/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, rec.Body.Bytes())
}

func TestRouterAcceptsCorrectBearerToken(t *testing.T) {
	router := newTestRouter(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/v2/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
