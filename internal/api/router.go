// Package api wires the HTTP surface: versioned routing, auth, request-id
// and tracing middleware, and the five endpoints spec'd for the room
// synchronization engine.
package api

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukepan/roomsync-backend/internal/config"
	"github.com/dukepan/roomsync-backend/internal/middleware"
	"github.com/dukepan/roomsync-backend/internal/obslog"
	"github.com/dukepan/roomsync-backend/internal/registry"
	"github.com/dukepan/roomsync-backend/internal/telemetry"
	"github.com/dukepan/roomsync-backend/internal/wire"
)

// NewRouter builds the full middleware-wrapped mux for the configured API
// version, mirroring the teacher's router.go layout: request-id and tracing
// wrap every path; only the versioned API sits behind bearer auth, while
// /metrics and the invalid-version fallback are unauthenticated.
func NewRouter(cfg *config.Config, rooms *registry.RoomRegistry, sessions *registry.SessionRegistry, logger *obslog.Logger, recorder *telemetry.Recorder) http.Handler {
	h := NewHandlers(cfg, rooms, sessions, logger, recorder)

	versioned := http.NewServeMux()
	prefix := fmt.Sprintf("/v%d", config.APIVersion)
	versioned.HandleFunc("POST "+prefix+"/room/create", h.CreateRoom)
	versioned.HandleFunc("POST "+prefix+"/room/join", h.JoinRoom)
	versioned.HandleFunc("POST "+prefix+"/room/start", h.StartGame)
	versioned.HandleFunc("POST "+prefix+"/room/sync", h.Sync)
	versioned.HandleFunc("GET "+prefix+"/status", h.Status)

	var apiHandler http.Handler = withInvalidVersionFallback(versioned)
	apiHandler = middleware.AuthMiddleware(cfg.Password)(apiHandler)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.Handler())
	root.Handle(prefix+"/", apiHandler)
	root.HandleFunc("/", invalidVersionHandler)

	var handler http.Handler = root
	handler = middleware.TracingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}

// withInvalidVersionFallback lets an unmatched method/path under the right
// prefix still fall through to the spec's invalid-version body instead of
// ServeMux's plain-text 404.
func withInvalidVersionFallback(versioned *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := versioned.Handler(r)
		if pattern == "" {
			invalidVersionHandler(w, r)
			return
		}
		versioned.ServeHTTP(w, r)
	})
}

func invalidVersionHandler(w http.ResponseWriter, r *http.Request) {
	wire.EncodeError(w, http.StatusNotFound, fmt.Sprintf("Invalid API version. Use /v%d.", config.APIVersion))
}
