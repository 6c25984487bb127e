package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukepan/roomsync-backend/internal/apperr"
	"github.com/dukepan/roomsync-backend/internal/config"
	"github.com/dukepan/roomsync-backend/internal/core"
	"github.com/dukepan/roomsync-backend/internal/obslog"
	"github.com/dukepan/roomsync-backend/internal/registry"
	"github.com/dukepan/roomsync-backend/internal/telemetry"
	"github.com/dukepan/roomsync-backend/internal/wire"
)

// Handlers implements the five room-synchronization endpoints against the
// core and registry packages.
type Handlers struct {
	cfg      *config.Config
	rooms    *registry.RoomRegistry
	sessions *registry.SessionRegistry
	logger   *obslog.Logger
	recorder *telemetry.Recorder

	cooldownMu sync.Mutex
	lastSyncAt map[uuid.UUID]time.Time
}

// NewHandlers constructs a Handlers value wired to the given registries.
func NewHandlers(cfg *config.Config, rooms *registry.RoomRegistry, sessions *registry.SessionRegistry, logger *obslog.Logger, recorder *telemetry.Recorder) *Handlers {
	return &Handlers{
		cfg:        cfg,
		rooms:      rooms,
		sessions:   sessions,
		logger:     logger,
		recorder:   recorder,
		lastSyncAt: make(map[uuid.UUID]time.Time),
	}
}

func (h *Handlers) writeErr(w http.ResponseWriter, req *http.Request, err error) {
	ae := apperr.Of(err)
	if ae.Kind == apperr.KindInternal {
		h.logger.Error(req.Context(), "internal error on %s %s: %s", req.Method, req.URL.Path, ae.Message)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	wire.EncodeError(w, ae.Status(), ae.Message)
}

// CreateRoom handles POST /v<N>/room/create.
func (h *Handlers) CreateRoom(w http.ResponseWriter, req *http.Request) {
	var body wire.CreateRoomRequest
	if err := wire.Decode(req, &body); err != nil {
		h.writeErr(w, req, apperr.BadRequest("malformed request body"))
		return
	}

	owner, err := core.NewUser(body.User.Name)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}

	room, err := h.rooms.Create(body.Version, owner, body.Size, h.cfg.LobbyLifetime, h.cfg.GameLifetime)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}

	session := h.sessions.Create(room.ID, owner.ID)

	wire.Encode(w, http.StatusOK, wire.CreateRoomResponse{
		SessionID: session.ID.String(),
		UserID:    owner.ID.String(),
		ID:        room.ID.String(),
		Name:      room.Name,
	})
}

// JoinRoom handles POST /v<N>/room/join.
func (h *Handlers) JoinRoom(w http.ResponseWriter, req *http.Request) {
	var body wire.JoinRoomRequest
	if err := wire.Decode(req, &body); err != nil {
		h.writeErr(w, req, apperr.BadRequest("malformed request body"))
		return
	}

	room, err := h.rooms.Get(body.Name)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}

	user, err := core.NewUser(body.User.Name)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}

	if err := room.Join(body.Version, user); err != nil {
		h.writeErr(w, req, err)
		return
	}

	session := h.sessions.Create(room.ID, user.ID)

	wire.Encode(w, http.StatusOK, wire.JoinRoomResponse{
		SessionID: session.ID.String(),
		ID:        room.ID.String(),
		UserID:    user.ID.String(),
		RoomInfo:  room.Info(),
	})
}

// StartGame handles POST /v<N>/room/start.
func (h *Handlers) StartGame(w http.ResponseWriter, req *http.Request) {
	var body wire.StartGameRequest
	if err := wire.Decode(req, &body); err != nil {
		h.writeErr(w, req, apperr.BadRequest("malformed request body"))
		return
	}

	room, sessionUserID, err := h.resolveSession(body.SessionID)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}

	owner, err := room.Owner()
	if err != nil {
		h.writeErr(w, req, err)
		return
	}
	if owner.ID != sessionUserID {
		h.writeErr(w, req, apperr.Forbidden("Only owner can start the game."))
		return
	}

	if err := room.StartGame(); err != nil {
		h.writeErr(w, req, err)
		return
	}

	wire.Encode(w, http.StatusOK, wire.StartGameResponse{})
}

// Sync handles POST /v<N>/room/sync.
func (h *Handlers) Sync(w http.ResponseWriter, req *http.Request) {
	var body wire.SyncRequest
	if err := wire.Decode(req, &body); err != nil {
		h.writeErr(w, req, apperr.BadRequest("malformed request body"))
		return
	}

	room, userID, err := h.resolveSession(body.SessionID)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}

	if !h.checkCooldown(userID) {
		h.writeErr(w, req, apperr.TooManyRequests("sync cooldown in effect"))
		return
	}

	if body.RoomInfo != nil {
		if owner, err := room.Owner(); err == nil && owner.ID == userID {
			room.UpdateInfo(body.RoomInfo)
		}
	}

	reports, err := eventsFromDTO(userID, body.Reports)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}
	actions, err := eventsFromDTO(userID, body.Actions)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}

	records, stats, err := room.Sync(userID, reports, actions, config.WaitTimeout, config.SyncTimeout)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}

	h.recorder.RecordWaitTimeout(req.Context(), float64(stats.WaitElapsed.Milliseconds()))
	h.recorder.RecordSyncTimeout(req.Context(), float64(stats.SyncElapsed.Milliseconds()))
	if stats.RolledOver {
		h.recorder.RecordRollover(req.Context())
	}

	resp := buildSyncResponse(userID, records, room)
	wire.Encode(w, http.StatusOK, resp)
}

// Status handles GET /v<N>/status.
func (h *Handlers) Status(w http.ResponseWriter, req *http.Request) {
	wire.Encode(w, http.StatusOK, wire.StatusResponse{
		RoomCount: h.rooms.Count(),
		RoomLimit: h.rooms.Limit(),
	})
}

// resolveSession maps a session id to its room and user id, failing
// unauthorized both on an unknown session and when the session's room has
// since vanished.
func (h *Handlers) resolveSession(sessionID string) (*core.Room, uuid.UUID, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, uuid.Nil, apperr.Unauthorized("unknown session")
	}
	session, err := h.sessions.Get(id)
	if err != nil {
		return nil, uuid.Nil, err
	}
	room, err := h.rooms.GetByID(session.RoomID)
	if err != nil {
		return nil, uuid.Nil, apperr.Unauthorized("unknown session")
	}
	return room, session.UserID, nil
}

// checkCooldown enforces the 100ms per-user sync cooldown.
func (h *Handlers) checkCooldown(userID uuid.UUID) bool {
	h.cooldownMu.Lock()
	defer h.cooldownMu.Unlock()

	now := time.Now()
	if last, ok := h.lastSyncAt[userID]; ok && now.Sub(last) < config.SyncCooldown {
		return false
	}
	h.lastSyncAt[userID] = now
	return true
}

func eventsFromDTO(from uuid.UUID, dtos []wire.EventDTO) ([]*core.Event, error) {
	out := make([]*core.Event, 0, len(dtos))
	for _, dto := range dtos {
		id, err := uuid.Parse(dto.ID)
		if err != nil {
			return nil, apperr.BadRequest("invalid event id")
		}
		out = append(out, core.NewEvent(id, from, dto.Type, dto.Event))
	}
	return out, nil
}

// buildSyncResponse shapes the catch-up slice per the wire contract: only
// the caller's own reports are echoed back (reports are private to the
// sender); actions from every participant are echoed; any event whose
// originating record is not the most recent in the slice carries an extra
// sync_id field naming its record.
func buildSyncResponse(userID uuid.UUID, records []*core.SyncRecord, room *core.Room) wire.SyncResponse {
	var reports, actions []wire.EventDTO
	var lastID string
	if len(records) > 0 {
		lastID = records[len(records)-1].ID.String()
	}

	for _, rec := range records {
		recID := rec.ID.String()
		tagSyncID := recID != lastID

		for _, ev := range rec.GetReports() {
			if ev.From != userID {
				continue
			}
			dto := wire.EventDTO{ID: ev.ID.String(), Type: ev.Type, Event: ev.Data}
			if tagSyncID {
				dto.SyncID = recID
			}
			reports = append(reports, dto)
		}
		for _, ev := range rec.GetActions() {
			dto := wire.EventDTO{ID: ev.ID.String(), Type: ev.Type, Event: ev.Data}
			if tagSyncID {
				dto.SyncID = recID
			}
			actions = append(actions, dto)
		}
	}

	userIDs := room.UserIDs()
	roomUsers := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		roomUsers = append(roomUsers, id.String())
	}

	return wire.SyncResponse{
		ID:        lastID,
		Reports:   reports,
		Actions:   actions,
		RoomUsers: roomUsers,
	}
}
