package janitor

import (
	"context"
	"time"

	"github.com/dukepan/roomsync-backend/internal/obslog"
	"github.com/dukepan/roomsync-backend/internal/registry"
	"github.com/dukepan/roomsync-backend/internal/telemetry"
)

// Janitor periodically sweeps the room and session registries: expired
// rooms, timed-out users, consumed sync records, and orphaned sessions.
type Janitor struct {
	rooms       *registry.RoomRegistry
	sessions    *registry.SessionRegistry
	interval    time.Duration
	userTimeout time.Duration
	logger      *obslog.Logger
	recorder    *telemetry.Recorder
	gauges      *telemetry.Gauges
}

// New constructs a Janitor wired to the given registries.
func New(rooms *registry.RoomRegistry, sessions *registry.SessionRegistry, interval, userTimeout time.Duration, logger *obslog.Logger, recorder *telemetry.Recorder, gauges *telemetry.Gauges) *Janitor {
	return &Janitor{
		rooms:       rooms,
		sessions:    sessions,
		interval:    interval,
		userTimeout: userTimeout,
		logger:      logger,
		recorder:    recorder,
		gauges:      gauges,
	}
}

// Run ticks at the configured interval until ctx is canceled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info(ctx, "janitor stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	start := time.Now()

	j.rooms.Clean(j.userTimeout)

	j.sessions.Clean(func(s *registry.Session) bool {
		room, err := j.rooms.GetByID(s.RoomID)
		if err != nil {
			return true
		}
		return !room.HasUser(s.UserID)
	})

	j.gauges.RoomRegistrySize.Set(float64(j.rooms.Count()))
	j.gauges.SessionRegistrySize.Set(float64(j.sessions.Count()))
	j.recorder.RecordJanitorSweep(ctx, float64(time.Since(start).Milliseconds()))

	j.logger.Debug(ctx, "janitor sweep complete: %d rooms, %d sessions",
		j.rooms.Count(), j.sessions.Count(),
	)
}
