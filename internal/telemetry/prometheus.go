package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges holds the Prometheus gauges the janitor updates on every sweep,
// giving an ops dashboard the same numbers spec's /status endpoint exposes.
type Gauges struct {
	RoomRegistrySize    prometheus.Gauge
	SessionRegistrySize prometheus.Gauge
}

// NewGauges registers the room/session registry size gauges against the
// default Prometheus registry.
func NewGauges() *Gauges {
	return &Gauges{
		RoomRegistrySize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "room_registry_size",
			Help: "Current number of rooms held by the room registry.",
		}),
		SessionRegistrySize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "session_registry_size",
			Help: "Current number of sessions held by the session registry.",
		}),
	}
}
