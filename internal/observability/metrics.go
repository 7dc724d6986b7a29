package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cory-johannsen/rogue/internal/game/event"
)

// Metrics records engine and feed measurements on its own registry. Label
// values are drawn from closed sets only.
type Metrics struct {
	registry *prometheus.Registry

	tickDuration prometheus.Histogram
	enemies      prometheus.Gauge
	projectiles  prometheus.Gauge
	events       *prometheus.CounterVec

	feedClients prometheus.Gauge
	feedFrames  prometheus.Counter
	feedDropped *prometheus.CounterVec
	runsStored  *prometheus.CounterVec
}

// NewMetrics builds the collectors together with the Go runtime and process
// collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rogue_tick_duration_seconds",
			Help:    "Time spent in one simulation tick",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.016, 0.033},
		}),
		enemies: f.NewGauge(prometheus.GaugeOpts{
			Name: "rogue_enemies",
			Help: "Enemies on the current floor",
		}),
		projectiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "rogue_projectiles",
			Help: "Projectiles in flight",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rogue_events_total",
			Help: "Events published on the bus",
		}, []string{"kind"}),
		feedClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "rogue_feed_clients",
			Help: "Connected spectator websockets",
		}),
		feedFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "rogue_feed_frames_total",
			Help: "Frames written to spectators",
		}),
		feedDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rogue_feed_dropped_total",
			Help: "Frames or clients dropped by the feed",
		}, []string{"reason"}), // "throttled", "slow_client"
		runsStored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rogue_runs_recorded_total",
			Help: "Finished runs written to the results store",
		}, []string{"outcome"}),
	}
	// Pre-create every event series so dashboards see zeroes.
	for _, k := range event.Kinds() {
		m.events.WithLabelValues(string(k))
	}
	return m
}

// ObserveTick records one tick duration.
func (m *Metrics) ObserveTick(d time.Duration) { m.tickDuration.Observe(d.Seconds()) }

// SetEntities records the live entity counts.
func (m *Metrics) SetEntities(enemies, projectiles int) {
	m.enemies.Set(float64(enemies))
	m.projectiles.Set(float64(projectiles))
}

// CountEvent counts one published event.
func (m *Metrics) CountEvent(kind event.Kind) { m.events.WithLabelValues(string(kind)).Inc() }

// FeedConnected adjusts the spectator gauge by delta.
func (m *Metrics) FeedConnected(delta int) { m.feedClients.Add(float64(delta)) }

// FeedFrame counts one frame written.
func (m *Metrics) FeedFrame() { m.feedFrames.Inc() }

// FeedDropped counts a frame or client dropped for reason.
func (m *Metrics) FeedDropped(reason string) { m.feedDropped.WithLabelValues(reason).Inc() }

// RunRecorded counts a stored run by outcome.
func (m *Metrics) RunRecorded(outcome string) { m.runsStored.WithLabelValues(outcome).Inc() }

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
