// Package metrics counts playback milestones for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cyoa/internal/game"
)

// Recorder satisfies engine.Observer. Each Recorder owns its registry so
// tests and multiple hosts do not collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	scenes      *prometheus.CounterVec
	choices     prometheus.Counter
	endings     *prometheus.CounterVec
	saveErrors  prometheus.Counter
	activeGames prometheus.Gauge
}

// New registers the playback metrics under the given game label.
func New(gameID string) *Recorder {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"game": gameID}
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		scenes: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "cyoa_scene_entries_total",
			Help:        "Scenes entered, by scene id.",
			ConstLabels: labels,
		}, []string{"scene"}),
		choices: f.NewCounter(prometheus.CounterOpts{
			Name:        "cyoa_choices_total",
			Help:        "Choices taken.",
			ConstLabels: labels,
		}),
		endings: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "cyoa_endings_total",
			Help:        "Ending screens shown, by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		saveErrors: f.NewCounter(prometheus.CounterOpts{
			Name:        "cyoa_save_failures_total",
			Help:        "Session saves that failed.",
			ConstLabels: labels,
		}),
		activeGames: f.NewGauge(prometheus.GaugeOpts{
			Name:        "cyoa_active_players",
			Help:        "Players with a live engine on this host.",
			ConstLabels: labels,
		}),
	}
}

func (r *Recorder) SceneEntered(sceneID string) { r.scenes.WithLabelValues(sceneID).Inc() }

func (r *Recorder) ChoiceTaken(_, _ string) { r.choices.Inc() }

func (r *Recorder) EndingShown(kind game.EndingKind) { r.endings.WithLabelValues(string(kind)).Inc() }

func (r *Recorder) SaveFailed(error) { r.saveErrors.Inc() }

// PlayerJoined and PlayerLeft track live engines.
func (r *Recorder) PlayerJoined() { r.activeGames.Inc() }
func (r *Recorder) PlayerLeft()   { r.activeGames.Dec() }

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
