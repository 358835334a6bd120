package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jo-hoe/imagebot/internal/transform"
)

const (
	outcomeOK = "ok"
)

// Metrics counts dispatcher outcomes and times transformations.
type Metrics struct {
	imagesReceived    *prometheus.CounterVec
	commands          *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
}

// NewMetrics creates the dispatcher collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		imagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagebot",
			Name:      "images_received_total",
			Help:      "Images delivered to the dispatcher by outcome.",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagebot",
			Name:      "commands_total",
			Help:      "Commands handled by the dispatcher by command and outcome.",
		}, []string{"command", "outcome"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imagebot",
			Name:      "transform_duration_seconds",
			Help:      "Time spent inside a transformation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"command"}),
	}

	for _, c := range []prometheus.Collector{m.imagesReceived, m.commands, m.transformDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeImage(err error) {
	if m == nil {
		return
	}
	m.imagesReceived.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeCommand(cmd transform.Command, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(cmd.String(), outcome(err)).Inc()
}

func (m *Metrics) observeDuration(cmd transform.Command, d time.Duration) {
	if m == nil {
		return
	}
	m.transformDuration.WithLabelValues(cmd.String()).Observe(d.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
