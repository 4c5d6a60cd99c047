package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters for one migration run. Each instance owns its registry so
// tests and repeated runs never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	records  *prometheus.CounterVec
	bytes    prometheus.Counter
	requests *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfmigrate_records_total",
				Help: "Records processed by phase and outcome.",
			},
			[]string{"phase", "status"},
		),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sfmigrate_attachment_bytes_total",
			Help: "Attachment body bytes fetched from the source org.",
		}),
		requests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sfmigrate_request_duration_seconds",
				Help:    "Salesforce REST request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "status"},
		),
	}
	m.Registry.MustRegister(m.records, m.bytes, m.requests)
	return m
}

func (m *Metrics) Record(phase, status string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(phase, status).Inc()
}

func (m *Metrics) AddBytes(n int) {
	if m == nil {
		return
	}
	m.bytes.Add(float64(n))
}

// ObserveRequest has the signature of salesforce.Observer.
func (m *Metrics) ObserveRequest(op string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
