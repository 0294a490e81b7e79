package aggregate

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts aggregation work. Each Metrics owns its registry.
type Metrics struct {
	Registry *prometheus.Registry

	Records *prometheus.CounterVec
	Chunks  prometheus.Counter
	Sources prometheus.Counter
	Jobs    *prometheus.CounterVec
}

// NewMetrics builds and registers the aggregation collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enrolstat",
			Name:      "records_total",
			Help:      "Records seen by the aggregator, by outcome.",
		}, []string{"outcome"}),
		Chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enrolstat",
			Name:      "chunks_total",
			Help:      "Chunks consumed by the aggregator.",
		}),
		Sources: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enrolstat",
			Name:      "sources_total",
			Help:      "Sources read to completion.",
		}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enrolstat",
			Name:      "jobs_total",
			Help:      "Aggregation jobs, by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.Records, m.Chunks, m.Sources, m.Jobs} {
		if err := m.Registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) chunk(processed, skipped int) {
	if m == nil {
		return
	}
	m.Chunks.Inc()
	m.Records.WithLabelValues("processed").Add(float64(processed))
	m.Records.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *Metrics) source() {
	if m == nil {
		return
	}
	m.Sources.Inc()
}

func (m *Metrics) job(outcome string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(outcome).Inc()
}
