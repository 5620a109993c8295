package metrics

import (
	"net/http"
	"time"

	familydomain "family-circle-go/internal/domain/family"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records family workflow outcomes. It implements family.Recorder.
type Metrics struct {
	registry           *prometheus.Registry
	familiesCreated    prometheus.Counter
	requestsCreated    *prometheus.CounterVec
	requestsResolved   *prometheus.CounterVec
	transactionsFailed *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		familiesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "family_circle_families_created_total",
			Help: "Total number of families created",
		}),
		requestsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "family_circle_requests_created_total",
			Help: "Pending requests created, by request type",
		}, []string{"type"}),
		requestsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "family_circle_requests_resolved_total",
			Help: "Requests resolved, by request type and final status",
		}, []string{"type", "status"}),
		transactionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "family_circle_transactions_failed_total",
			Help: "Workflow transactions rolled back on an internal error",
		}, []string{"operation"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "family_circle_operation_duration_seconds",
			Help:    "Duration of family workflow operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) FamilyCreated() {
	m.familiesCreated.Inc()
}

func (m *Metrics) RequestCreated(requestType familydomain.RequestType) {
	m.requestsCreated.WithLabelValues(string(requestType)).Inc()
}

func (m *Metrics) RequestResolved(requestType familydomain.RequestType, status familydomain.RequestStatus) {
	m.requestsResolved.WithLabelValues(string(requestType), string(status)).Inc()
}

func (m *Metrics) TransactionFailed(op string) {
	m.transactionsFailed.WithLabelValues(op).Inc()
}

// ObserveOperation records the duration since start. Any error counts as
// outcome "error".
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operationDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
