package internal

import (
	"context"
	"time"

	"github.com/lychee-technology/dataeditor"
	"github.com/prometheus/client_golang/prometheus"
)

// AdapterMetrics holds the collectors shared by every instrumented adapter.
type AdapterMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewAdapterMetrics creates the adapter collectors and registers them with registry.
func NewAdapterMetrics(registry prometheus.Registerer, namespace string) *AdapterMetrics {
	if namespace == "" {
		namespace = "dataeditor"
	}
	m := &AdapterMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "operations_total",
			Help:      "Total number of storage adapter operations.",
		}, []string{"model", "operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "operation_duration_seconds",
			Help:      "How long in seconds a storage adapter operation takes.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"model", "operation"}),
	}
	if registry != nil {
		registry.MustRegister(m.operations, m.duration)
	}
	return m
}

func (m *AdapterMetrics) observe(model, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(dataeditor.ErrorTypeOf(err))
	}
	m.operations.WithLabelValues(model, operation, result).Inc()
	m.duration.WithLabelValues(model, operation).Observe(time.Since(start).Seconds())
}

type instrumentedAdapter struct {
	next    dataeditor.Adapter
	model   string
	metrics *AdapterMetrics
}

// NewInstrumentedAdapter counts and times every call made to next.
func NewInstrumentedAdapter(next dataeditor.Adapter, model string, metrics *AdapterMetrics) dataeditor.Adapter {
	if metrics == nil {
		return next
	}
	return &instrumentedAdapter{next: next, model: model, metrics: metrics}
}

func (a *instrumentedAdapter) List(ctx context.Context) ([]dataeditor.Record, error) {
	start := time.Now()
	records, err := a.next.List(ctx)
	a.metrics.observe(a.model, "list", start, err)
	return records, err
}

func (a *instrumentedAdapter) Read(ctx context.Context, id string) (dataeditor.Record, error) {
	start := time.Now()
	record, err := a.next.Read(ctx, id)
	a.metrics.observe(a.model, "read", start, err)
	return record, err
}

func (a *instrumentedAdapter) Create(ctx context.Context, data dataeditor.Record) (dataeditor.Record, error) {
	start := time.Now()
	record, err := a.next.Create(ctx, data)
	a.metrics.observe(a.model, "create", start, err)
	return record, err
}

func (a *instrumentedAdapter) Update(ctx context.Context, id string, data dataeditor.Record) (dataeditor.Record, error) {
	start := time.Now()
	record, err := a.next.Update(ctx, id, data)
	a.metrics.observe(a.model, "update", start, err)
	return record, err
}

func (a *instrumentedAdapter) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := a.next.Delete(ctx, id)
	a.metrics.observe(a.model, "delete", start, err)
	return err
}
