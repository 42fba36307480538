package cleaner

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus collectors of one Cleaner. The collectors
// always exist; they are exported only when a Registerer is supplied.
type metrics struct {
	passes        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	tablesDeleted *prometheus.CounterVec
	tablesSkipped *prometheus.CounterVec
	rowsDeleted   *prometheus.CounterVec
	cacheRetries  prometheus.Counter
	passDuration  *prometheus.HistogramVec
}

func newMetrics(namespace string, reg prometheus.Registerer) (*metrics, error) {
	if namespace == "" {
		namespace = "goclean"
	}
	labels := []string{"strategy"}

	m := &metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "passes_total", Help: "Cleaning passes started.",
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pass_failures_total", Help: "Cleaning passes that returned an error.",
		}, labels),
		tablesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tables_deleted_total", Help: "Tables emptied by cleaning passes.",
		}, labels),
		tablesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tables_skipped_total", Help: "Tables left alone because they held no rows.",
		}, labels),
		rowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_deleted_total", Help: "Rows removed by cleaning passes.",
		}, labels),
		cacheRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_cache_retries_total", Help: "Passes retried after a cached row-count statement failed.",
		}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "pass_duration_seconds", Help: "Duration of cleaning passes.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, labels),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	if m.passes, err = register(reg, m.passes); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.tablesDeleted, err = register(reg, m.tablesDeleted); err != nil {
		return nil, err
	}
	if m.tablesSkipped, err = register(reg, m.tablesSkipped); err != nil {
		return nil, err
	}
	if m.rowsDeleted, err = register(reg, m.rowsDeleted); err != nil {
		return nil, err
	}
	if m.cacheRetries, err = register(reg, m.cacheRetries); err != nil {
		return nil, err
	}
	if m.passDuration, err = register(reg, m.passDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when two cleaners share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) observe(stats *Stats, err error) {
	label := stats.Strategy.String()
	m.passes.WithLabelValues(label).Inc()
	if err != nil {
		m.failures.WithLabelValues(label).Inc()
	}
	m.tablesDeleted.WithLabelValues(label).Add(float64(stats.TablesDeleted))
	m.tablesSkipped.WithLabelValues(label).Add(float64(stats.TablesSkipped))
	m.rowsDeleted.WithLabelValues(label).Add(float64(stats.RowsDeleted))
	m.passDuration.WithLabelValues(label).Observe(stats.Duration.Seconds())
}

func (m *metrics) staleCacheRetry() {
	m.cacheRetries.Inc()
}
