package observability

import (
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Failure reasons used as the "reason" label on bank_operation_failures_total.
const (
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonInvalidInput      = "invalid_input"
	ReasonNotFound          = "not_found"
	ReasonConflict          = "conflict"
	ReasonBlocked           = "blocked"
	ReasonStorage           = "storage"
	ReasonInternal          = "internal"
)

var failureReasons = []string{
	ReasonInsufficientFunds, ReasonInvalidInput, ReasonNotFound,
	ReasonConflict, ReasonBlocked, ReasonStorage, ReasonInternal,
}

// Metrics holds all Prometheus metrics for the bank.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	ledgerEntries     *prometheus.CounterVec
	failures          *prometheus.CounterVec
	storeErrors       *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	usersRepaired     prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bank_operation_duration_seconds",
				Help:    "Duration of ledger operations, load to save.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ledgerEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_ledger_entries_total",
				Help: "Ledger entries persisted, by kind.",
			},
			[]string{"kind"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_operation_failures_total",
				Help: "Rejected or failed operations.",
			},
			[]string{"operation", "reason"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_store_errors_total",
				Help: "Transient errors returned by the document store.",
			},
			[]string{"store"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		usersRepaired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bank_users_repaired_total",
				Help: "Users whose document was healed and saved by batch repair.",
			},
		),
	}
}

// RecordOperationDuration records the duration of an operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrLedgerEntry counts one persisted record of the given kind.
func (m *Metrics) IncrLedgerEntry(kind domain.Kind) {
	m.ledgerEntries.WithLabelValues(string(kind)).Inc()
}

// IncrFailure counts a rejected operation.
func (m *Metrics) IncrFailure(operation, reason string) {
	m.failures.WithLabelValues(operation, reason).Inc()
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(store string) {
	m.storeErrors.WithLabelValues(store).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// AddRepaired counts users saved by a repair run.
func (m *Metrics) AddRepaired(n int) {
	m.usersRepaired.Add(float64(n))
}

// GetLedgerSnapshot returns a snapshot suitable for GET /v1/metrics/ledger.
// Prometheus counters are cumulative, so the period is always all_time.
func (m *Metrics) GetLedgerSnapshot() *domain.LedgerMetrics {
	entries := make(map[string]float64)
	for _, mf := range m.gather("bank_ledger_entries_total") {
		entries[labelValue(mf, "kind")] += mf.GetCounter().GetValue()
	}

	failures := make(map[string]float64, len(failureReasons))
	for _, r := range failureReasons {
		failures[r] = 0
	}
	for _, mf := range m.gather("bank_operation_failures_total") {
		failures[labelValue(mf, "reason")] += mf.GetCounter().GetValue()
	}

	storeErrors := float64(0)
	for _, mf := range m.gather("bank_store_errors_total") {
		storeErrors += mf.GetCounter().GetValue()
	}

	hits := getCounterValue(m.cacheHits, "feed")
	misses := getCounterValue(m.cacheMisses, "feed")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.LedgerMetrics{
		EntriesByKind:    entries,
		FailuresByReason: failures,
		FeedCacheHitRate: hitRate,
		StoreErrors:      storeErrors,
		Period:           "all_time",
	}
}

// gather returns the series of one metric family from the private registry.
func (m *Metrics) gather(name string) []*dto.Metric {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
