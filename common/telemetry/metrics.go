package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "odp_registry"

// Metrics holds the registry's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	TagCommands        *prometheus.CounterVec
	AuditEntries       *prometheus.CounterVec
	KeywordMutations   *prometheus.CounterVec
	PackageTransitions *prometheus.CounterVec
	CatalogRecords     *prometheus.CounterVec
	SyncFailures       *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
}

// NewMetrics registers the registry collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		TagCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_commands_total",
			Help:      "Tag instance mutations by entity kind and command",
		}, []string{"kind", "command"}),

		AuditEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Audit records written by stream and command",
		}, []string{"stream", "command"}),

		KeywordMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_mutations_total",
			Help:      "Keyword mutations by command",
		}, []string{"command"}),

		PackageTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_transitions_total",
			Help:      "Package lifecycle transitions",
		}, []string{"transition", "valid"}),

		CatalogRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_records_total",
			Help:      "Catalog records evaluated during publication",
		}, []string{"catalog", "published"}),

		SyncFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_sync_failures_total",
			Help:      "Failed synchronisations with external catalogs",
		}, []string{"catalog"}),

		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of service operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) TagCommand(kind, command string) {
	if m == nil {
		return
	}
	m.TagCommands.WithLabelValues(kind, command).Inc()
}

func (m *Metrics) AuditEntry(stream, command string) {
	if m == nil {
		return
	}
	m.AuditEntries.WithLabelValues(stream, command).Inc()
}

func (m *Metrics) KeywordMutation(command string) {
	if m == nil {
		return
	}
	m.KeywordMutations.WithLabelValues(command).Inc()
}

func (m *Metrics) PackageTransition(transition string, valid bool) {
	if m == nil {
		return
	}
	m.PackageTransitions.WithLabelValues(transition, strconv.FormatBool(valid)).Inc()
}

func (m *Metrics) CatalogRecord(catalog string, published bool) {
	if m == nil {
		return
	}
	m.CatalogRecords.WithLabelValues(catalog, strconv.FormatBool(published)).Inc()
}

func (m *Metrics) SyncFailure(catalog string) {
	if m == nil {
		return
	}
	m.SyncFailures.WithLabelValues(catalog).Inc()
}

func (m *Metrics) ObserveDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}
