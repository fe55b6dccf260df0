package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type engineMetrics struct {
	messages *prometheus.CounterVec
	ledger   *prometheus.CounterVec
	payouts  prometheus.Counter
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *engineMetrics
)

// EngineMetrics returns the lazily-initialised metrics registry used to
// record message parsing and ledger activity.
func EngineMetrics() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &engineMetrics{
			messages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "aspchain",
				Subsystem: "engine",
				Name:      "messages_parsed_total",
				Help:      "Total messages parsed segmented by kind and validity outcome.",
			}, []string{"kind", "outcome"}),
			ledger: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "aspchain",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Total ledger events segmented by direction.",
			}, []string{"direction"}),
			payouts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "aspchain",
				Subsystem: "engine",
				Name:      "payouts_confirmed_total",
				Help:      "Count of proof-of-work payouts confirmed and credited.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.messages,
			engineRegistry.ledger,
			engineRegistry.payouts,
		)
	})
	return engineRegistry
}

// MessageParsed records one parsed message. The status string is collapsed
// to valid/invalid to keep label cardinality bounded.
func (m *engineMetrics) MessageParsed(kind, status string) {
	if m == nil {
		return
	}
	outcome := "valid"
	if strings.HasPrefix(status, "invalid") {
		outcome = "invalid"
	}
	m.messages.WithLabelValues(kind, outcome).Inc()
}

// LedgerEvent records one credit or debit.
func (m *engineMetrics) LedgerEvent(direction string) {
	if m == nil {
		return
	}
	m.ledger.WithLabelValues(direction).Inc()
}

// PayoutConfirmed records one confirmed proof-of-work payout.
func (m *engineMetrics) PayoutConfirmed() {
	if m == nil {
		return
	}
	m.payouts.Inc()
}
