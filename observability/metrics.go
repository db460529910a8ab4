package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics

	stakingMetricsOnce sync.Once
	stakingRegistry    *StakingMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftstake",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LedgerMetrics tracks transaction execution inside the host ledger.
type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	instructions *prometheus.CounterVec
	latency      prometheus.Histogram
	lockWait     prometheus.Histogram
	inflight     prometheus.Gauge
}

// Ledger returns the lazily registered ledger metrics.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Transactions processed by the ledger segmented by outcome.",
			}, []string{"outcome"}),
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "ledger",
				Name:      "instructions_total",
				Help:      "Top-level and nested instructions segmented by program and outcome.",
			}, []string{"program", "outcome"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "nftstake",
				Subsystem: "ledger",
				Name:      "transaction_duration_seconds",
				Help:      "Wall time spent executing and committing a transaction.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			}),
			lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "nftstake",
				Subsystem: "ledger",
				Name:      "lock_wait_seconds",
				Help:      "Time transactions spent waiting for account locks.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
			}),
			inflight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nftstake",
				Subsystem: "ledger",
				Name:      "inflight_transactions",
				Help:      "Transactions currently holding account locks.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.instructions,
			ledgerRegistry.latency,
			ledgerRegistry.lockWait,
			ledgerRegistry.inflight,
		)
	})
	return ledgerRegistry
}

// ObserveTransaction records a transaction outcome such as "committed",
// "failed", "duplicate" or "not_admitted".
func (m *LedgerMetrics) ObserveTransaction(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.latency.Observe(duration.Seconds())
}

// RecordInstruction counts one instruction processed by the named program.
func (m *LedgerMetrics) RecordInstruction(program string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.instructions.WithLabelValues(normalizeLabel(program), outcome).Inc()
}

// ObserveLockWait records how long a transaction waited for its locks.
func (m *LedgerMetrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// TrackInflight adjusts the in-flight gauge by delta.
func (m *LedgerMetrics) TrackInflight(delta int) {
	if m == nil {
		return
	}
	m.inflight.Add(float64(delta))
}

// StakingMetrics follows the staking program's custody and reward flows.
type StakingMetrics struct {
	operations  *prometheus.CounterVec
	totalStaked prometheus.Gauge
	rewardsPaid prometheus.Counter
}

// Staking returns the lazily registered staking metrics.
func Staking() *StakingMetrics {
	stakingMetricsOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "staking",
				Name:      "operations_total",
				Help:      "Committed staking operations segmented by kind.",
			}, []string{"operation"}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nftstake",
				Subsystem: "staking",
				Name:      "total_staked",
				Help:      "NFT units currently held in escrow.",
			}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "staking",
				Name:      "rewards_paid_total",
				Help:      "Reward token base units transferred to stakers.",
			}),
		}
		prometheus.MustRegister(
			stakingRegistry.operations,
			stakingRegistry.totalStaked,
			stakingRegistry.rewardsPaid,
		)
	})
	return stakingRegistry
}

// RecordOperation counts a committed staking operation.
func (m *StakingMetrics) RecordOperation(op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(op)).Inc()
}

// SetTotalStaked publishes the global staked counter.
func (m *StakingMetrics) SetTotalStaked(total uint64) {
	if m == nil {
		return
	}
	m.totalStaked.Set(float64(total))
}

// AddRewardsPaid accumulates paid reward units.
func (m *StakingMetrics) AddRewardsPaid(amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.rewardsPaid.Add(float64(amount))
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
