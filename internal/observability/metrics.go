package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the omnisol ledger service and
// its workers.
type Metrics struct {
	// --- Engine processing ---
	InstructionsApplied  *prometheus.CounterVec
	InstructionsRejected *prometheus.CounterVec
	InstructionDuration  *prometheus.HistogramVec
	StateHashDur         prometheus.Histogram
	EngineSequence       prometheus.Gauge

	// --- Latency ---
	IngestToApply   *prometheus.HistogramVec
	NATSPullLatency *prometheus.HistogramVec
	PersistBatchDur prometheus.Histogram

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency & ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter
	DedupTier2Duration    prometheus.Histogram
	SequenceGap           *prometheus.CounterVec
	OutOfOrder            *prometheus.CounterVec

	// --- Protocol state ---
	Deposits             *prometheus.CounterVec
	Mints                *prometheus.CounterVec
	Withdrawals          *prometheus.CounterVec
	Liquidations         *prometheus.CounterVec
	CollateralsClosed    *prometheus.CounterVec
	PendingWithdrawals   prometheus.Gauge
	PoolDepositAmount    *prometheus.GaugeVec

	// --- Oracle ---
	OracleQueueSize       prometheus.Gauge
	OraclePublishes       prometheus.Counter
	OraclePublishSkipped  prometheus.Counter
	OracleCycleDuration   prometheus.Histogram

	// --- Liquidator ---
	LiquidatorAttempts  prometheus.Counter
	LiquidatorFailures  *prometheus.CounterVec
	LiquidatorSatisfied prometheus.Counter
	LiquidatorCycleDur  prometheus.Histogram

	// --- Persistence ---
	PersistInstructionsWritten prometheus.Counter
	PersistEventsWritten       prometheus.Counter
	PersistBatchSize           prometheus.Histogram
	PersistErrors              *prometheus.CounterVec
	PersistRetry               prometheus.Counter
	PersistLastSequence        prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayTotal       prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	ingestBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	cycleBuckets := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0}

	return &Metrics{
		// Engine processing
		InstructionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_instructions_applied_total",
			Help: "Instructions successfully applied by the engine",
		}, []string{"kind"}),

		InstructionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_instructions_rejected_total",
			Help: "Instructions rejected (dedup, gap, validation)",
		}, []string{"kind", "reason"}),

		InstructionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omnisol_instruction_apply_duration_seconds",
			Help:    "Time to apply a single instruction",
			Buckets: latencyBuckets,
		}, []string{"kind"}),

		StateHashDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnisol_state_hash_duration_seconds",
			Help:    "Time to compute state hash",
			Buckets: latencyBuckets,
		}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "omnisol_engine_sequence",
			Help: "Current global sequence number",
		}),

		// Latency
		IngestToApply: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omnisol_ingest_to_apply_seconds",
			Help:    "NATS receive to engine apply complete",
			Buckets: ingestBuckets,
		}, []string{"kind"}),

		NATSPullLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omnisol_nats_pull_latency_seconds",
			Help:    "NATS pull request latency",
			Buckets: ingestBuckets,
		}, []string{"subject"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnisol_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		// Channel & backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omnisol_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omnisol_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omnisol_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_persist_backpressure_total",
			Help: "Times engine blocked on persist channel",
		}),

		// Idempotency & ordering
		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"kind", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "omnisol_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		DedupTier2Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnisol_dedup_tier2_duration_seconds",
			Help:    "Postgres dedup lookup latency",
			Buckets: latencyBuckets,
		}),

		SequenceGap: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_sequence_gap_total",
			Help: "Source sequence gaps",
		}, []string{"partition"}),

		OutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_out_of_order_total",
			Help: "Out-of-order rejections",
		}, []string{"partition"}),

		// Protocol state
		Deposits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_deposits_total",
			Help: "Deposits applied per pool",
		}, []string{"pool"}),

		Mints: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_mints_total",
			Help: "Derivative mints per pool",
		}, []string{"pool"}),

		Withdrawals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_withdrawals_total",
			Help: "Withdrawals applied per pool",
		}, []string{"pool"}),

		Liquidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_liquidations_total",
			Help: "Liquidations executed per pool",
		}, []string{"pool"}),

		CollateralsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_collaterals_closed_total",
			Help: "Collateral records fully retired",
		}, []string{"pool"}),

		PendingWithdrawals: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "omnisol_pending_withdrawals",
			Help: "Outstanding withdrawal requests",
		}),

		PoolDepositAmount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omnisol_pool_deposit_amount",
			Help: "Total deposited value per pool",
		}, []string{"pool"}),

		// Oracle
		OracleQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "omnisol_oracle_queue_size",
			Help: "Entries in the last published priority queue",
		}),

		OraclePublishes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_oracle_publishes_total",
			Help: "Priority queue publish cycles that sent updates",
		}),

		OraclePublishSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_oracle_publish_skipped_total",
			Help: "Publish cycles skipped (queue unchanged)",
		}),

		OracleCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnisol_oracle_cycle_duration_seconds",
			Help:    "Full fetch-compute-publish cycle duration",
			Buckets: cycleBuckets,
		}),

		// Liquidator
		LiquidatorAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_liquidator_attempts_total",
			Help: "Liquidation transactions submitted",
		}),

		LiquidatorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_liquidator_failures_total",
			Help: "Failed liquidation attempts",
		}, []string{"reason"}),

		LiquidatorSatisfied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_liquidator_satisfied_total",
			Help: "Withdrawal requests fully satisfied",
		}),

		LiquidatorCycleDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnisol_liquidator_cycle_duration_seconds",
			Help:    "Full liquidator cycle duration",
			Buckets: cycleBuckets,
		}),

		// Persistence
		PersistInstructionsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_persist_instructions_written_total",
			Help: "Instructions written to Postgres",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnisol_persist_batch_size",
			Help:    "Envelopes per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "omnisol_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// Snapshot
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnisol_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "omnisol_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "omnisol_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnisol_replay_instructions_total",
			Help: "Instructions replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "omnisol_replay_duration_seconds",
			Help: "Total replay time",
		}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omnisol_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisol_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
