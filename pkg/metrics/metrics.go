package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Kernel metrics
	KernelTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcore_kernel_ticks_total",
			Help: "Total number of kernel ticks processed, by actor role",
		},
		[]string{"actor", "role"},
	)

	KernelEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcore_kernel_events_total",
			Help: "Total number of kernel events drained from the queue, by actor role",
		},
		[]string{"actor", "role"},
	)

	KernelQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actorcore_kernel_queue_depth",
			Help: "Current depth of the kernel's local event queue",
		},
		[]string{"actor", "role"},
	)

	KernelTickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "actorcore_kernel_tick_duration_seconds",
			Help:    "Wall time spent processing one kernel tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"actor", "role"},
	)

	// Reservation metrics
	ReservationsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actorcore_reservations_total",
			Help: "Current number of reservations by state and pending sub-state",
		},
		[]string{"actor", "state", "pending"},
	)

	ReservationTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcore_reservation_transitions_total",
			Help: "Total number of reservation state transitions, by from/to state",
		},
		[]string{"actor", "from", "to"},
	)

	ReservationsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcore_reservations_failed_total",
			Help: "Total number of reservations that reached Failed, by error kind",
		},
		[]string{"actor", "kind"},
	)

	// Slice metrics
	SlicesByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actorcore_slices_total",
			Help: "Current number of slices by lifecycle state",
		},
		[]string{"state"},
	)

	// Calendar metrics
	CalendarHoldings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actorcore_calendar_holdings",
			Help: "Current committed capacity held on a graph node, by capacity dimension",
		},
		[]string{"actor", "node", "dimension"},
	)

	CalendarPendingDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actorcore_calendar_pending_depth",
			Help: "Current size of a calendar bucket (pending, redeeming, renewing, closing)",
		},
		[]string{"actor", "bucket"},
	)

	// Policy metrics
	AllocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "actorcore_allocation_duration_seconds",
			Help:    "Time taken by the broker first-fit policy to decide on a reservation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource_type"},
	)

	AllocationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcore_allocation_failures_total",
			Help: "Total number of InsufficientResources allocation failures, by resource type",
		},
		[]string{"resource_type"},
	)

	// Handler / provisioning metrics
	ProvisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "actorcore_provision_duration_seconds",
			Help:    "Time taken by a handler's Provision call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource_type", "outcome"},
	)

	ProvisionPoolInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "actorcore_provision_pool_in_flight",
			Help: "Current number of in-flight handler invocations in the provisioning pool",
		},
	)

	// Message protocol / transport metrics
	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcore_messages_sent_total",
			Help: "Total number of outbound protocol messages sent, by kind",
		},
		[]string{"kind"},
	)

	MessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcore_messages_received_total",
			Help: "Total number of inbound protocol messages received, by kind",
		},
		[]string{"kind"},
	)

	MessageRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcore_message_retries_total",
			Help: "Total number of outbound message retries before a Timeout",
		},
		[]string{"kind"},
	)

	// Persistence metrics
	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "actorcore_commit_duration_seconds",
			Help:    "Time taken to persist one dirty-reservation batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "actorcore_commit_batch_size",
			Help:    "Number of reservations persisted in one commit batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)

func init() {
	prometheus.MustRegister(KernelTicksTotal)
	prometheus.MustRegister(KernelEventsTotal)
	prometheus.MustRegister(KernelQueueDepth)
	prometheus.MustRegister(KernelTickDuration)

	prometheus.MustRegister(ReservationsByState)
	prometheus.MustRegister(ReservationTransitionsTotal)
	prometheus.MustRegister(ReservationsFailedTotal)

	prometheus.MustRegister(SlicesByState)

	prometheus.MustRegister(CalendarHoldings)
	prometheus.MustRegister(CalendarPendingDepth)

	prometheus.MustRegister(AllocationDuration)
	prometheus.MustRegister(AllocationFailuresTotal)

	prometheus.MustRegister(ProvisionDuration)
	prometheus.MustRegister(ProvisionPoolInFlight)

	prometheus.MustRegister(MessagesSentTotal)
	prometheus.MustRegister(MessagesReceivedTotal)
	prometheus.MustRegister(MessageRetriesTotal)

	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(CommitBatchSize)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing an in-flight operation and later recording
// its duration to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
