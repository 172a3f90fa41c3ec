package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database connection metrics
	// ============================================
	DBConnectionPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_db_connection_pool_size",
		Help: "Database connection pool size",
	})

	DBConnectionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_db_connection_active",
		Help: "Number of active database connections",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// Mint orchestration metrics
	// ============================================
	MintAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_mint_attempts_total",
			Help: "Total number of mint attempts by final outcome",
		},
		[]string{"outcome"},
	)

	MintStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_mint_state_transitions_total",
			Help: "Total number of mint state machine transitions",
		},
		[]string{"state"},
	)

	MintDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_mint_duration_seconds",
			Help:    "End-to-end mint attempt duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"payment_path"},
	)

	// ============================================
	// Payment verification metrics
	// ============================================
	PaymentVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_payment_verifications_total",
			Help: "Total number of facilitator verification calls",
		},
		[]string{"result"},
	)

	PaymentRequirementFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_payment_requirement_fetches_total",
			Help: "Total number of payment requirement discovery calls",
		},
		[]string{"source"},
	)

	// ============================================
	// Chain RPC metrics
	// ============================================
	ChainBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_chain_broadcasts_total",
			Help: "Total number of transactions broadcast",
		},
		[]string{"kind", "result"},
	)

	ChainConfirmationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backend_chain_confirmation_duration_seconds",
		Help:    "Time from broadcast to confirmation in seconds",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 60},
	})

	// ============================================
	// NATS connection and message metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"event_type"},
	)

	NATSMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_nats_messages_failed_total",
			Help: "Total number of NATS messages failed to publish",
		},
		[]string{"event_type"},
	)

	// ============================================
	// WebSocket push metrics
	// ============================================
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	WebSocketMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages pushed",
		},
		[]string{"message_type"},
	)

	// ============================================
	// Requirement cache metrics
	// ============================================
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)
)
