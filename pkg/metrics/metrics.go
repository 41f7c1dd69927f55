package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP
// =============================================================================

// HttpRequestsTotal - счётчик HTTP запросов
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - время ответа, от 1ms до 10s
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Document store
// =============================================================================

// StoreOperationDuration - время операций с документным хранилищем
// Labels: service, operation (find, get, insert, update, tx), collection
var StoreOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "store_operation_duration_seconds",
		Help:    "Duration of document store operations in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"service", "operation", "collection"},
)

var StoreErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "store_errors_total",
		Help: "Total number of document store errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis
// =============================================================================

var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka
// =============================================================================

var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"},
)

// =============================================================================
// Отзывы и агрегаты рейтинга
// =============================================================================

// ReviewsCreated - отзывы, успешно записанные транзакцией агрегатора
var ReviewsCreated = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "reviews_created_total",
		Help: "Total number of reviews created",
	},
)

// ReviewsRating - распределение оценок
var ReviewsRating = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "reviews_rating",
		Help:    "Distribution of review ratings",
		Buckets: []float64{1, 2, 3, 4, 5},
	},
)

// RatingTxAttempts - попытки транзакции агрегатора, включая повторы после конфликта
var RatingTxAttempts = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "rating_tx_attempts_total",
		Help: "Total number of rating transaction attempts",
	},
)

// RatingTxConflicts - транзакции, исчерпавшие лимит повторов
var RatingTxConflicts = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "rating_tx_conflicts_total",
		Help: "Total number of rating transactions failed with exhausted retry budget",
	},
)

// ListingSubscriptionsActive - активные live-подписки по типу (listings, reviews)
var ListingSubscriptionsActive = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "listing_subscriptions_active",
		Help: "Number of active live subscriptions",
	},
	[]string{"kind"},
)

// AggregateAuditDriftListings - заведения с расхождением агрегатов по итогам последнего аудита
var AggregateAuditDriftListings = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "aggregate_audit_drifted_listings",
		Help: "Number of listings whose aggregate fields disagreed with their reviews in the last audit run",
	},
	[]string{"kind"}, // count, sum, avg
)
