package metrics

import (
	"time"
)

type StoreOperation string

const (
	StoreOpFind   StoreOperation = "find"
	StoreOpGet    StoreOperation = "get"
	StoreOpInsert StoreOperation = "insert"
	StoreOpUpdate StoreOperation = "update"
	StoreOpTx     StoreOperation = "tx"
)

// StoreTimer замеряет длительность одной операции хранилища
type StoreTimer struct {
	service    string
	operation  StoreOperation
	collection string
	start      time.Time
}

func NewStoreTimer(service string, op StoreOperation, collection string) *StoreTimer {
	return &StoreTimer{
		service:    service,
		operation:  op,
		collection: collection,
		start:      time.Now(),
	}
}

// Observe фиксирует длительность и, если err != nil, счётчик ошибок
func (st *StoreTimer) Observe(err error) {
	StoreOperationDuration.WithLabelValues(st.service, string(st.operation), st.collection).
		Observe(time.Since(st.start).Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(st.service, string(st.operation)).Inc()
	}
}

func RecordCacheHit(service, keyPrefix string) {
	RedisCacheHits.WithLabelValues(service, keyPrefix).Inc()
}

func RecordCacheMiss(service, keyPrefix string) {
	RedisCacheMisses.WithLabelValues(service, keyPrefix).Inc()
}

func RecordRedisError(service, op string) {
	RedisErrors.WithLabelValues(service, op).Inc()
}

func RecordKafkaMessageProduced(service, topic string, duration time.Duration) {
	KafkaMessagesProduced.WithLabelValues(service, topic).Inc()
	KafkaProduceDuration.WithLabelValues(service, topic).Observe(duration.Seconds())
}

func RecordKafkaError(service, topic, operation string) {
	KafkaErrors.WithLabelValues(service, topic, operation).Inc()
}

// RecordReviewCreated учитывает закоммиченный отзыв
func RecordReviewCreated(rating int) {
	ReviewsCreated.Inc()
	ReviewsRating.Observe(float64(rating))
}
