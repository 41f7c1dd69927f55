package messaging

import (
	"context"
	"fmt"
	"time"

	"goodbites/listings-service/internal/app/listings/infrastructure"
	"goodbites/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

const serviceName = "listings-service"

// messageWriter - часть kafka.Writer, которую использует продюсер
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer отправляет события об отзывах в топик review_events
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

var _ infrastructure.MessagePublisher = (*KafkaProducer)(nil)

// NewKafkaProducer создает producer; brokers - адреса в формате "host:port"
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{}, // один ключ - одна партиция, порядок событий заведения сохраняется
		// отзыв уже закоммичен, поэтому долго ждать батч не нужно
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaProducer{writer: writer, topic: topic}
}

// PublishMessage отправляет сообщение в Kafka
// key - ID заведения, value - JSON события ReviewEvent
func (p *KafkaProducer) PublishMessage(ctx context.Context, key string, value []byte) error {
	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		metrics.RecordKafkaError(serviceName, p.topic, "write")
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	metrics.RecordKafkaMessageProduced(serviceName, p.topic, time.Since(start))

	return nil
}

// Close закрывает Kafka writer и освобождает ресурсы
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
