package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// Топик событий подписок
const TopicSubscriptionEvents = "subscription_events"

// Producer определяет интерфейс для публикации событий подписок в Kafka
type Producer interface {
	// Publish отправляет событие подписки. Ключ сообщения — UserID:
	// события одного пользователя попадают в одну партицию и сохраняют
	// порядок.
	Publish(ctx context.Context, event domain.SubscriptionEvent) error

	// Close закрывает соединение продюсера Kafka
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer создает и настраивает новый продюсер Kafka
func NewProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        TopicSubscriptionEvents,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "topic", TopicSubscriptionEvents)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// Publish преобразует событие в JSON и отправляет его в топик подписок
func (k *kafkaProducer) Publish(ctx context.Context, event domain.SubscriptionEvent) error {
	messageValue, err := json.Marshal(event)
	if err != nil {
		k.log.Errorw("Failed to marshal subscription event for Kafka",
			"error", err, "type", event.Type, "userID", event.UserID)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.UserID),
		Value: messageValue,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded",
				"error", err, "type", event.Type, "userID", event.UserID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka",
			"error", err, "type", event.Type, "userID", event.UserID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Subscription event published",
		"type", event.Type, "userID", event.UserID)
	return nil
}

// Close закрывает соединение Kafka Writer
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer")
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka producer writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}
