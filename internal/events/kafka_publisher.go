package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stocksaga/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaPublisher implements Publisher using a sarama SyncProducer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
	config   *config.Config
}

// NewKafkaPublisher creates a new Kafka event publisher
func NewKafkaPublisher(cfg *config.Config, logger *zap.Logger) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.KafkaClientID
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = cfg.KafkaRetries
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	switch cfg.KafkaAcks {
	case "0":
		saramaConfig.Producer.RequiredAcks = sarama.NoResponse
	case "1":
		saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	default:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	}

	producer, err := sarama.NewSyncProducer(cfg.KafkaBrokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaPublisher{
		producer: producer,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Publish publishes an event to Kafka with retries and exponential backoff.
// Messages are keyed by aggregate id so all events for one aggregate land on
// the same partition, preserving their causal order.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	topic, err := p.topicFor(event)
	if err != nil {
		return fmt.Errorf("failed to determine topic: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	meta := event.Meta()
	message := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.EventType())},
			{Key: []byte("event-id"), Value: []byte(meta.EventID)},
			{Key: []byte("correlation-id"), Value: []byte(meta.CorrelationID)},
			{Key: []byte("timestamp"), Value: []byte(meta.OccurredAt.Format(time.RFC3339))},
		},
	}
	if key := partitionKey(event); key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		partition, offset, err := p.producer.SendMessage(message)
		if err == nil {
			p.logger.Info("Event published to Kafka",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Int64("offset", offset),
				zap.String("event_type", event.EventType()),
				zap.String("event_id", meta.EventID),
			)
			return nil
		}

		lastErr = err
		p.logger.Warn("Failed to publish event to Kafka, retrying",
			zap.String("topic", topic),
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
		)

		if attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("failed to publish event to Kafka after %d attempts: %w", maxRetries, lastErr)
}

// Close closes the Kafka producer
func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// topicFor determines the Kafka topic based on event type
func (p *KafkaPublisher) topicFor(event Event) (string, error) {
	switch event.(type) {
	case OrderCreated, OrderConfirmed, OrderCancelled:
		return p.config.KafkaTopicOrders, nil
	case StockReserved, StockAllocated, StockReleased:
		return p.config.KafkaTopicStock, nil
	case LowStockAlert:
		return p.config.KafkaTopicAlerts, nil
	default:
		return "", fmt.Errorf("unknown event type: %T", event)
	}
}

// partitionKey returns the aggregate id the message is keyed by
func partitionKey(event Event) string {
	switch e := event.(type) {
	case OrderCreated:
		return e.OrderID
	case OrderConfirmed:
		return e.OrderID
	case OrderCancelled:
		return e.OrderID
	case StockReserved:
		return e.ProductID
	case StockAllocated:
		return e.ProductID
	case StockReleased:
		return e.ProductID
	case LowStockAlert:
		return e.ProductID
	}
	return ""
}
