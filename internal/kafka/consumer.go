package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stocksaga/internal/config"
	"stocksaga/internal/repository"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// EventProcessor applies a consumed event to local state.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventType string, eventData []byte) error
}

// Consumer reads order lifecycle events from Kafka and hands them to the
// processor. Offsets are committed only after the processor returns, so a
// crash redelivers the event; the processor's ledger makes redelivery safe.
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	dlqProducer   sarama.SyncProducer
	processor     EventProcessor
	logger        *zap.Logger
	config        *config.Config
	topics        []string
}

// NewConsumer creates a new Kafka consumer group for the order events topic.
func NewConsumer(cfg *config.Config, processor EventProcessor, logger *zap.Logger) (*Consumer, error) {
	logger.Info("Creating Kafka consumer",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("group_id", cfg.KafkaGroupID),
	)

	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.KafkaClientID
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Version = sarama.V2_8_0_0

	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second

	saramaConfig.Metadata.RefreshFrequency = 10 * time.Minute
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	consumerGroup, err := sarama.NewConsumerGroup(cfg.KafkaBrokers, cfg.KafkaGroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	var dlqProducer sarama.SyncProducer
	if cfg.DeadLetterQueue {
		producerConfig := sarama.NewConfig()
		producerConfig.ClientID = cfg.KafkaClientID + "-dlq"
		producerConfig.Producer.Return.Successes = true
		producerConfig.Producer.RequiredAcks = sarama.WaitForAll
		producerConfig.Version = sarama.V2_8_0_0

		dlqProducer, err = sarama.NewSyncProducer(cfg.KafkaBrokers, producerConfig)
		if err != nil {
			consumerGroup.Close()
			return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
		}
	}

	return &Consumer{
		consumerGroup: consumerGroup,
		dlqProducer:   dlqProducer,
		processor:     processor,
		logger:        logger,
		config:        cfg,
		topics:        []string{cfg.KafkaTopicOrders},
	}, nil
}

// Start consumes messages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{
		processor:   c.processor,
		dlqProducer: c.dlqProducer,
		logger:      c.logger,
		config:      c.config,
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
				c.logger.Error("Error from consumer", zap.Error(err))
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range c.consumerGroup.Errors() {
			c.logger.Error("Consumer error", zap.Error(err))
		}
	}()

	c.logger.Info("Kafka consumer started",
		zap.Strings("topics", c.topics),
		zap.String("group_id", c.config.KafkaGroupID),
	)

	wg.Wait()
	return nil
}

// Close closes the consumer and the DLQ producer.
func (c *Consumer) Close() error {
	if c.dlqProducer != nil {
		if err := c.dlqProducer.Close(); err != nil {
			c.logger.Warn("Failed to close DLQ producer", zap.Error(err))
		}
	}
	return c.consumerGroup.Close()
}

type consumerGroupHandler struct {
	processor   EventProcessor
	dlqProducer sarama.SyncProducer
	logger      *zap.Logger
	config      *config.Config
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes messages one at a time, marking the offset only
// after the processor finishes or the message is parked in the DLQ.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			eventType := headerValue(message.Headers, "event-type")
			if eventType == "" {
				h.logger.Warn("Message without event type, skipping",
					zap.String("topic", message.Topic),
					zap.Int32("partition", message.Partition),
					zap.Int64("offset", message.Offset),
				)
				session.MarkMessage(message, "")
				continue
			}

			if err := h.processWithRetry(session.Context(), eventType, message.Value); err != nil {
				h.logger.Error("Failed to process event after retries",
					zap.String("event_type", eventType),
					zap.String("topic", message.Topic),
					zap.Error(err),
				)

				if h.dlqProducer != nil {
					if dlqErr := h.sendToDLQ(message, err); dlqErr != nil {
						h.logger.Error("Failed to send to DLQ", zap.Error(dlqErr))
					}
				}
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// processWithRetry retries transient failures with a linear backoff. Version
// conflicts are always retryable: the processor rereads fresh state.
func (h *consumerGroupHandler) processWithRetry(ctx context.Context, eventType string, eventData []byte) error {
	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(h.config.RetryDelayMs*attempt) * time.Millisecond
			h.logger.Info("Retrying event processing",
				zap.String("event_type", eventType),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := h.processor.ProcessEvent(ctx, eventType, eventData)
		if err == nil {
			if attempt > 0 {
				h.logger.Info("Event processed successfully after retry",
					zap.String("event_type", eventType),
					zap.Int("attempts", attempt+1),
				)
			}
			return nil
		}

		lastErr = err
		if errors.Is(err, repository.ErrVersionConflict) {
			h.logger.Warn("Version conflict, will retry",
				zap.String("event_type", eventType),
				zap.Int("attempt", attempt),
			)
			continue
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", h.config.MaxRetries+1, lastErr)
}

// sendToDLQ republishes a poison message on the dead letter topic with the
// original coordinates and failure reason attached as headers.
func (h *consumerGroupHandler) sendToDLQ(message *sarama.ConsumerMessage, procErr error) error {
	headers := make([]sarama.RecordHeader, 0, len(message.Headers)+3)
	for _, header := range message.Headers {
		headers = append(headers, *header)
	}
	headers = append(headers,
		sarama.RecordHeader{Key: []byte("dlq-source-topic"), Value: []byte(message.Topic)},
		sarama.RecordHeader{Key: []byte("dlq-source-offset"), Value: []byte(fmt.Sprintf("%d/%d", message.Partition, message.Offset))},
		sarama.RecordHeader{Key: []byte("dlq-error"), Value: []byte(procErr.Error())},
	)

	_, _, err := h.dlqProducer.SendMessage(&sarama.ProducerMessage{
		Topic:   h.config.DLQTopic,
		Key:     sarama.ByteEncoder(message.Key),
		Value:   sarama.ByteEncoder(message.Value),
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	h.logger.Warn("Message parked in DLQ",
		zap.String("source_topic", message.Topic),
		zap.String("dlq_topic", h.config.DLQTopic),
	)
	return nil
}

func headerValue(headers []*sarama.RecordHeader, key string) string {
	for _, header := range headers {
		if string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}
