package events

import (
	"testing"

	"stocksaga/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Publishing against a live broker is covered by integration environments;
// these tests pin down topic selection and partition keying.

func newTestPublisher() *KafkaPublisher {
	return &KafkaPublisher{
		logger: zap.NewNop(),
		config: &config.Config{
			KafkaTopicOrders: "orders.events",
			KafkaTopicStock:  "inventory.stock",
			KafkaTopicAlerts: "inventory.alerts",
		},
	}
}

func TestKafkaPublisher_TopicFor_OrderEvents(t *testing.T) {
	p := newTestPublisher()

	for _, event := range []Event{
		OrderCreated{Metadata: NewMetadata(""), OrderID: uuid.New().String()},
		OrderConfirmed{Metadata: NewMetadata(""), OrderID: uuid.New().String()},
		OrderCancelled{Metadata: NewMetadata(""), OrderID: uuid.New().String()},
	} {
		topic, err := p.topicFor(event)
		assert.NoError(t, err)
		assert.Equal(t, "orders.events", topic)
	}
}

func TestKafkaPublisher_TopicFor_StockEvents(t *testing.T) {
	p := newTestPublisher()

	for _, event := range []Event{
		StockReserved{Metadata: NewMetadata(""), ProductID: uuid.New().String()},
		StockAllocated{Metadata: NewMetadata(""), ProductID: uuid.New().String()},
		StockReleased{Metadata: NewMetadata(""), ProductID: uuid.New().String()},
	} {
		topic, err := p.topicFor(event)
		assert.NoError(t, err)
		assert.Equal(t, "inventory.stock", topic)
	}
}

func TestKafkaPublisher_TopicFor_Alerts(t *testing.T) {
	p := newTestPublisher()

	topic, err := p.topicFor(LowStockAlert{Metadata: NewMetadata(""), ProductID: uuid.New().String()})

	assert.NoError(t, err)
	assert.Equal(t, "inventory.alerts", topic)
}

func TestPartitionKey_ByAggregateID(t *testing.T) {
	orderID := uuid.New().String()
	productID := uuid.New().String()

	assert.Equal(t, orderID, partitionKey(OrderConfirmed{OrderID: orderID}))
	assert.Equal(t, orderID, partitionKey(OrderCancelled{OrderID: orderID}))
	assert.Equal(t, productID, partitionKey(StockAllocated{ProductID: productID}))
	assert.Equal(t, productID, partitionKey(LowStockAlert{ProductID: productID}))
}

func TestNewMetadata_UniqueEventIDs(t *testing.T) {
	a := NewMetadata("corr-1")
	b := NewMetadata("corr-1")

	assert.NotEqual(t, a.EventID, b.EventID)
	assert.Equal(t, "corr-1", a.CorrelationID)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityFor(0, 10))
	assert.Equal(t, SeverityHigh, SeverityFor(5, 10))
	assert.Equal(t, SeverityMedium, SeverityFor(8, 10))
	assert.Equal(t, SeverityLow, SeverityFor(9, 10))
	assert.Equal(t, SeverityLow, SeverityFor(10, 10))
}
