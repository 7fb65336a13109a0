package queue

import "context"

// The queue is a wakeup signal only: scheduled_deliveries rows are the
// authoritative work store, and the claim-with-lease transition is what
// guarantees single execution. Duplicate or lost messages are tolerated;
// the retry scanner republishes due rows.
const (
	// WorkQueueName is the delivery wakeup queue.
	WorkQueueName = "deliveries"
	// DLQName receives messages rejected as malformed.
	DLQName = "dlq.deliveries"
)

// Publisher publishes delivery wakeup messages.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DeliveryMessage) error
	Close() error
}

// MessageHandler handles a consumed wakeup message.
type MessageHandler func(ctx context.Context, msg DeliveryMessage) error

// Consumer consumes delivery wakeup messages.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
