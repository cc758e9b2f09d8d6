package outbox

import "context"

// Message is a resolved outbox row ready for a broker. Key is the aggregate
// id so brokers that partition by key keep one aggregate's events in order.
type Message struct {
	Topic      string
	Key        string
	Data       []byte
	Attributes map[string]string
}

// Sink delivers messages to a broker.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Ping(ctx context.Context) error
	Close() error
}
