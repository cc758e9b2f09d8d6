package pubsub

import (
	"context"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// Sink publishes outbox messages through the Pub/Sub client.
type Sink struct {
	client *Client
}

func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) Name() string { return "pubsub" }

// Publish maps the message onto a Pub/Sub message. The aggregate key becomes
// the ordering key.
func (s *Sink) Publish(ctx context.Context, msg outbox.Message) error {
	_, err := s.client.Publish(ctx, msg.Topic, &pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.Key,
	})
	return err
}

func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Sink) Close() error {
	return s.client.Close()
}
