package kafka

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func header(record kafka.Message, key string) string {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Brokers: " , "}, nil)
	require.Error(t, err)
}

func TestPublishWritesRecordWithHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), outbox.Message{
		Topic: "orders",
		Key:   "order-1",
		Data:  []byte(`{"version":1}`),
		Attributes: map[string]string{
			"event_type": "order_created",
			"created_at": created.Format(time.RFC3339Nano),
		},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)

	record := w.written[0]
	assert.Equal(t, "orders", record.Topic)
	assert.Equal(t, "order-1", string(record.Key))
	assert.JSONEq(t, `{"version":1}`, string(record.Value))
	assert.Equal(t, "order_created", header(record, "event_type"))
	assert.True(t, record.Time.Equal(created))
}

func TestPublishRequiresTopic(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}}
	require.Error(t, p.Publish(context.Background(), outbox.Message{Key: "k"}))
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Producer{writer: &fakeWriter{err: boom}}
	err := p.Publish(context.Background(), outbox.Message{Topic: "orders"})
	require.ErrorIs(t, err, boom)
}

func TestPingTriesEveryBroker(t *testing.T) {
	var dialed []string
	p := &Producer{
		brokers: []string{"a:9092", "b:9092"},
		dial: func(_ context.Context, _, address string) (net.Conn, error) {
			dialed = append(dialed, address)
			if address == "a:9092" {
				return nil, errors.New("refused")
			}
			client, server := net.Pipe()
			_ = server.Close()
			return client, nil
		},
	}
	require.NoError(t, p.Ping(context.Background()))
	assert.Equal(t, []string{"a:9092", "b:9092"}, dialed)

	p.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("refused")
	}
	require.Error(t, p.Ping(context.Background()))
}

func TestCloseClosesWriter(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
