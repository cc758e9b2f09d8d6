package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes outbox messages to Kafka. The topic is chosen per message,
// so one writer serves every topic in the event registry.
type Producer struct {
	writer  messageWriter
	brokers []string
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
	logg    *logger.Logger
}

// NewProducer builds a producer for the configured brokers.
func NewProducer(cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: 5 * time.Second}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:            3,
		WriteTimeout:           writeTimeout,
		ReadTimeout:            writeTimeout,
		AllowAutoTopicCreation: false,
	}
	dial := func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return &Producer{writer: writer, brokers: brokers, dial: dial, logg: logg}, nil
}

func (p *Producer) Name() string { return "kafka" }

// Publish writes msg synchronously. Attributes travel as record headers.
func (p *Producer) Publish(ctx context.Context, msg outbox.Message) error {
	if msg.Topic == "" {
		return errors.New("kafka topic is required")
	}
	if err := p.writer.WriteMessages(ctx, toRecord(msg)); err != nil {
		return fmt.Errorf("write message to %s: %w", msg.Topic, err)
	}
	if p.logg != nil {
		p.logg.Debug(p.logg.WithFields(ctx, map[string]any{
			"topic": msg.Topic,
			"key":   msg.Key,
		}), "kafka message written")
	}
	return nil
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := p.dial(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func toRecord(msg outbox.Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Attributes))
	for k, v := range msg.Attributes {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	record := kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: headers,
		Time:    time.Now().UTC(),
	}
	if created, ok := msg.Attributes["created_at"]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			record.Time = ts
		}
	}
	return record
}
