package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/common/models"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer MessageWriter
	topic  string
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer, topic: topic}
}

// NewProducerWithWriter wraps an existing writer, e.g. one shared by several
// loaders or a fake in tests.
func NewProducerWithWriter(w MessageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

func (p *Producer) Topic() string {
	return p.topic
}

func (p *Producer) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}
	return p.PublishJSON(ctx, event.ID, eventType, source, event)
}

// PublishJSON writes v as one message keyed by key. Messages with the same
// key land on the same partition.
func (p *Producer) PublishJSON(ctx context.Context, key, eventType, source string, v interface{}) error {
	msg, err := NewMessage(key, eventType, source, v)
	if err != nil {
		return err
	}
	return p.PublishBatch(ctx, []kafka.Message{msg})
}

// NewMessage encodes v as JSON and tags it with event-type and source headers.
func NewMessage(key, eventType, source string, v interface{}) (kafka.Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s message: %w", eventType, err)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(source)},
		},
	}, nil
}

// PublishBatch writes messages in one call.
func (p *Producer) PublishBatch(ctx context.Context, msgs []kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"topic":    p.topic,
			"messages": len(msgs),
		}).Error("Failed to publish messages")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"topic":    p.topic,
		"messages": len(msgs),
	}).Debug("Messages published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
