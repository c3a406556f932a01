package loader

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/kafka"
	"github.com/synaptica-ai/phenoxtract/pkg/common/models"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
)

// Kafka publishes every packet as one message keyed by packet id.
type Kafka struct {
	producer *kafka.Producer
}

func NewKafka(p *kafka.Producer) *Kafka {
	return &Kafka{producer: p}
}

func (k *Kafka) Name() string {
	return "kafka"
}

func (k *Kafka) Load(ctx context.Context, packets []record.Phenopacket) error {
	msgs := make([]kafkago.Message, 0, len(packets))
	for _, p := range packets {
		msg, err := kafka.NewMessage(p.ID, models.EventPhenopacket, config.ToolName, p)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return k.producer.PublishBatch(ctx, msgs)
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
