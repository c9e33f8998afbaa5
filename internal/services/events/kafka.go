package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes events as JSON to a topic, keyed by external id so a
// user's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	log := logger.Named("kafka")
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Warn("failed to deliver shift events", zap.Int("count", len(messages)), zap.Error(err))
				}
			},
		},
		log: log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		p.log.Error("failed to encode event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}
	msg := kafka.Message{Key: []byte(e.ExternalID), Value: value, Time: e.At}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("failed to enqueue event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
