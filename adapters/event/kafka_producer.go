package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/pkg/logger"
)

const TopicPinEvents = "pin.events"

// KafkaProducerClient publishes cleanup requests for the worker.
type KafkaProducerClient struct {
	PinEventsWriter *kafka.Writer
	logger          logger.Logger
}

func NewKafkaProducerClient(cfg config.Config, log logger.Logger) (*KafkaProducerClient, error) {
	brokers := cfg.Kafka.Brokers
	if len(brokers) == 0 {
		return nil, fmt.Errorf("config Kafka brokers not found")
	}

	// writer 'pin.events'
	pinWriter := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  TopicPinEvents,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}

	log.Info("Initialize Kafka Producers successfully.")
	return &KafkaProducerClient{PinEventsWriter: pinWriter, logger: log}, nil
}

// Schedule writes one message per event keyed by CID, so repeated events
// for a CID land on the same partition.
func (c *KafkaProducerClient) Schedule(ctx context.Context, events ...service.PinEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal pin event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.CID), Value: value})
	}
	if err := c.PinEventsWriter.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish pin events: %w", err)
	}
	return nil
}

func (c *KafkaProducerClient) Close() error {
	if c.PinEventsWriter == nil {
		return nil
	}
	err := c.PinEventsWriter.Close()
	c.logger.Info("Closed Kafka Producers")
	return err
}
