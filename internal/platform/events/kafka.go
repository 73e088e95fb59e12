package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Kafka publishes events to a single Kafka topic. Messages are keyed by
// "<topic>:<resource id>" so all changes to one record land on the same
// partition in order.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewKafkaConfig returns the producer settings used by NewKafka.
func NewKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "medrec"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Idempotent = false
	cfg.Net.DialTimeout = 5 * time.Second
	return cfg
}

func NewKafka(brokers []string, topic string, logger zerolog.Logger) (*Kafka, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaWithProducer(producer, topic, logger), nil
}

// NewKafkaWithProducer wraps an existing producer (tests pass a sarama mock).
func NewKafkaWithProducer(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *Kafka {
	return &Kafka{producer: producer, topic: topic, logger: logger}
}

func (k *Kafka) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.Topic + ":" + event.ResourceID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
		Timestamp: event.Timestamp,
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s to kafka: %w", event.Type, err)
	}

	k.logger.Debug().
		Str("type", event.Type).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("event sent to kafka")
	return nil
}

func (k *Kafka) Close() error {
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
