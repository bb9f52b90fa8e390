package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

const flushTimeoutMs = 5000

// KafkaPublisher produces events to a kafka topic, keyed by note id so the
// events of one note stay ordered.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

var _ Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(brokers, ","),
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

func (k *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.NoteID),
		Value:          value,
		Headers:        []kafka.Header{{Key: "kind", Value: []byte(event.Kind)}},
	}, delivery)
	if err != nil {
		return fmt.Errorf("produce %s: %w", event.Kind, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("deliver %s: %w", event.Kind, m.TopicPartition.Error)
		}
		return nil
	}
}

func (k *KafkaPublisher) Close() error {
	if left := k.producer.Flush(flushTimeoutMs); left > 0 {
		logrus.Warnf("kafka producer closed with %d undelivered events", left)
	}
	k.producer.Close()
	return nil
}
