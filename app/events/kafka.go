package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type KafkaPublisher struct {
	producer    sarama.SyncProducer
	topicPrefix string
}

func NewKafkaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	return config
}

// DialKafka retries the broker a few times before giving up, brokers are
// often still starting when the shop boots.
func DialKafka(brokers []string, topicPrefix string, attempts int) (*KafkaPublisher, error) {
	if attempts < 1 {
		attempts = 1
	}

	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= attempts; i++ {
		producer, err = sarama.NewSyncProducer(brokers, NewKafkaConfig())
		if err == nil {
			log.Printf("[events] kafka producer connected to %s", strings.Join(brokers, ","))
			return NewKafkaPublisher(producer, topicPrefix), nil
		}

		log.Printf("[events] waiting for kafka (%d/%d): %v", i, attempts, err)
		if i < attempts {
			time.Sleep(2 * time.Second)
		}
	}

	return nil, fmt.Errorf("kafka producer: %w", err)
}

func NewKafkaPublisher(producer sarama.SyncProducer, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topicPrefix: topicPrefix}
}

func (p *KafkaPublisher) Topic(topic string) string {
	if p.topicPrefix == "" {
		return topic
	}
	return p.topicPrefix + "." + topic
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.Topic(topic),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s: %w", msg.Topic, err)
	}

	log.Printf("[events] published %s partition=%d offset=%d", msg.Topic, partition, offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
