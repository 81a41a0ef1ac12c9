package stream

import (
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"github.com/ctfradar/radar/internal/models"
)

const (
	DefaultKafkaBroker = "localhost:9092"
	DefaultKafkaTopic  = "radar_fills"
)

// Producer publishes trades to a Kafka topic, keyed by trader so one
// wallet's fills stay ordered within a partition.
type Producer struct {
	producer *kafka.Producer
	topic    string
	logger   *logrus.Logger
}

func NewProducer(broker, topic string, logger *logrus.Logger) (*Producer, error) {
	if broker == "" {
		broker = DefaultKafkaBroker
	}
	if topic == "" {
		topic = DefaultKafkaTopic
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
	p.startDeliveryReport()
	p.logger.Info("Kafka producer initialized successfully")
	return p, nil
}

func (p *Producer) startDeliveryReport() {
	go func() {
		for e := range p.producer.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					p.logger.Errorf("Message delivery failed: %v", ev.TopicPartition.Error)
				}
			}
		}
	}()
}

// Publish sends one trade to the topic.
func (p *Producer) Publish(trade models.Trade) error {
	payload, err := json.Marshal(FromTrade(trade))
	if err != nil {
		return fmt.Errorf("failed to encode trade: %w", err)
	}

	topic := p.topic
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(trade.Trader),
		Value:          payload,
	}, nil)
}

// Close flushes pending messages and shuts the producer down.
func (p *Producer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
