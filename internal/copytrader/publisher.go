package copytrader

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/engine"
)

const DefaultIntentTopic = "radar_copy_intents"

// KafkaPublisher publishes copy-trade intents for a downstream
// executor, keyed by source trader so one wallet's intents stay
// ordered.
type KafkaPublisher struct {
	writer        *kafka.Writer
	copyAmountUSD decimal.Decimal
}

func NewKafkaPublisher(brokers []string, topic string, copyAmountUSD decimal.Decimal) *KafkaPublisher {
	if topic == "" {
		topic = DefaultIntentTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, copyAmountUSD: copyAmountUSD}
}

// OnFill builds an intent from the fill and writes it to the topic.
func (p *KafkaPublisher) OnFill(ctx context.Context, snap engine.FillSnapshot) error {
	intent, ok := BuildIntent(snap, p.copyAmountUSD)
	if !ok {
		return nil
	}

	value, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(intent.SourceTrader),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
