package ingester

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/ctfradar/radar/internal/stream"
)

func testIngester() *Ingester {
	return &Ingester{logger: slog.Default()}
}

func wireMessage() stream.TradeMessage {
	return stream.TradeMessage{
		TradeID:     "0xdeadbeef-3",
		Timestamp:   "2024-05-01T12:00:00Z",
		Trader:      "0xaaa",
		AssetID:     "7001",
		Side:        "buy",
		Role:        "taker",
		Size:        "10",
		Price:       "2",
		USDValue:    "20",
		BlockNumber: 55123001,
	}
}

func TestTransform(t *testing.T) {
	fill, err := testIngester().transform(wireMessage())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if fill.TradeID != "0xdeadbeef-3" || fill.Trader != "0xaaa" {
		t.Errorf("identity fields mangled: %+v", fill)
	}
	if fill.Size != 10 || fill.Price != 2 || fill.USDValue != 20 {
		t.Errorf("amounts mangled: %+v", fill)
	}
	if fill.EventTime.IsZero() {
		t.Error("event time not parsed")
	}
}

func TestTransformRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*stream.TradeMessage)
	}{
		{"missing trade id", func(m *stream.TradeMessage) { m.TradeID = "" }},
		{"missing trader", func(m *stream.TradeMessage) { m.Trader = "" }},
		{"missing asset id", func(m *stream.TradeMessage) { m.AssetID = "" }},
		{"bad timestamp", func(m *stream.TradeMessage) { m.Timestamp = "yesterday" }},
		{"bad size", func(m *stream.TradeMessage) { m.Size = "ten" }},
		{"zero size", func(m *stream.TradeMessage) { m.Size = "0" }},
		{"negative price", func(m *stream.TradeMessage) { m.Price = "-1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := wireMessage()
			tt.mutate(&msg)
			if _, err := testIngester().transform(msg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseMessageSingle(t *testing.T) {
	payload, _ := json.Marshal(wireMessage())
	fills, err := testIngester().parseMessage(kafka.Message{Value: payload})
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
}

func TestParseMessageBatch(t *testing.T) {
	a := wireMessage()
	b := wireMessage()
	b.TradeID = "0xdeadbeef-4"
	payload, _ := json.Marshal([]stream.TradeMessage{a, b})

	fills, err := testIngester().parseMessage(kafka.Message{Value: payload})
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
}

func TestParseMessageBatchSkipsInvalid(t *testing.T) {
	good := wireMessage()
	bad := wireMessage()
	bad.Size = "not a number"
	payload, _ := json.Marshal([]stream.TradeMessage{bad, good})

	fills, err := testIngester().parseMessage(kafka.Message{Value: payload})
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
}

func TestParseMessageGarbage(t *testing.T) {
	if _, err := testIngester().parseMessage(kafka.Message{Value: []byte("not json")}); err == nil {
		t.Error("expected an error for garbage input")
	}
	if _, err := testIngester().parseMessage(kafka.Message{Value: []byte(`{"foo":1}`)}); err == nil {
		t.Error("expected an error for an unrecognized object")
	}
}
