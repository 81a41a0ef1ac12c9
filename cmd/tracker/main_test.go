package main

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ctfradar/radar/internal/engine"
	"github.com/ctfradar/radar/internal/models"
)

func rawFill(txHash, blockTime string) models.RawEvent {
	return models.RawEvent{
		Block:       models.RawBlock{Time: blockTime, Number: 55123001},
		Transaction: models.RawTransaction{Hash: txHash},
		Arguments: []models.RawArgument{
			{Name: "maker", Value: map[string]any{"address": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}},
			{Name: "taker", Value: map[string]any{"address": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}},
			{Name: "makerAssetId", Value: map[string]any{"bigInteger": "0"}},
			{Name: "takerAssetId", Value: map[string]any{"bigInteger": "7001"}},
			{Name: "makerAmountFilled", Value: map[string]any{"bigInteger": "20000000"}},
			{Name: "takerAmountFilled", Value: map[string]any{"bigInteger": "10000000"}},
		},
	}
}

func TestReplayAppliesOldestFirst(t *testing.T) {
	log, _ := test.NewNullLogger()
	eng := engine.New(engine.Config{}, log)

	// The feed returns events newest first.
	events := []models.RawEvent{
		rawFill("0x02", "2024-05-01T12:05:00Z"),
		rawFill("0x01", "2024-05-01T12:00:00Z"),
	}

	applied := replay(context.Background(), eng, events)
	if len(applied) != 2 {
		t.Fatalf("applied %d trades, want 2", len(applied))
	}
	if !applied[0].Timestamp.Before(applied[1].Timestamp) {
		t.Error("replay must apply oldest first")
	}
	if got := eng.Stats(); got.OrderingViolations != 0 || got.Processed != 2 {
		t.Errorf("stats = %+v, want 2 processed and no ordering violations", got)
	}
}
