package aggregator

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/models"
)

func aggTrade(trader, asset, size, price string, offset time.Duration) models.Trade {
	sz := decimal.RequireFromString(size)
	pr := decimal.RequireFromString(price)
	return models.Trade{
		TradeID:   fmt.Sprintf("0xabc-%s-%s-%d", trader, asset, offset/time.Second),
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(offset),
		Trader:    trader,
		AssetID:   asset,
		Side:      models.SideBuy,
		Role:      models.RoleTaker,
		Size:      sz,
		Price:     pr,
		USDValue:  sz.Mul(pr),
	}
}

func TestTraderAggregatorSummary(t *testing.T) {
	agg := NewTraderAggregator(10)
	agg.Record(aggTrade("0xaaa", "7001", "10", "2", 0))
	agg.Record(aggTrade("0xaaa", "7002", "4", "3", time.Minute))
	agg.Record(aggTrade("0xbbb", "7001", "1", "5", 2*time.Minute))

	sum, ok := agg.Summary("0xaaa")
	if !ok {
		t.Fatal("expected summary for 0xaaa")
	}
	if got := sum.TotalVolumeUSD; !got.Equal(decimal.RequireFromString("32")) {
		t.Errorf("volume = %s, want 32", got)
	}
	if sum.TradeCount != 2 {
		t.Errorf("trade count = %d, want 2", sum.TradeCount)
	}
	if sum.UniqueAssets != 2 {
		t.Errorf("unique assets = %d, want 2", sum.UniqueAssets)
	}
	// 32 USD over 14 tokens.
	want := decimal.RequireFromString("32").Div(decimal.RequireFromString("14"))
	if !sum.AvgPrice.Equal(want) {
		t.Errorf("avg price = %s, want %s", sum.AvgPrice, want)
	}
	wantTime := time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC)
	if !sum.LastTradeTime.Equal(wantTime) {
		t.Errorf("last trade time = %s, want %s", sum.LastTradeTime, wantTime)
	}
}

func TestTraderAggregatorUnknownTrader(t *testing.T) {
	agg := NewTraderAggregator(10)
	if _, ok := agg.Summary("0xnobody"); ok {
		t.Fatal("expected no summary for unknown trader")
	}
	if fills := agg.RecentFills("0xnobody", 5); fills != nil {
		t.Fatalf("expected nil fills, got %d", len(fills))
	}
}

func TestTraderAggregatorVolumeConservation(t *testing.T) {
	agg := NewTraderAggregator(3)
	var want decimal.Decimal
	for i := 0; i < 20; i++ {
		tr := aggTrade("0xaaa", "7001", "2", "0.5", time.Duration(i)*time.Second)
		want = want.Add(tr.USDValue)
		agg.Record(tr)
	}
	sum, _ := agg.Summary("0xaaa")
	if !sum.TotalVolumeUSD.Equal(want) {
		t.Errorf("volume = %s, want %s", sum.TotalVolumeUSD, want)
	}
	if sum.TradeCount != 20 {
		t.Errorf("trade count = %d, want 20", sum.TradeCount)
	}
}

func TestTraderAggregatorRecentFillsBounded(t *testing.T) {
	agg := NewTraderAggregator(3)
	for i := 0; i < 5; i++ {
		agg.Record(aggTrade("0xaaa", "7001", "1", "1", time.Duration(i)*time.Second))
	}

	fills := agg.RecentFills("0xaaa", 10)
	if len(fills) != 3 {
		t.Fatalf("got %d fills, want 3", len(fills))
	}
	// Newest first: offsets 4, 3, 2.
	for i, wantOffset := range []int{4, 3, 2} {
		wantID := fmt.Sprintf("0xabc-0xaaa-7001-%d", wantOffset)
		if fills[i].TradeID != wantID {
			t.Errorf("fills[%d] = %s, want %s", i, fills[i].TradeID, wantID)
		}
	}

	if got := agg.RecentFills("0xaaa", 2); len(got) != 2 {
		t.Errorf("limit 2 returned %d fills", len(got))
	}
}

func TestTraderAggregatorZeroDepth(t *testing.T) {
	agg := NewTraderAggregator(0)
	agg.Record(aggTrade("0xaaa", "7001", "10", "2", 0))

	if fills := agg.RecentFills("0xaaa", 5); len(fills) != 0 {
		t.Fatalf("depth 0 retained %d fills", len(fills))
	}
	sum, ok := agg.Summary("0xaaa")
	if !ok || sum.TradeCount != 1 {
		t.Fatal("counters must still update with depth 0")
	}
}

func TestTraderAggregatorSnapshot(t *testing.T) {
	agg := NewTraderAggregator(10)
	agg.Record(aggTrade("0xaaa", "7001", "10", "2", 0))
	agg.Record(aggTrade("0xbbb", "7001", "3", "1", 0))

	snap := agg.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(snap))
	}
	seen := make(map[string]bool)
	for _, s := range snap {
		seen[s.Trader] = true
	}
	if !seen["0xaaa"] || !seen["0xbbb"] {
		t.Errorf("snapshot missing traders: %v", seen)
	}
}
