// Package aggregator maintains running per-trader and per-asset
// summaries folded from the normalized trade stream. Each aggregator
// owns one map guarded by one RWMutex; reads return copies and never
// block ingestion for long.
package aggregator

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/models"
)

// DefaultRecentFillsDepth is how many recent fills are retained per
// trader when no depth is configured.
const DefaultRecentFillsDepth = 50

type traderState struct {
	volume    decimal.Decimal
	totalSize decimal.Decimal
	count     int64
	assets    map[string]struct{}
	fills     []models.Trade // newest first, bounded by depth
	lastTrade time.Time
}

// TraderAggregator folds trades into per-trader summaries.
type TraderAggregator struct {
	mu    sync.RWMutex
	depth int
	state map[string]*traderState
}

// NewTraderAggregator creates an aggregator retaining depth recent
// fills per trader. depth 0 disables retention; counters still update.
// A negative depth selects the default.
func NewTraderAggregator(depth int) *TraderAggregator {
	if depth < 0 {
		depth = DefaultRecentFillsDepth
	}
	return &TraderAggregator{
		depth: depth,
		state: make(map[string]*traderState),
	}
}

// Record folds one trade into its trader's summary.
func (a *TraderAggregator) Record(trade models.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.state[trade.Trader]
	if !ok {
		st = &traderState{assets: make(map[string]struct{})}
		a.state[trade.Trader] = st
	}

	st.volume = st.volume.Add(trade.USDValue)
	st.totalSize = st.totalSize.Add(trade.Size)
	st.count++
	st.assets[trade.AssetID] = struct{}{}
	if trade.Timestamp.After(st.lastTrade) {
		st.lastTrade = trade.Timestamp
	}

	if a.depth == 0 {
		return
	}
	// Prepend, then drop the oldest once over depth.
	st.fills = append(st.fills, models.Trade{})
	copy(st.fills[1:], st.fills)
	st.fills[0] = trade
	if len(st.fills) > a.depth {
		st.fills = st.fills[:a.depth]
	}
}

// Summary returns a snapshot for one trader; ok is false when the
// trader has no recorded activity.
func (a *TraderAggregator) Summary(trader string) (models.TraderSummary, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.state[trader]
	if !ok {
		return models.TraderSummary{}, false
	}
	return a.summarize(trader, st), true
}

// RecentFills returns up to limit of the trader's most recent fills,
// newest first. Reads never mutate the window.
func (a *TraderAggregator) RecentFills(trader string, limit int) []models.Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.state[trader]
	if !ok || limit <= 0 {
		return nil
	}
	if limit > len(st.fills) {
		limit = len(st.fills)
	}
	out := make([]models.Trade, limit)
	copy(out, st.fills[:limit])
	return out
}

// Snapshot returns summaries for every known trader. Order is map
// order; rankings are the leaderboard's job.
func (a *TraderAggregator) Snapshot() []models.TraderSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.TraderSummary, 0, len(a.state))
	for trader, st := range a.state {
		out = append(out, a.summarize(trader, st))
	}
	return out
}

func (a *TraderAggregator) summarize(trader string, st *traderState) models.TraderSummary {
	avg := decimal.Decimal{}
	if st.totalSize.Sign() > 0 {
		avg = st.volume.Div(st.totalSize)
	}
	return models.TraderSummary{
		Trader:         trader,
		TotalVolumeUSD: st.volume,
		TradeCount:     st.count,
		UniqueAssets:   len(st.assets),
		AvgPrice:       avg,
		LastTradeTime:  st.lastTrade,
	}
}
