package aggregator

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/models"
)

// DefaultPriceWindow is the number of recent fills the indicative
// price averages over when no window is configured.
const DefaultPriceWindow = 5

type pricePoint struct {
	price decimal.Decimal
	size  decimal.Decimal
}

type assetState struct {
	volume    decimal.Decimal
	count     int64
	traders   map[string]struct{}
	lastPrice decimal.Decimal
	window    []pricePoint   // oldest first, bounded by the window size
	fills     []models.Trade // newest first, bounded by depth
	lastTrade time.Time
}

// AssetAggregator folds trades into per-asset summaries, including a
// size-weighted indicative price over a sliding window of fills.
type AssetAggregator struct {
	mu     sync.RWMutex
	window int
	depth  int
	state  map[string]*assetState
}

// NewAssetAggregator creates an aggregator averaging the indicative
// price over the last window fills and retaining depth recent fills
// per asset for book reconstruction. Zero disables either; a negative
// value selects the default.
func NewAssetAggregator(window, depth int) *AssetAggregator {
	if window < 0 {
		window = DefaultPriceWindow
	}
	if depth < 0 {
		depth = DefaultRecentFillsDepth
	}
	return &AssetAggregator{
		window: window,
		depth:  depth,
		state:  make(map[string]*assetState),
	}
}

// Record folds one trade into its asset's summary.
func (a *AssetAggregator) Record(trade models.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.state[trade.AssetID]
	if !ok {
		st = &assetState{traders: make(map[string]struct{})}
		a.state[trade.AssetID] = st
	}

	st.volume = st.volume.Add(trade.USDValue)
	st.count++
	st.traders[trade.Trader] = struct{}{}
	st.lastPrice = trade.Price
	if trade.Timestamp.After(st.lastTrade) {
		st.lastTrade = trade.Timestamp
	}

	if a.window > 0 {
		st.window = append(st.window, pricePoint{price: trade.Price, size: trade.Size})
		if len(st.window) > a.window {
			st.window = st.window[1:]
		}
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

// Fills returns a copy of the asset's retained recent fills, newest
// first. Nil when the asset is unknown or retention is disabled.
func (a *AssetAggregator) Fills(assetID string) []models.Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.state[assetID]
	if !ok || len(st.fills) == 0 {
		return nil
	}
	out := make([]models.Trade, len(st.fills))
	copy(out, st.fills)
	return out
}

// Summary returns a snapshot for one asset; ok is false when the asset
// has no recorded activity.
func (a *AssetAggregator) Summary(assetID string) (models.AssetSummary, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.state[assetID]
	if !ok {
		return models.AssetSummary{}, false
	}
	return summarizeAsset(assetID, st), true
}

// Snapshot returns summaries for every known asset.
func (a *AssetAggregator) Snapshot() []models.AssetSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.AssetSummary, 0, len(a.state))
	for assetID, st := range a.state {
		out = append(out, summarizeAsset(assetID, st))
	}
	return out
}

func summarizeAsset(assetID string, st *assetState) models.AssetSummary {
	return models.AssetSummary{
		AssetID:         assetID,
		TotalVolumeUSD:  st.volume,
		TradeCount:      st.count,
		UniqueTraders:   len(st.traders),
		LastPrice:       st.lastPrice,
		IndicativePrice: indicativePrice(st.window),
		LastTradeTime:   st.lastTrade,
	}
}

// indicativePrice is the size-weighted average price of the window.
// Zero-size points fall back to an unweighted average to keep the
// price defined.
func indicativePrice(window []pricePoint) decimal.Decimal {
	if len(window) == 0 {
		return decimal.Decimal{}
	}
	var notional, size decimal.Decimal
	for _, pt := range window {
		notional = notional.Add(pt.price.Mul(pt.size))
		size = size.Add(pt.size)
	}
	if size.Sign() > 0 {
		return notional.Div(size)
	}
	var sum decimal.Decimal
	for _, pt := range window {
		sum = sum.Add(pt.price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(window))))
}
