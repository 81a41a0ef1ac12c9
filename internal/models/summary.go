package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TraderSummary is a point-in-time snapshot of one trader's aggregates.
type TraderSummary struct {
	Trader string `json:"trader"`

	// TotalVolumeUSD is the sum of USDValue across every fill.
	TotalVolumeUSD decimal.Decimal `json:"total_volume_usd"`

	TradeCount int64 `json:"trade_count"`

	// UniqueAssets counts distinct asset ids the trader has touched.
	UniqueAssets int `json:"unique_assets"`

	// AvgPrice is the volume-weighted average fill price
	// (total USD volume over total token size).
	AvgPrice decimal.Decimal `json:"avg_price"`

	LastTradeTime time.Time `json:"last_trade_time"`
}

// AssetSummary is a point-in-time snapshot of one asset's aggregates.
// An asset with no recorded fills has no summary at all; callers check
// existence instead of assuming zeroes.
type AssetSummary struct {
	AssetID string `json:"asset_id"`

	TotalVolumeUSD decimal.Decimal `json:"total_volume_usd"`
	TradeCount     int64           `json:"trade_count"`

	// UniqueTraders counts distinct addresses that traded the asset.
	UniqueTraders int `json:"unique_traders"`

	// LastPrice is the price of the most recent fill.
	LastPrice decimal.Decimal `json:"last_price"`

	// IndicativePrice is the size-weighted average price over the most
	// recent price-window fills, smoothing single-fill outliers.
	IndicativePrice decimal.Decimal `json:"indicative_price"`

	LastTradeTime time.Time `json:"last_trade_time"`
}
