// Package models defines the domain models used across the application.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the trade direction relative to the trade's trader.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Role records which leg of the matched order the trader was on.
type Role string

const (
	RoleMaker Role = "maker"
	RoleTaker Role = "taker"
)

// Trade is the canonical record produced by the normalizer from a raw
// OrderFilled event. It is immutable once constructed: every aggregate
// in the system is derived by folding Trades, nothing mutates one.
type Trade struct {
	// TradeID uniquely identifies this fill: transaction hash plus log
	// index when both are present, otherwise a content hash.
	TradeID string `json:"trade_id"`

	// Timestamp is the block time of the fill. Within a correctly
	// ordered feed it is non-decreasing, but ties are possible.
	Timestamp time.Time `json:"timestamp"`

	// Trader is the normalized lowercase hex address the trade is
	// attributed to. The same raw event normalizes to a different
	// Trade per counterparty perspective.
	Trader string `json:"trader"`

	// Counterparty is the other leg's address, when known.
	Counterparty string `json:"counterparty,omitempty"`

	// AssetID is the outcome token identifier (decimal or hex string,
	// normalized lowercase).
	AssetID string `json:"asset_id"`

	// Side is buy/sell relative to Trader.
	Side Side `json:"side"`

	// Role is maker/taker relative to Trader.
	Role Role `json:"role"`

	// Size is the outcome token quantity in asset-native units, after
	// decimal scaling. Always positive.
	Size decimal.Decimal `json:"size"`

	// Price is the unit price in USDC.
	Price decimal.Decimal `json:"price"`

	// USDValue is the collateral leg of the fill, stored once at
	// normalization time so aggregation never re-derives it.
	USDValue decimal.Decimal `json:"usd_value"`

	// TxHash and BlockNumber locate the fill on chain.
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}
