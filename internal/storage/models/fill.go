// Package models defines the row formats persisted to ClickHouse.
package models

import "time"

// Fill is a single fill record in the ClickHouse database. Decimal
// precision is already settled upstream; rows carry float64 because
// ClickHouse analytics run on Float64 columns.
type Fill struct {
	// TradeID uniquely identifies the fill, txhash-logindex or a
	// content hash when no transaction hash was available.
	TradeID string `json:"trade_id" gorm:"column:trade_id"`

	// Trader is the wallet this row is attributed to.
	Trader string `json:"trader" gorm:"column:trader"`

	// Counterparty is the wallet on the other side of the fill.
	Counterparty string `json:"counterparty" gorm:"column:counterparty"`

	// AssetID is the outcome token identifier.
	AssetID string `json:"asset_id" gorm:"column:asset_id"`

	// Side is "buy" or "sell" from the trader's point of view.
	Side string `json:"side" gorm:"column:side"`

	// Role is "maker" or "taker".
	Role string `json:"role" gorm:"column:role"`

	// Size is the outcome token quantity.
	Size float64 `json:"size" gorm:"column:size"`

	// Price is USD per token.
	Price float64 `json:"price" gorm:"column:price"`

	// USDValue is the notional in USD (Size * Price).
	USDValue float64 `json:"usd_value" gorm:"column:usd_value"`

	// TxHash is the transaction that emitted the event.
	TxHash string `json:"tx_hash" gorm:"column:tx_hash"`

	// BlockNumber is the block that contained the transaction.
	BlockNumber uint64 `json:"block_number" gorm:"column:block_number"`

	// EventTime is the block timestamp of the fill.
	EventTime time.Time `json:"event_time" gorm:"column:event_time"`

	// InsertedAt is when the row was written to the database.
	InsertedAt time.Time `json:"inserted_at" gorm:"column:inserted_at"`
}

// TableName maps the model to the fill table for gorm readers.
func (Fill) TableName() string {
	return "fill"
}
