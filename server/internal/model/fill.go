package model

import "time"

type Fill struct {
	TradeID      string    `gorm:"column:trade_id;primaryKey" json:"trade_id"`
	Trader       string    `gorm:"column:trader;primaryKey" json:"trader"`
	Counterparty string    `gorm:"column:counterparty" json:"counterparty"`
	AssetID      string    `gorm:"column:asset_id" json:"asset_id"`
	Side         string    `gorm:"column:side" json:"side"`
	Role         string    `gorm:"column:role" json:"role"`
	Size         float64   `gorm:"column:size;type:Float64" json:"size"`
	Price        float64   `gorm:"column:price;type:Float64" json:"price"`
	USDValue     float64   `gorm:"column:usd_value;type:Float64" json:"usd_value"`
	TxHash       string    `gorm:"column:tx_hash" json:"tx_hash"`
	BlockNumber  uint64    `gorm:"column:block_number" json:"block_number"`
	EventTime    time.Time `gorm:"column:event_time" json:"event_time"`
	InsertedAt   time.Time `gorm:"column:inserted_at;default:now()" json:"inserted_at"`
}

func (Fill) TableName() string {
	return "fill"
}

func (Fill) TableOptions() string {
	return "ENGINE = ReplacingMergeTree() ORDER BY (trader, trade_id)"
}
