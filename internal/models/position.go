package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the running exposure of one trader in one asset. It is
// created on the first fill touching the (trader, asset) pair and never
// deleted: a zero NetSize means "traded flat", which is distinct from
// "never traded".
type Position struct {
	Trader  string `json:"trader"`
	AssetID string `json:"asset_id"`

	// NetSize is the signed open quantity; positive means net long.
	NetSize decimal.Decimal `json:"net_size"`

	// CostBasis is the volume-weighted average entry price of the
	// currently open exposure. Meaningful only while NetSize != 0;
	// it keeps its last value while flat.
	CostBasis decimal.Decimal `json:"cost_basis"`

	// RealizedPnL accumulates profit locked in by size-reducing fills,
	// using the weighted-average-cost rule.
	RealizedPnL decimal.Decimal `json:"realized_pnl"`

	LastTradeTime time.Time `json:"last_trade_time"`

	// TradeCount is the number of fills applied to this position.
	TradeCount int64 `json:"trade_count"`
}

// Flat reports whether the position currently has no open exposure.
func (p Position) Flat() bool {
	return p.NetSize.IsZero()
}
