// Package copytrader turns applied fills into copy-trade intents.
package copytrader

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ctfradar/radar/internal/engine"
	"github.com/ctfradar/radar/internal/models"
)

// DefaultCopyAmountUSD caps the notional mirrored per fill.
var DefaultCopyAmountUSD = decimal.RequireFromString("0.001")

// Intent is one order a copy executor should place: the same side and
// asset as the source fill, resized to the configured notional.
type Intent struct {
	SourceTradeID string          `json:"source_trade_id"`
	SourceTrader  string          `json:"source_trader"`
	AssetID       string          `json:"asset_id"`
	Side          models.Side     `json:"side"`
	Size          decimal.Decimal `json:"size"`
	Price         decimal.Decimal `json:"price"`
	USDValue      decimal.Decimal `json:"usd_value"`

	// SourceNetSize is the source trader's position after the fill,
	// so the executor can tell adds from exits.
	SourceNetSize decimal.Decimal `json:"source_net_size"`
}

// BuildIntent sizes a copy order from one fill snapshot. The copy
// keeps the source's price and direction but spends at most
// copyAmountUSD; fills priced at zero produce no intent.
func BuildIntent(snap engine.FillSnapshot, copyAmountUSD decimal.Decimal) (Intent, bool) {
	if copyAmountUSD.Sign() <= 0 {
		copyAmountUSD = DefaultCopyAmountUSD
	}
	if snap.Trade.Price.Sign() <= 0 {
		return Intent{}, false
	}

	usd := decimal.Min(copyAmountUSD, snap.Trade.USDValue)
	size := usd.Div(snap.Trade.Price)
	if size.Sign() <= 0 {
		return Intent{}, false
	}

	return Intent{
		SourceTradeID: snap.Trade.TradeID,
		SourceTrader:  snap.Trade.Trader,
		AssetID:       snap.Trade.AssetID,
		Side:          snap.Trade.Side,
		Size:          size,
		Price:         snap.Trade.Price,
		USDValue:      usd,
		SourceNetSize: snap.Position.NetSize,
	}, true
}

// LogTrader is the dry-run copy trader: it logs the intent it would
// have executed and does nothing else.
type LogTrader struct {
	Logger        *logrus.Logger
	CopyAmountUSD decimal.Decimal
}

func NewLogTrader(logger *logrus.Logger, copyAmountUSD decimal.Decimal) *LogTrader {
	return &LogTrader{Logger: logger, CopyAmountUSD: copyAmountUSD}
}

func (l *LogTrader) OnFill(_ context.Context, snap engine.FillSnapshot) error {
	intent, ok := BuildIntent(snap, l.CopyAmountUSD)
	if !ok {
		return nil
	}
	l.Logger.WithFields(logrus.Fields{
		"source_trader": intent.SourceTrader,
		"asset_id":      intent.AssetID,
		"side":          intent.Side,
		"size":          intent.Size.String(),
		"price":         intent.Price.String(),
		"usd":           intent.USDValue.String(),
	}).Info("Copy trade intent (dry run)")
	return nil
}
