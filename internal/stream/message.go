// Package stream publishes normalized trades to Kafka for downstream
// consumers (the ingester and the API feed).
package stream

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/models"
)

// TradeMessage is the wire form of a Trade. Decimal fields travel as
// strings so no precision is lost between producer and consumer.
type TradeMessage struct {
	TradeID      string `json:"trade_id"`
	Timestamp    string `json:"timestamp"`
	Trader       string `json:"trader"`
	Counterparty string `json:"counterparty,omitempty"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Role         string `json:"role"`
	Size         string `json:"size"`
	Price        string `json:"price"`
	USDValue     string `json:"usd_value"`
	TxHash       string `json:"tx_hash,omitempty"`
	BlockNumber  uint64 `json:"block_number,omitempty"`
}

// FromTrade converts a domain trade into its wire form.
func FromTrade(t models.Trade) TradeMessage {
	return TradeMessage{
		TradeID:      t.TradeID,
		Timestamp:    t.Timestamp.UTC().Format(time.RFC3339),
		Trader:       t.Trader,
		Counterparty: t.Counterparty,
		AssetID:      t.AssetID,
		Side:         string(t.Side),
		Role:         string(t.Role),
		Size:         t.Size.String(),
		Price:        t.Price.String(),
		USDValue:     t.USDValue.String(),
		TxHash:       t.TxHash,
		BlockNumber:  t.BlockNumber,
	}
}

// ToTrade converts a wire message back into a domain trade.
func (m TradeMessage) ToTrade() (models.Trade, error) {
	ts, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return models.Trade{}, fmt.Errorf("invalid timestamp %q: %w", m.Timestamp, err)
	}
	size, err := decimal.NewFromString(m.Size)
	if err != nil {
		return models.Trade{}, fmt.Errorf("invalid size %q: %w", m.Size, err)
	}
	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return models.Trade{}, fmt.Errorf("invalid price %q: %w", m.Price, err)
	}
	usd, err := decimal.NewFromString(m.USDValue)
	if err != nil {
		return models.Trade{}, fmt.Errorf("invalid usd value %q: %w", m.USDValue, err)
	}

	return models.Trade{
		TradeID:      m.TradeID,
		Timestamp:    ts,
		Trader:       m.Trader,
		Counterparty: m.Counterparty,
		AssetID:      m.AssetID,
		Side:         models.Side(m.Side),
		Role:         models.Role(m.Role),
		Size:         size,
		Price:        price,
		USDValue:     usd,
		TxHash:       m.TxHash,
		BlockNumber:  m.BlockNumber,
	}, nil
}
