// Package orderbook reconstructs an indicative book for one asset from
// its recent fills. Every fill crossed a buyer and a seller at one
// price, so each fill deepens both a bid level and an ask level.
package orderbook

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/models"
)

// Level is the accumulated size traded at one price.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Count int64           `json:"count"`
}

// Book is a reconstructed snapshot for one asset. Bids are sorted best
// first (highest price), asks best first (lowest price).
type Book struct {
	AssetID      string          `json:"asset_id"`
	Bids         []Level         `json:"bids"`
	Asks         []Level         `json:"asks"`
	BestBid      decimal.Decimal `json:"best_bid"`
	BestAsk      decimal.Decimal `json:"best_ask"`
	MidPrice     decimal.Decimal `json:"mid_price"`
	SnapshotTime time.Time       `json:"snapshot_time"`
}

// Build folds fills into price levels. Fills for other assets are
// ignored, and each trade id counts once, so a window holding both
// counterparty perspectives of the same fill does not double its depth.
func Build(assetID string, fills []models.Trade) Book {
	book := Book{AssetID: assetID}

	levels := make(map[string]*Level)
	seen := make(map[string]struct{})
	for _, fill := range fills {
		if fill.AssetID != assetID {
			continue
		}
		if _, dup := seen[fill.TradeID]; dup {
			continue
		}
		seen[fill.TradeID] = struct{}{}

		key := fill.Price.String()
		lvl, ok := levels[key]
		if !ok {
			lvl = &Level{Price: fill.Price}
			levels[key] = lvl
		}
		lvl.Size = lvl.Size.Add(fill.Size)
		lvl.Count++
		if fill.Timestamp.After(book.SnapshotTime) {
			book.SnapshotTime = fill.Timestamp
		}
	}
	if len(levels) == 0 {
		return book
	}

	asks := make([]Level, 0, len(levels))
	for _, lvl := range levels {
		asks = append(asks, *lvl)
	}
	sort.Slice(asks, func(i, j int) bool {
		return asks[i].Price.Cmp(asks[j].Price) < 0
	})
	bids := make([]Level, len(asks))
	for i, lvl := range asks {
		bids[len(asks)-1-i] = lvl
	}

	book.Bids = bids
	book.Asks = asks
	book.BestBid = bids[0].Price
	book.BestAsk = asks[0].Price
	book.MidPrice = book.BestBid.Add(book.BestAsk).Div(decimal.NewFromInt(2))
	return book
}
