// Package engine wires the normalizer, the position ledger and the
// aggregators into one fill-processing pipeline with a query surface
// on top.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ctfradar/radar/internal/aggregator"
	"github.com/ctfradar/radar/internal/leaderboard"
	"github.com/ctfradar/radar/internal/ledger"
	"github.com/ctfradar/radar/internal/models"
	"github.com/ctfradar/radar/internal/normalizer"
	"github.com/ctfradar/radar/internal/orderbook"
)

// FillSnapshot is what a copy trader sees after a fill is applied: the
// trade itself and the trader's resulting position in that asset.
type FillSnapshot struct {
	Trade    models.Trade
	Position models.Position
}

// CopyTrader receives every successfully applied fill. Implementations
// decide whether and how to mirror it; errors are logged, never fatal
// to the pipeline.
type CopyTrader interface {
	OnFill(ctx context.Context, snap FillSnapshot) error
}

// ErrInvalidTrade marks a trade whose size or price is outside the
// domain the normalizer produces. Trades arriving over the wire skip
// the normalizer, so the pipeline checks again before folding.
var ErrInvalidTrade = errors.New("invalid trade")

// Stats counts pipeline outcomes since the engine started.
type Stats struct {
	Processed          int64 `json:"processed"`
	Skipped            int64 `json:"skipped"`
	Duplicates         int64 `json:"duplicates"`
	OrderingViolations int64 `json:"ordering_violations"`
}

// Config sizes the engine's retention windows.
type Config struct {
	// RecentFillsDepth bounds the per-trader recent fill window.
	// Zero disables retention, negative selects the default.
	RecentFillsDepth int

	// PriceWindow bounds the per-asset indicative price window.
	// Zero disables the price, negative selects the default.
	PriceWindow int

	// OrderingTolerance is how far a fill's timestamp may lag the
	// trader-asset pair's latest before being rejected.
	OrderingTolerance time.Duration

	// Watch is the set of wallet addresses raw events are attributed
	// to. Empty tracks the outcome-token buyer of every fill.
	Watch []string

	// Scales resolves per-token decimal exponents. Nil uses defaults.
	Scales *normalizer.ScaleRegistry
}

// Engine is the in-memory fill pipeline. All methods are safe for
// concurrent use.
type Engine struct {
	log     *logrus.Logger
	watch   []string
	scales  *normalizer.ScaleRegistry
	ledger  *ledger.Ledger
	traders *aggregator.TraderAggregator
	assets  *aggregator.AssetAggregator
	copier  CopyTrader

	mu    sync.Mutex
	seen  map[string]struct{}
	stats Stats
}

// New creates an engine with the given retention configuration.
func New(cfg Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		log:     log,
		watch:   cfg.Watch,
		scales:  cfg.Scales,
		ledger:  ledger.New(cfg.OrderingTolerance),
		traders: aggregator.NewTraderAggregator(cfg.RecentFillsDepth),
		assets:  aggregator.NewAssetAggregator(cfg.PriceWindow, cfg.RecentFillsDepth),
		seen:    make(map[string]struct{}),
	}
}

// SetCopyTrader installs the hook called after every applied fill.
// Must be set before processing starts.
func (e *Engine) SetCopyTrader(c CopyTrader) {
	e.copier = c
}

// ProcessRaw normalizes one raw event and applies the resulting trades.
// With a watchlist the event is viewed from each watched wallet in
// turn; wallets that are not a counterparty of the fill are skipped
// without counting against the stream. It returns the trades that were
// applied.
func (e *Engine) ProcessRaw(ctx context.Context, ev models.RawEvent) ([]models.Trade, error) {
	perspectives := e.watch
	if len(perspectives) == 0 {
		perspectives = []string{""}
	}

	var applied []models.Trade
	var firstErr error
	for _, p := range perspectives {
		trade, err := normalizer.Normalize(ev, normalizer.Options{Perspective: p, Scales: e.scales})
		if errors.Is(err, normalizer.ErrNotParticipant) {
			continue
		}
		if err != nil {
			e.mu.Lock()
			e.stats.Skipped++
			e.mu.Unlock()
			e.log.WithError(err).WithField("tx", ev.Transaction.Hash).Warn("skipping malformed fill record")
			return applied, err
		}
		if err := e.ProcessTrade(ctx, trade); err != nil {
			if errors.Is(err, ledger.ErrOrderingViolation) {
				// Each counterparty's position is an independent key;
				// a stale leg for one does not invalidate the others.
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			return applied, err
		}
		applied = append(applied, trade)
	}
	return applied, firstErr
}

// ProcessTrade applies one canonical trade: ledger first, then the
// aggregators, so a rejected trade leaves no partial state. Replayed
// trade ids are dropped silently.
func (e *Engine) ProcessTrade(ctx context.Context, trade models.Trade) error {
	if trade.Size.Sign() <= 0 || trade.Price.Sign() < 0 {
		e.mu.Lock()
		e.stats.Skipped++
		e.mu.Unlock()
		e.log.WithFields(logrus.Fields{
			"trade_id": trade.TradeID,
			"size":     trade.Size,
			"price":    trade.Price,
		}).Warn("skipping fill with invalid size or price")
		return fmt.Errorf("%w: size %s, price %s", ErrInvalidTrade, trade.Size, trade.Price)
	}

	key := trade.TradeID + "|" + trade.Trader

	e.mu.Lock()
	if _, dup := e.seen[key]; dup {
		e.stats.Duplicates++
		e.mu.Unlock()
		return nil
	}
	e.seen[key] = struct{}{}
	e.mu.Unlock()

	pos, err := e.ledger.Apply(trade)
	if errors.Is(err, ledger.ErrOrderingViolation) {
		// Forget the id so an in-order refetch of the same fill can
		// still apply.
		e.mu.Lock()
		delete(e.seen, key)
		e.stats.OrderingViolations++
		e.mu.Unlock()
		e.log.WithFields(logrus.Fields{
			"trade_id": trade.TradeID,
			"trader":   trade.Trader,
		}).Warn("rejecting out-of-order fill")
		return err
	}
	if err != nil {
		return err
	}

	e.traders.Record(trade)
	e.assets.Record(trade)

	e.mu.Lock()
	e.stats.Processed++
	e.mu.Unlock()

	if e.copier != nil {
		if err := e.copier.OnFill(ctx, FillSnapshot{Trade: trade, Position: pos}); err != nil {
			e.log.WithError(err).WithField("trade_id", trade.TradeID).Error("copy trade hook failed")
		}
	}
	return nil
}

// Stats returns a snapshot of the pipeline counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Position returns the trader's position in one asset.
func (e *Engine) Position(trader, assetID string) (models.Position, bool) {
	return e.ledger.Get(trader, assetID)
}

// Positions returns every position held by a trader.
func (e *Engine) Positions(trader string) []models.Position {
	return e.ledger.Positions(trader)
}

// TraderSummary returns the running summary for one trader.
func (e *Engine) TraderSummary(trader string) (models.TraderSummary, bool) {
	return e.traders.Summary(trader)
}

// AssetSummary returns the running summary for one asset.
func (e *Engine) AssetSummary(assetID string) (models.AssetSummary, bool) {
	return e.assets.Summary(assetID)
}

// OrderBook reconstructs an indicative book from the asset's retained
// recent fills.
func (e *Engine) OrderBook(assetID string) orderbook.Book {
	return orderbook.Build(assetID, e.assets.Fills(assetID))
}

// RecentFills returns up to limit of a trader's latest fills, newest
// first.
func (e *Engine) RecentFills(trader string, limit int) []models.Trade {
	return e.traders.RecentFills(trader, limit)
}

// TopTraders ranks traders by total USD volume.
func (e *Engine) TopTraders(n int) []leaderboard.Entry {
	return leaderboard.TopTraders(e.traders.Snapshot(), n)
}

// TopAssets ranks assets by total USD volume.
func (e *Engine) TopAssets(n int) []leaderboard.Entry {
	return leaderboard.TopAssets(e.assets.Snapshot(), n)
}
