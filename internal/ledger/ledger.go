// Package ledger folds ordered trade streams into per (trader, asset)
// positions: net size, weighted-average cost basis and realized PnL.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ctfradar/radar/internal/models"
)

// ErrOrderingViolation is returned when a trade arrives with a timestamp
// older than what its position has already applied, beyond the
// configured tolerance. Policy is reject, not re-sort: the caller
// decides whether to refetch in order, and a rejected trade leaves the
// position untouched so replays stay deterministic.
var ErrOrderingViolation = errors.New("ledger: trade is older than position state")

// Ledger owns every position. Safe for concurrent use; each Apply takes
// the write lock so per-key application is serialized.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]models.Position

	// tolerance is how far back a trade's timestamp may sit behind the
	// position's last applied timestamp before it is rejected. Zero
	// rejects any regression; equal timestamps always pass.
	tolerance time.Duration
}

func New(tolerance time.Duration) *Ledger {
	return &Ledger{
		positions: make(map[string]models.Position),
		tolerance: tolerance,
	}
}

func key(trader, assetID string) string {
	return trader + "|" + assetID
}

// Apply folds one trade into its position and returns the updated
// snapshot. It is a pure function of (previous state, trade): replaying
// the same ordered history from empty always reproduces the same
// positions, however often the fold is paused and resumed.
func (l *Ledger) Apply(trade models.Trade) (models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(trade.Trader, trade.AssetID)
	pos, ok := l.positions[k]
	if !ok {
		pos = models.Position{Trader: trade.Trader, AssetID: trade.AssetID}
	}
	if !pos.LastTradeTime.IsZero() && trade.Timestamp.Before(pos.LastTradeTime.Add(-l.tolerance)) {
		return pos, fmt.Errorf("%w: %s at %s behind %s",
			ErrOrderingViolation, k, trade.Timestamp.Format(time.RFC3339), pos.LastTradeTime.Format(time.RFC3339))
	}

	pos = Reduce(pos, trade)
	l.positions[k] = pos
	return pos, nil
}

// Reduce applies one trade to a position value using the
// weighted-average-cost rule. Exported for replay and testing; Apply is
// Reduce plus ordering enforcement and storage.
func Reduce(pos models.Position, trade models.Trade) models.Position {
	signed := trade.Size
	if trade.Side == models.SideSell {
		signed = signed.Neg()
	}

	switch {
	case pos.NetSize.IsZero() || pos.NetSize.Sign() == signed.Sign():
		// Opening or extending: fold the fill into the average cost.
		oldAbs := pos.NetSize.Abs()
		total := oldAbs.Add(trade.Size)
		pos.CostBasis = pos.CostBasis.Mul(oldAbs).Add(trade.Price.Mul(trade.Size)).Div(total)
		pos.NetSize = pos.NetSize.Add(signed)

	default:
		// Reducing: close min(size, |net|) at the old basis, realize
		// the difference, and re-open any remainder at the fill price.
		oldAbs := pos.NetSize.Abs()
		closed := decimal.Min(trade.Size, oldAbs)
		direction := decimal.NewFromInt(int64(pos.NetSize.Sign()))
		pnl := closed.Mul(trade.Price.Sub(pos.CostBasis)).Mul(direction)
		pos.RealizedPnL = pos.RealizedPnL.Add(pnl)

		remainder := trade.Size.Sub(closed)
		if remainder.Sign() > 0 {
			if signed.Sign() > 0 {
				pos.NetSize = remainder
			} else {
				pos.NetSize = remainder.Neg()
			}
			pos.CostBasis = trade.Price
		} else {
			pos.NetSize = pos.NetSize.Add(signed)
		}
	}

	pos.LastTradeTime = trade.Timestamp
	pos.TradeCount++
	return pos
}

// Get returns the position for a (trader, asset) pair. A missing entry
// means the pair never traded; flat positions are retained and found.
func (l *Ledger) Get(trader, assetID string) (models.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[key(trader, assetID)]
	return pos, ok
}

// Positions returns a snapshot of every position for a trader.
func (l *Ledger) Positions(trader string) []models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.Position
	for _, pos := range l.positions {
		if pos.Trader == trader {
			out = append(out, pos)
		}
	}
	return out
}

// Len returns the number of tracked (trader, asset) pairs.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}
