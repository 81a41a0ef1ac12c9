package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ctfradar/radar/internal/ledger"
	"github.com/ctfradar/radar/internal/models"
	"github.com/ctfradar/radar/internal/normalizer"
)

const (
	makerAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	takerAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	assetID   = "52114319501245915516055106046884209969926127482827954674443846427813813222426"
)

type eventParams struct {
	txHash      string
	logIndex    uint64
	blockTime   string
	makerAsset  string
	takerAsset  string
	makerAmount string
	takerAmount string
}

func fillEvent(p eventParams) models.RawEvent {
	if p.txHash == "" {
		p.txHash = "0xdead00000000000000000000000000000000000000000000000000000000beef"
	}
	if p.blockTime == "" {
		p.blockTime = "2024-05-01T12:00:00Z"
	}
	if p.makerAsset == "" {
		p.makerAsset = "0"
	}
	if p.takerAsset == "" {
		p.takerAsset = assetID
	}
	if p.makerAmount == "" {
		p.makerAmount = "20000000"
	}
	if p.takerAmount == "" {
		p.takerAmount = "10000000"
	}
	return models.RawEvent{
		Block:       models.RawBlock{Time: p.blockTime, Number: 55123001},
		Transaction: models.RawTransaction{Hash: p.txHash},
		Log:         models.RawLog{Index: p.logIndex},
		Arguments: []models.RawArgument{
			{Name: "maker", Value: map[string]any{"address": makerAddr}},
			{Name: "taker", Value: map[string]any{"address": takerAddr}},
			{Name: "makerAssetId", Value: map[string]any{"bigInteger": p.makerAsset}},
			{Name: "takerAssetId", Value: map[string]any{"bigInteger": p.takerAsset}},
			{Name: "makerAmountFilled", Value: map[string]any{"bigInteger": p.makerAmount}},
			{Name: "takerAmountFilled", Value: map[string]any{"bigInteger": p.takerAmount}},
		},
	}
}

func newTestEngine(cfg Config) (*Engine, *test.Hook) {
	log, hook := test.NewNullLogger()
	return New(cfg, log), hook
}

func TestEngineProcessRawAppliesFill(t *testing.T) {
	eng, _ := newTestEngine(Config{RecentFillsDepth: 10, PriceWindow: 5})

	applied, err := eng.ProcessRaw(context.Background(), fillEvent(eventParams{}))
	if err != nil {
		t.Fatalf("ProcessRaw: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("applied %d trades, want 1", len(applied))
	}

	pos, ok := eng.Position(makerAddr, assetID)
	if !ok {
		t.Fatal("expected a position for the buyer")
	}
	if !pos.NetSize.Equal(decimal.RequireFromString("10")) {
		t.Errorf("net size = %s, want 10", pos.NetSize)
	}
	if !pos.CostBasis.Equal(decimal.RequireFromString("2")) {
		t.Errorf("cost basis = %s, want 2", pos.CostBasis)
	}

	sum, ok := eng.TraderSummary(makerAddr)
	if !ok {
		t.Fatal("expected a trader summary")
	}
	if !sum.TotalVolumeUSD.Equal(decimal.RequireFromString("20")) {
		t.Errorf("volume = %s, want 20", sum.TotalVolumeUSD)
	}

	if got := eng.Stats(); got.Processed != 1 {
		t.Errorf("stats = %+v, want 1 processed", got)
	}
}

func TestEngineScenario(t *testing.T) {
	eng, _ := newTestEngine(Config{RecentFillsDepth: 10, PriceWindow: 5})
	ctx := context.Background()

	// Buy 10 @ 2, then sell 4 @ 3, from the same wallet.
	if _, err := eng.ProcessRaw(ctx, fillEvent(eventParams{logIndex: 1})); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	sell := fillEvent(eventParams{
		logIndex:    2,
		blockTime:   "2024-05-01T12:05:00Z",
		makerAsset:  assetID,
		takerAsset:  "0",
		makerAmount: "4000000",
		takerAmount: "12000000",
	})
	if _, err := eng.ProcessRaw(ctx, sell); err != nil {
		t.Fatalf("second fill: %v", err)
	}

	pos, _ := eng.Position(makerAddr, assetID)
	if !pos.NetSize.Equal(decimal.RequireFromString("6")) {
		t.Errorf("net size = %s, want 6", pos.NetSize)
	}
	if !pos.RealizedPnL.Equal(decimal.RequireFromString("4")) {
		t.Errorf("realized pnl = %s, want 4", pos.RealizedPnL)
	}

	sum, _ := eng.TraderSummary(makerAddr)
	if !sum.TotalVolumeUSD.Equal(decimal.RequireFromString("32")) {
		t.Errorf("volume = %s, want 32", sum.TotalVolumeUSD)
	}
	if sum.TradeCount != 2 {
		t.Errorf("trade count = %d, want 2", sum.TradeCount)
	}

	asset, _ := eng.AssetSummary(assetID)
	if !asset.LastPrice.Equal(decimal.RequireFromString("3")) {
		t.Errorf("last price = %s, want 3", asset.LastPrice)
	}
	// (10*2 + 4*3) / 14
	wantIndicative := decimal.RequireFromString("32").Div(decimal.RequireFromString("14"))
	if !asset.IndicativePrice.Equal(wantIndicative) {
		t.Errorf("indicative price = %s, want %s", asset.IndicativePrice, wantIndicative)
	}

	top := eng.TopTraders(5)
	if len(top) == 0 || top[0].ID != makerAddr {
		t.Errorf("unexpected leaderboard: %+v", top)
	}
}

func TestEngineMalformedRecordSkipped(t *testing.T) {
	eng, hook := newTestEngine(Config{})
	ctx := context.Background()

	bad := fillEvent(eventParams{logIndex: 1})
	bad.Arguments = bad.Arguments[:2] // drop asset ids and amounts
	if _, err := eng.ProcessRaw(ctx, bad); err == nil {
		t.Fatal("expected an error for a malformed record")
	}

	// The stream continues past the bad record.
	if _, err := eng.ProcessRaw(ctx, fillEvent(eventParams{logIndex: 2})); err != nil {
		t.Fatalf("good record after bad one: %v", err)
	}

	stats := eng.Stats()
	if stats.Skipped != 1 || stats.Processed != 1 {
		t.Errorf("stats = %+v, want 1 skipped and 1 processed", stats)
	}
	if len(hook.Entries) == 0 {
		t.Error("expected a warning log for the skipped record")
	}
}

func TestEngineDeduplicatesReplays(t *testing.T) {
	eng, _ := newTestEngine(Config{})
	ctx := context.Background()

	ev := fillEvent(eventParams{logIndex: 7})
	for i := 0; i < 3; i++ {
		if _, err := eng.ProcessRaw(ctx, ev); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}

	stats := eng.Stats()
	if stats.Processed != 1 || stats.Duplicates != 2 {
		t.Errorf("stats = %+v, want 1 processed and 2 duplicates", stats)
	}
	sum, _ := eng.TraderSummary(makerAddr)
	if sum.TradeCount != 1 {
		t.Errorf("trade count = %d, want 1", sum.TradeCount)
	}
}

func TestEngineOrderingViolationCounted(t *testing.T) {
	eng, _ := newTestEngine(Config{})
	ctx := context.Background()

	if _, err := eng.ProcessRaw(ctx, fillEvent(eventParams{logIndex: 1})); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	stale := fillEvent(eventParams{logIndex: 2, blockTime: "2024-05-01T11:00:00Z"})
	if _, err := eng.ProcessRaw(ctx, stale); err == nil {
		t.Fatal("expected ordering violation")
	}

	stats := eng.Stats()
	if stats.OrderingViolations != 1 {
		t.Errorf("stats = %+v, want 1 ordering violation", stats)
	}
	pos, _ := eng.Position(makerAddr, assetID)
	if pos.TradeCount != 1 {
		t.Errorf("position trade count = %d, want 1", pos.TradeCount)
	}
}

func TestEngineWatchlist(t *testing.T) {
	eng, _ := newTestEngine(Config{Watch: []string{makerAddr, takerAddr, "0xcccccccccccccccccccccccccccccccccccccccc"}})
	ctx := context.Background()

	applied, err := eng.ProcessRaw(ctx, fillEvent(eventParams{}))
	if err != nil {
		t.Fatalf("ProcessRaw: %v", err)
	}
	// One trade per watched counterparty; the stranger is skipped
	// without counting against the stream.
	if len(applied) != 2 {
		t.Fatalf("applied %d trades, want 2", len(applied))
	}
	stats := eng.Stats()
	if stats.Processed != 2 || stats.Skipped != 0 {
		t.Errorf("stats = %+v, want 2 processed and 0 skipped", stats)
	}

	buyerPos, _ := eng.Position(makerAddr, assetID)
	if !buyerPos.NetSize.Equal(decimal.RequireFromString("10")) {
		t.Errorf("buyer net size = %s, want 10", buyerPos.NetSize)
	}
	sellerPos, _ := eng.Position(takerAddr, assetID)
	if !sellerPos.NetSize.Equal(decimal.RequireFromString("-10")) {
		t.Errorf("seller net size = %s, want -10", sellerPos.NetSize)
	}
}

func TestEngineRejectsInvalidTrade(t *testing.T) {
	cases := []struct {
		name  string
		size  string
		price string
	}{
		{"zero size", "0", "2"},
		{"negative size", "-3", "2"},
		{"negative price", "4", "-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng, hook := newTestEngine(Config{})

			// Wire messages bypass the normalizer, so a malformed
			// consumer payload reaches ProcessTrade directly.
			trade := models.Trade{
				TradeID:  "0xfeed-0",
				Trader:   makerAddr,
				AssetID:  assetID,
				Side:     models.SideBuy,
				Role:     models.RoleMaker,
				Size:     decimal.RequireFromString(tc.size),
				Price:    decimal.RequireFromString(tc.price),
				USDValue: decimal.Zero,
			}
			if err := eng.ProcessTrade(context.Background(), trade); !errors.Is(err, ErrInvalidTrade) {
				t.Fatalf("err = %v, want ErrInvalidTrade", err)
			}
			if _, ok := eng.Position(makerAddr, assetID); ok {
				t.Error("rejected trade must leave no position")
			}
			stats := eng.Stats()
			if stats.Skipped != 1 || stats.Processed != 0 {
				t.Errorf("stats = %+v, want 1 skipped and 0 processed", stats)
			}
			if len(hook.Entries) == 0 {
				t.Error("expected a warning log for the rejected trade")
			}

			// The same trade id with valid amounts still applies.
			trade.Size = decimal.RequireFromString("10")
			trade.Price = decimal.RequireFromString("2")
			trade.USDValue = decimal.RequireFromString("20")
			if err := eng.ProcessTrade(context.Background(), trade); err != nil {
				t.Fatalf("valid retry: %v", err)
			}
			if eng.Stats().Processed != 1 {
				t.Error("valid retry must count as processed")
			}
		})
	}
}

func TestEngineWatchlistOrderingViolationIsolated(t *testing.T) {
	const stranger = "0xcccccccccccccccccccccccccccccccccccccccc"
	eng, _ := newTestEngine(Config{Watch: []string{makerAddr, takerAddr}})
	ctx := context.Background()

	// The maker trades with an unwatched wallet first, advancing only
	// the maker's position clock.
	first := fillEvent(eventParams{logIndex: 1})
	first.Arguments[1] = models.RawArgument{Name: "taker", Value: map[string]any{"address": stranger}}
	if _, err := eng.ProcessRaw(ctx, first); err != nil {
		t.Fatalf("first fill: %v", err)
	}

	// An earlier fill between maker and taker is stale for the maker
	// but fresh for the taker.
	stale := fillEvent(eventParams{logIndex: 2, blockTime: "2024-05-01T11:00:00Z"})
	applied, err := eng.ProcessRaw(ctx, stale)
	if !errors.Is(err, ledger.ErrOrderingViolation) {
		t.Fatalf("err = %v, want ErrOrderingViolation", err)
	}
	if len(applied) != 1 || applied[0].Trader != takerAddr {
		t.Fatalf("applied = %+v, want the taker's leg only", applied)
	}

	pos, ok := eng.Position(takerAddr, assetID)
	if !ok {
		t.Fatal("expected a position for the taker")
	}
	if !pos.NetSize.Equal(decimal.RequireFromString("-10")) {
		t.Errorf("taker net size = %s, want -10", pos.NetSize)
	}
	stats := eng.Stats()
	if stats.OrderingViolations != 1 || stats.Processed != 2 {
		t.Errorf("stats = %+v, want 1 ordering violation and 2 processed", stats)
	}
}

func TestEngineOrderBook(t *testing.T) {
	eng, _ := newTestEngine(Config{RecentFillsDepth: 10, PriceWindow: 5})
	ctx := context.Background()

	// Buy 10 @ 2, then 4 @ 3.
	if _, err := eng.ProcessRaw(ctx, fillEvent(eventParams{logIndex: 1})); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	second := fillEvent(eventParams{
		logIndex:    2,
		blockTime:   "2024-05-01T12:05:00Z",
		makerAmount: "12000000",
		takerAmount: "4000000",
	})
	if _, err := eng.ProcessRaw(ctx, second); err != nil {
		t.Fatalf("second fill: %v", err)
	}

	book := eng.OrderBook(assetID)
	if len(book.Asks) != 2 {
		t.Fatalf("got %d levels, want 2", len(book.Asks))
	}
	if !book.BestAsk.Equal(decimal.RequireFromString("2")) {
		t.Errorf("best ask = %s, want 2", book.BestAsk)
	}
	if !book.BestBid.Equal(decimal.RequireFromString("3")) {
		t.Errorf("best bid = %s, want 3", book.BestBid)
	}
	if !book.Asks[0].Size.Equal(decimal.RequireFromString("10")) {
		t.Errorf("depth at 2 = %s, want 10", book.Asks[0].Size)
	}
}

type recordingCopier struct {
	snaps []FillSnapshot
	err   error
}

func (r *recordingCopier) OnFill(_ context.Context, snap FillSnapshot) error {
	r.snaps = append(r.snaps, snap)
	return r.err
}

func TestEngineCopyTraderHook(t *testing.T) {
	eng, _ := newTestEngine(Config{})
	copier := &recordingCopier{}
	eng.SetCopyTrader(copier)

	if _, err := eng.ProcessRaw(context.Background(), fillEvent(eventParams{})); err != nil {
		t.Fatalf("ProcessRaw: %v", err)
	}
	if len(copier.snaps) != 1 {
		t.Fatalf("hook saw %d fills, want 1", len(copier.snaps))
	}
	snap := copier.snaps[0]
	if snap.Trade.Trader != makerAddr {
		t.Errorf("hook trader = %s, want %s", snap.Trade.Trader, makerAddr)
	}
	if !snap.Position.NetSize.Equal(decimal.RequireFromString("10")) {
		t.Errorf("hook position net = %s, want 10", snap.Position.NetSize)
	}
}

func TestEngineCopyTraderErrorNotFatal(t *testing.T) {
	eng, hook := newTestEngine(Config{})
	eng.SetCopyTrader(&recordingCopier{err: errors.New("broker down")})

	if _, err := eng.ProcessRaw(context.Background(), fillEvent(eventParams{})); err != nil {
		t.Fatalf("hook error must not fail the pipeline: %v", err)
	}
	if eng.Stats().Processed != 1 {
		t.Error("fill must still count as processed")
	}

	var sawError bool
	for _, entry := range hook.Entries {
		if entry.Level == logrus.ErrorLevel {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error log from the failed hook")
	}
}

func TestEngineRecentFills(t *testing.T) {
	eng, _ := newTestEngine(Config{RecentFillsDepth: 2})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		ev := fillEvent(eventParams{
			logIndex:  uint64(i),
			blockTime: fmt.Sprintf("2024-05-01T12:0%d:00Z", i),
		})
		if _, err := eng.ProcessRaw(ctx, ev); err != nil {
			t.Fatalf("fill %d: %v", i, err)
		}
	}

	fills := eng.RecentFills(makerAddr, 10)
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	if !fills[0].Timestamp.After(fills[1].Timestamp) {
		t.Error("fills must be newest first")
	}
}

func TestEngineScaleOverride(t *testing.T) {
	scales := normalizer.DefaultScales()
	scales.SetTokenDecimals(assetID, 18)
	eng, _ := newTestEngine(Config{Scales: scales})

	ev := fillEvent(eventParams{takerAmount: "5000000000000000000"})
	if _, err := eng.ProcessRaw(context.Background(), ev); err != nil {
		t.Fatalf("ProcessRaw: %v", err)
	}
	pos, _ := eng.Position(makerAddr, assetID)
	if !pos.NetSize.Equal(decimal.RequireFromString("5")) {
		t.Errorf("net size = %s, want 5", pos.NetSize)
	}
}
