package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ctfradar/radar/configs"
	"github.com/ctfradar/radar/internal/copytrader"
	"github.com/ctfradar/radar/internal/engine"
	"github.com/ctfradar/radar/internal/feed"
	"github.com/ctfradar/radar/internal/markets"
	"github.com/ctfradar/radar/internal/models"
	"github.com/ctfradar/radar/internal/stream"
)

// validModes lists all supported tracker commands.
var validModes = []string{"monitor", "fills", "summary", "price", "book", "top", "question"}

func main() {
	var (
		mode      string
		address   string
		assetID   string
		condition string
		limit     int
		topN      int
		hours     int
		publish   bool
		follow    bool
	)

	flag.StringVar(&mode, "mode", "", "Command to run: monitor, fills, summary, price, book, top, question (required)")
	flag.StringVar(&address, "address", "", "Trader wallet address")
	flag.StringVar(&assetID, "asset", "", "Outcome token asset ID")
	flag.StringVar(&condition, "condition", "", "Condition ID for question lookup")
	flag.IntVar(&limit, "limit", 20, "Number of fills to fetch")
	flag.IntVar(&topN, "top", 20, "Number of leaderboard rows to display")
	flag.IntVar(&hours, "hours", 0, "Only fetch fills newer than this many hours")
	flag.BoolVar(&publish, "publish", false, "Publish applied fills to Kafka")
	flag.BoolVar(&follow, "follow", false, "Keep streaming new fills over websocket")
	flag.Parse()

	if mode == "" {
		fmt.Fprintf(os.Stderr, "Error: -mode flag is required\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -mode <name>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nAvailable modes:\n")
		for _, m := range validModes {
			fmt.Fprintf(os.Stderr, "  - %s\n", m)
		}
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -mode monitor -address 0xabc... -limit 50\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -mode top -limit 2000 -top 20\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -mode price -asset 521143...\n", os.Args[0])
		os.Exit(1)
	}

	cfg := configs.AppLoad()
	logger := newLogger()

	clientConfig := feed.DefaultClientConfig(cfg.Feed.Token)
	clientConfig.URL = cfg.Feed.APIURL
	clientConfig.Network = cfg.Feed.Network
	clientConfig.Dataset = cfg.Feed.Dataset
	clientConfig.RequestsPerSecond = cfg.Feed.RequestsPerSecond
	client := feed.NewClient(clientConfig, slog.Default())

	app := &tracker{
		cfg:    cfg,
		logger: logger,
		client: client,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch mode {
	case "monitor":
		err = app.monitor(ctx, address, limit, hours, publish, follow)
	case "fills":
		err = app.fills(ctx, assetID, limit, hours)
	case "summary":
		err = app.summary(ctx, address, limit, hours)
	case "price":
		err = app.price(ctx, assetID, limit, hours)
	case "book":
		err = app.book(ctx, assetID, limit, hours)
	case "top":
		err = app.top(ctx, limit, hours, topN)
	case "question":
		err = app.question(ctx, condition)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q\n", mode)
		os.Exit(1)
	}
	if err != nil {
		logger.Errorf("Command failed: %v", err)
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

type tracker struct {
	cfg    *configs.AppConfig
	logger *logrus.Logger
	client *feed.Client
}

// newEngine builds an engine from the configured knobs, optionally
// narrowed to one watched wallet.
func (t *tracker) newEngine(watch ...string) *engine.Engine {
	if len(watch) == 0 {
		watch = t.cfg.Engine.Watch
	}
	return engine.New(engine.Config{
		RecentFillsDepth:  t.cfg.Engine.RecentFillsDepth,
		PriceWindow:       t.cfg.Engine.PriceWindow,
		OrderingTolerance: time.Duration(t.cfg.Engine.OrderingToleranceSeconds) * time.Second,
		Watch:             watch,
	}, t.logger)
}

// replay feeds fetched events through the engine oldest first, so the
// ledger sees them in chain order. It returns every applied trade in
// application order.
func replay(ctx context.Context, eng *engine.Engine, events []models.RawEvent) []models.Trade {
	var applied []models.Trade
	for i := len(events) - 1; i >= 0; i-- {
		// Malformed and out-of-order records are counted by the
		// engine; the replay keeps going.
		trades, _ := eng.ProcessRaw(ctx, events[i])
		applied = append(applied, trades...)
	}
	return applied
}

// monitor tracks one wallet: replays its recent fills, prints the
// resulting positions and optionally follows the live stream.
func (t *tracker) monitor(ctx context.Context, address string, limit, hours int, publish, follow bool) error {
	if address == "" {
		return fmt.Errorf("-address is required for monitor")
	}

	eng := t.newEngine(address)

	if publish {
		producer, err := stream.NewProducer(t.cfg.KafkaFill.Broker, t.cfg.KafkaFill.Topic, t.logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		eng.SetCopyTrader(&publishingTrader{producer: producer})
	} else {
		eng.SetCopyTrader(copytrader.NewLogTrader(t.logger, copytrader.DefaultCopyAmountUSD))
	}

	events, err := t.client.RecentFills(ctx, feed.FillQuery{Trader: address, Limit: limit, SinceHours: hours})
	if err != nil {
		return err
	}
	replay(ctx, eng, events)

	t.printPositions(eng, address)
	t.printStats(eng)

	if !follow {
		return nil
	}

	streamConfig := feed.DefaultStreamConfig(t.cfg.Feed.Token)
	streamConfig.URL = t.cfg.Feed.StreamURL
	streamConfig.Network = t.cfg.Feed.Network
	worker := feed.NewStreamWorker(streamConfig, t.logger, func(events []models.RawEvent) error {
		for _, ev := range events {
			if _, err := eng.ProcessRaw(ctx, ev); err != nil {
				continue
			}
		}
		return nil
	})
	worker.Run(ctx)

	t.printPositions(eng, address)
	t.printStats(eng)
	return nil
}

// fills lists recent fills, optionally narrowed to one asset.
func (t *tracker) fills(ctx context.Context, assetID string, limit, hours int) error {
	eng := t.newEngine()
	events, err := t.client.RecentFills(ctx, feed.FillQuery{AssetID: assetID, Limit: limit, SinceHours: hours})
	if err != nil {
		return err
	}
	applied := replay(ctx, eng, events)
	sort.Slice(applied, func(i, j int) bool {
		return applied[i].Timestamp.Before(applied[j].Timestamp)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTRADER\tSIDE\tSIZE\tPRICE\tUSD\tASSET")
	for _, fill := range applied {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			fill.Timestamp.Format(time.RFC3339),
			shorten(fill.Trader),
			fill.Side,
			fill.Size.StringFixed(4),
			fill.Price.StringFixed(4),
			fill.USDValue.StringFixed(2),
			shorten(fill.AssetID),
		)
	}
	w.Flush()
	t.printStats(eng)
	return nil
}

// summary prints one trader's aggregate activity.
func (t *tracker) summary(ctx context.Context, address string, limit, hours int) error {
	if address == "" {
		return fmt.Errorf("-address is required for summary")
	}

	eng := t.newEngine(address)
	events, err := t.client.RecentFills(ctx, feed.FillQuery{Trader: address, Limit: limit, SinceHours: hours})
	if err != nil {
		return err
	}
	replay(ctx, eng, events)

	sum, ok := eng.TraderSummary(address)
	if !ok {
		fmt.Println("No activity found for this trader.")
		return nil
	}

	fmt.Printf("Trader:          %s\n", sum.Trader)
	fmt.Printf("Total volume:    $%s\n", sum.TotalVolumeUSD.StringFixed(2))
	fmt.Printf("Trades:          %d\n", sum.TradeCount)
	fmt.Printf("Unique assets:   %d\n", sum.UniqueAssets)
	fmt.Printf("Avg price:       %s\n", sum.AvgPrice.StringFixed(4))
	fmt.Printf("Last trade:      %s\n", sum.LastTradeTime.Format(time.RFC3339))
	t.printPositions(eng, address)
	return nil
}

// price prints the indicative price for one asset.
func (t *tracker) price(ctx context.Context, assetID string, limit, hours int) error {
	if assetID == "" {
		return fmt.Errorf("-asset is required for price")
	}

	eng := t.newEngine()
	events, err := t.client.RecentFills(ctx, feed.FillQuery{AssetID: assetID, Limit: limit, SinceHours: hours})
	if err != nil {
		return err
	}
	replay(ctx, eng, events)

	sum, ok := eng.AssetSummary(assetID)
	if !ok {
		fmt.Println("No recent fills for this asset.")
		return nil
	}

	fmt.Printf("Asset:            %s\n", sum.AssetID)
	fmt.Printf("Last price:       %s\n", sum.LastPrice.StringFixed(4))
	fmt.Printf("Indicative price: %s\n", sum.IndicativePrice.StringFixed(4))
	fmt.Printf("Volume:           $%s\n", sum.TotalVolumeUSD.StringFixed(2))
	fmt.Printf("Trades:           %d\n", sum.TradeCount)
	fmt.Printf("Unique traders:   %d\n", sum.UniqueTraders)
	return nil
}

// book prints an indicative orderbook reconstructed from the asset's
// recent fills.
func (t *tracker) book(ctx context.Context, assetID string, limit, hours int) error {
	if assetID == "" {
		return fmt.Errorf("-asset is required for book")
	}

	eng := t.newEngine()
	events, err := t.client.RecentFills(ctx, feed.FillQuery{AssetID: assetID, Limit: limit, SinceHours: hours})
	if err != nil {
		return err
	}
	replay(ctx, eng, events)

	bk := eng.OrderBook(assetID)
	if len(bk.Asks) == 0 {
		fmt.Println("No recent fills for this asset.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIDE\tPRICE\tSIZE\tTRADES")
	// Asks worst to best, then bids best to worst, reading like a depth
	// display with the spread in the middle.
	for i := len(bk.Asks) - 1; i >= 0; i-- {
		lvl := bk.Asks[i]
		fmt.Fprintf(w, "ask\t%s\t%s\t%d\n", lvl.Price.StringFixed(4), lvl.Size.StringFixed(4), lvl.Count)
	}
	for _, lvl := range bk.Bids {
		fmt.Fprintf(w, "bid\t%s\t%s\t%d\n", lvl.Price.StringFixed(4), lvl.Size.StringFixed(4), lvl.Count)
	}
	w.Flush()

	fmt.Printf("Best bid %s / best ask %s (mid %s) as of %s\n",
		bk.BestBid.StringFixed(4), bk.BestAsk.StringFixed(4),
		bk.MidPrice.StringFixed(4), bk.SnapshotTime.Format(time.RFC3339))
	return nil
}

// top prints volume leaderboards over the fetched window.
func (t *tracker) top(ctx context.Context, limit, hours, n int) error {
	eng := t.newEngine()
	events, err := t.client.RecentFills(ctx, feed.FillQuery{Limit: limit, SinceHours: hours})
	if err != nil {
		return err
	}
	replay(ctx, eng, events)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tTRADER\tVOLUME USD")
	for i, entry := range eng.TopTraders(n) {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, shorten(entry.ID), entry.VolumeUSD.StringFixed(2))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "RANK\tASSET\tVOLUME USD")
	for i, entry := range eng.TopAssets(n) {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, shorten(entry.ID), entry.VolumeUSD.StringFixed(2))
	}
	w.Flush()
	t.printStats(eng)
	return nil
}

// question resolves a condition id to its market question.
func (t *tracker) question(ctx context.Context, conditionID string) error {
	if conditionID == "" {
		return fmt.Errorf("-condition is required for question")
	}

	events, err := t.client.QuestionByCondition(ctx, conditionID, 0)
	if err != nil {
		return err
	}

	analyses := markets.AnalyzeEvents(events)
	if len(analyses) == 0 {
		fmt.Println("No question found for this condition.")
		return nil
	}
	for _, a := range analyses {
		fmt.Printf("Question ID: %s\n", a.QuestionID)
		if a.Title != "" {
			fmt.Printf("Title:       %s\n", a.Title)
		}
		if a.Description != "" {
			fmt.Printf("Description: %s\n", a.Description)
		}
		fmt.Printf("Topics:      %v\n", a.Topics)
		fmt.Printf("Keywords:    %v\n", a.Keywords)
	}
	return nil
}

func (t *tracker) printPositions(eng *engine.Engine, address string) {
	positions := eng.Positions(address)
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].LastTradeTime.After(positions[j].LastTradeTime)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tNET SIZE\tCOST BASIS\tREALIZED PNL\tTRADES\tLAST TRADE")
	for _, pos := range positions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shorten(pos.AssetID),
			pos.NetSize.StringFixed(4),
			pos.CostBasis.StringFixed(4),
			pos.RealizedPnL.StringFixed(4),
			pos.TradeCount,
			pos.LastTradeTime.Format(time.RFC3339),
		)
	}
	w.Flush()
}

func (t *tracker) printStats(eng *engine.Engine) {
	stats := eng.Stats()
	t.logger.Infof("Processed %d fills (%d skipped, %d duplicates, %d ordering violations)",
		stats.Processed, stats.Skipped, stats.Duplicates, stats.OrderingViolations)
}

// publishingTrader forwards applied fills to the fill topic.
type publishingTrader struct {
	producer *stream.Producer
}

func (p *publishingTrader) OnFill(_ context.Context, snap engine.FillSnapshot) error {
	return p.producer.Publish(snap.Trade)
}

func shorten(id string) string {
	if len(id) <= 14 {
		return id
	}
	return id[:8] + ".." + id[len(id)-4:]
}
