// Package ingester consumes normalized fills from Kafka and persists
// them to ClickHouse. It handles batching, retry logic, and graceful
// shutdown.
package ingester

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ctfradar/radar/internal/storage"
	storagemodels "github.com/ctfradar/radar/internal/storage/models"
	"github.com/ctfradar/radar/internal/stream"
)

// Config holds ingester configuration parameters.
type Config struct {
	// BatchSize is the maximum number of fills to accumulate before flushing to DB.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing, even if batch isn't full.
	BatchTimeout time.Duration
}

// Ingester consumes fills from Kafka and writes them to ClickHouse in
// batches. It implements at-least-once delivery: fills are only
// committed to Kafka after successful database insertion.
type Ingester struct {
	reader  *kafka.Reader
	storage storage.FillStorage
	logger  *slog.Logger
	cfg     Config
}

// NewIngester creates a new Ingester with the provided dependencies.
func NewIngester(reader *kafka.Reader, storage storage.FillStorage, logger *slog.Logger, cfg Config) *Ingester {
	return &Ingester{
		reader:  reader,
		storage: storage,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start runs the main ingestion loop. It blocks until context is
// cancelled. On shutdown, it attempts to flush any remaining buffered
// fills.
//
// The loop:
//  1. Fetches messages from Kafka
//  2. Parses JSON into Fill rows
//  3. Accumulates fills until batch is full or timeout
//  4. Inserts batch to ClickHouse (with retry on failure)
//  5. Commits Kafka offsets only after successful DB insert
func (ig *Ingester) Start(ctx context.Context) error {
	ig.logger.Info("Starting Ingester Loop", "batch_size", ig.cfg.BatchSize)

	batchFills := make([]*storagemodels.Fill, 0, ig.cfg.BatchSize)
	batchMsgs := make([]kafka.Message, 0, ig.cfg.BatchSize)

	ticker := time.NewTicker(ig.cfg.BatchTimeout)
	defer ticker.Stop()

	// flush writes accumulated fills to DB and commits Kafka offsets
	flush := func() error {
		if len(batchFills) == 0 {
			return nil
		}

		// Retry loop: never drop data, keep retrying until DB accepts it
		for {
			if err := ig.storage.CreateFills(ctx, batchFills); err != nil {
				ig.logger.Error("DB Insert Failed (Retrying in 2s)", "error", err)

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(2 * time.Second):
					continue
				}
			}
			break
		}

		// Commit Kafka offsets AFTER successful DB insert (at-least-once)
		if err := ig.reader.CommitMessages(ctx, batchMsgs...); err != nil {
			ig.logger.Warn("Failed to commit offsets", "error", err)
		}

		batchFills = batchFills[:0]
		batchMsgs = batchMsgs[:0]
		ticker.Reset(ig.cfg.BatchTimeout)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return flush() // Flush remaining fills on shutdown

		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}

		default:
			// Fetch with short timeout to remain responsive to ticker/shutdown
			fetchCtx, cancel := context.WithTimeout(ctx, ig.cfg.BatchTimeout)
			m, err := ig.reader.FetchMessage(fetchCtx)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				ig.logger.Error("Kafka Fetch Error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			fills, err := ig.parseMessage(m)
			if err != nil {
				ig.logger.Warn("Dropping unparseable message", "error", err)
				continue
			}

			batchFills = append(batchFills, fills...)
			batchMsgs = append(batchMsgs, m)

			if len(batchFills) >= ig.cfg.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// parseMessage deserializes a Kafka message into Fill rows. Producers
// send either one TradeMessage or an array of them.
func (ig *Ingester) parseMessage(msg kafka.Message) ([]*storagemodels.Fill, error) {
	var single stream.TradeMessage
	if err := json.Unmarshal(msg.Value, &single); err == nil && single.TradeID != "" {
		return ig.convertList([]stream.TradeMessage{single})
	}

	var batch []stream.TradeMessage
	if err := json.Unmarshal(msg.Value, &batch); err == nil && len(batch) > 0 {
		return ig.convertList(batch)
	}

	return nil, fmt.Errorf("unknown message format")
}

// convertList transforms wire messages to database rows. Skips invalid
// fills but continues processing valid ones.
func (ig *Ingester) convertList(list []stream.TradeMessage) ([]*storagemodels.Fill, error) {
	result := make([]*storagemodels.Fill, 0, len(list))
	for _, item := range list {
		f, err := ig.transform(item)
		if err != nil {
			ig.logger.Warn("Fill validation failed", "trade_id", item.TradeID, "error", err)
			continue
		}
		result = append(result, f)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no valid fills found")
	}
	return result, nil
}

// transform converts a single wire message to a database row.
// Validates required fields and checks for corrupted numeric data.
func (ig *Ingester) transform(m stream.TradeMessage) (*storagemodels.Fill, error) {
	if m.TradeID == "" || m.Trader == "" || m.AssetID == "" {
		return nil, fmt.Errorf("missing required fields: trade_id=%q trader=%q asset_id=%q", m.TradeID, m.Trader, m.AssetID)
	}

	trade, err := m.ToTrade()
	if err != nil {
		return nil, err
	}

	size, _ := trade.Size.Float64()
	price, _ := trade.Price.Float64()
	usd, _ := trade.USDValue.Float64()
	if math.IsNaN(size) || math.IsInf(size, 0) ||
		math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("corrupted numeric data detected")
	}
	if size <= 0 || price <= 0 {
		return nil, fmt.Errorf("non-positive amounts: size=%f price=%f", size, price)
	}

	return &storagemodels.Fill{
		TradeID:      trade.TradeID,
		Trader:       trade.Trader,
		Counterparty: trade.Counterparty,
		AssetID:      trade.AssetID,
		Side:         string(trade.Side),
		Role:         string(trade.Role),
		Size:         size,
		Price:        price,
		USDValue:     usd,
		TxHash:       trade.TxHash,
		BlockNumber:  trade.BlockNumber,
		EventTime:    trade.Timestamp,
	}, nil
}
