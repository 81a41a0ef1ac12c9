// Package storage provides database storage implementations for fill data.
package storage

import (
	"context"
	"time"

	"github.com/ctfradar/radar/internal/storage/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// FillStorage defines the interface for persisting fills.
// Implementations must be safe for concurrent use.
type FillStorage interface {
	// CreateFills inserts a batch of fills into the database.
	CreateFills(ctx context.Context, fills []*models.Fill) error

	// Close releases database connection resources.
	Close() error
}

// clickhouseStorage implements FillStorage using the native ClickHouse
// driver. Batch inserts are the only write path.
type clickhouseStorage struct {
	conn driver.Conn
}

// NewClickHouseStorage creates a new ClickHouse storage connection.
// It parses the DSN, opens a connection, and verifies connectivity with a ping.
// Returns an error if connection cannot be established within 5 seconds.
func NewClickHouseStorage(dsn string) (FillStorage, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return &clickhouseStorage{conn: conn}, nil
}

// CreateFills inserts fills using ClickHouse batch insert.
// All rows in the batch share the same inserted_at timestamp.
func (s *clickhouseStorage) CreateFills(ctx context.Context, fills []*models.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fill (
			trade_id, trader, counterparty, asset_id,
			side, role, size, price, usd_value,
			tx_hash, block_number, event_time, inserted_at
		)
	`)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, f := range fills {
		err := batch.Append(
			f.TradeID,
			f.Trader,
			f.Counterparty,
			f.AssetID,
			f.Side,
			f.Role,
			f.Size,
			f.Price,
			f.USDValue,
			f.TxHash,
			f.BlockNumber,
			f.EventTime,
			now,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// Close closes the underlying ClickHouse connection.
func (s *clickhouseStorage) Close() error {
	return s.conn.Close()
}
