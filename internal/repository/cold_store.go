package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CandleKeep/internal/domain/models"
	"CandleKeep/internal/domain/repository"
)

// ClickHouseColdStore implements ColdStore for ClickHouse. The archive table
// is day-partitioned and append-only; only the archival mover writes here.
type ClickHouseColdStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseColdStore creates ClickHouse cold storage.
func NewClickHouseColdStore(db *sql.DB, table string) repository.ColdStore {
	if table == "" {
		table = "ohlcv_archive"
	}
	return &ClickHouseColdStore{db: db, table: table}
}

func (s *ClickHouseColdStore) SelectRange(ctx context.Context, symbol string, tf repository.Timeframe, from, to time.Time) ([]models.Candle, error) {
	q := fmt.Sprintf(`SELECT time, symbol, timeframe, open, high, low, close, volume
		FROM %s
		WHERE symbol = ? AND timeframe = ? AND time >= ? AND time <= ?
		ORDER BY time ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Symbol, &c.Timeframe, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.Time = c.Time.UTC()
		c.Provenance = models.ProvenanceCold
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

func (s *ClickHouseColdStore) InsertBatch(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips. Chunk size tuned to 2000
	// rows per statement.
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, c := range candles[start:end] {
			if c.Symbol == "" || c.Time.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Time.UTC(), c.Symbol, c.Timeframe, c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (time, symbol, timeframe, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseColdStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
