package repository

import (
	"context"
	"time"

	"CandleKeep/internal/domain/models"
	"CandleKeep/internal/domain/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresHotStore implements HotStore on a pgx pool. Rows are unique per
// (time, symbol, timeframe); callers pick insert semantics per write path.
type PostgresHotStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresHotStore creates a Postgres-backed hot store.
func NewPostgresHotStore(pool *pgxpool.Pool, table string) repository.HotStore {
	if table == "" {
		table = "ohlcv"
	}
	return &PostgresHotStore{pool: pool, table: table}
}

func (s *PostgresHotStore) UpsertIgnore(ctx context.Context, c models.Candle) error {
	q := `INSERT INTO ` + s.table + ` (time, symbol, timeframe, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (time, symbol, timeframe) DO NOTHING`
	_, err := s.pool.Exec(ctx, q,
		c.Time.UTC(), c.Symbol, c.Timeframe, c.Open, c.High, c.Low, c.Close, c.Volume)
	return err
}

func (s *PostgresHotStore) UpsertOverwrite(ctx context.Context, c models.Candle) error {
	q := `INSERT INTO ` + s.table + ` (time, symbol, timeframe, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (time, symbol, timeframe) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`
	_, err := s.pool.Exec(ctx, q,
		c.Time.UTC(), c.Symbol, c.Timeframe, c.Open, c.High, c.Low, c.Close, c.Volume)
	return err
}

func (s *PostgresHotStore) ApplyTick(ctx context.Context, symbol string, tf repository.Timeframe, bucket time.Time, price, volume float64) error {
	// Open is insert-only: the first tick in the bucket fixes it. High and low
	// accumulate, close follows the latest tick, volume sums.
	q := `INSERT INTO ` + s.table + ` (time, symbol, timeframe, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $4, $4, $4, $5)
		ON CONFLICT (time, symbol, timeframe) DO UPDATE SET
			high = GREATEST(` + s.table + `.high, EXCLUDED.high),
			low = LEAST(` + s.table + `.low, EXCLUDED.low),
			close = EXCLUDED.close,
			volume = ` + s.table + `.volume + EXCLUDED.volume`
	_, err := s.pool.Exec(ctx, q, bucket.UTC(), symbol, string(tf), price, volume)
	return err
}

func (s *PostgresHotStore) SelectRange(ctx context.Context, symbol string, tf repository.Timeframe, from, to time.Time) ([]models.Candle, error) {
	q := `SELECT time, symbol, timeframe, open, high, low, close, volume
		FROM ` + s.table + `
		WHERE symbol = $1 AND timeframe = $2 AND time >= $3 AND time <= $4
		ORDER BY time ASC`
	rows, err := s.pool.Query(ctx, q, symbol, string(tf), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandles(rows, models.ProvenanceHot)
}

func (s *PostgresHotStore) SelectBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Candle, error) {
	q := `SELECT time, symbol, timeframe, open, high, low, close, volume
		FROM ` + s.table + `
		WHERE time < $1
		ORDER BY time ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, q, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandles(rows, models.ProvenanceHot)
}

func (s *PostgresHotStore) DeleteRows(ctx context.Context, rows []models.Candle) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	q := `DELETE FROM ` + s.table + ` WHERE time = $1 AND symbol = $2 AND timeframe = $3`
	b := &pgx.Batch{}
	for _, c := range rows {
		b.Queue(q, c.Time.UTC(), c.Symbol, c.Timeframe)
	}
	br := s.pool.SendBatch(ctx, b)
	defer br.Close()
	var deleted int64
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			return deleted, err
		}
		deleted += tag.RowsAffected()
	}
	return deleted, nil
}

func scanCandles(rows pgx.Rows, prov models.Provenance) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Symbol, &c.Timeframe, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.Time = c.Time.UTC()
		c.Provenance = prov
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
