package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SensorPull/internal/domain/models"
	"SensorPull/internal/domain/repository"
)

// archiveChunkSize bounds the rows of one multi-row INSERT.
const archiveChunkSize = 2000

// ClickHouseSampleArchive stores delivered samples in ClickHouse.
type ClickHouseSampleArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseSampleArchive creates the archive on an open pool. Schema is created by pkg/clickhouse.
func NewClickHouseSampleArchive(db *sql.DB, table string) *ClickHouseSampleArchive {
	return &ClickHouseSampleArchive{db: db, table: table}
}

var _ repository.SampleArchive = (*ClickHouseSampleArchive)(nil)

func (s *ClickHouseSampleArchive) Name() string { return "clickhouse" }

// WriteBatch inserts every sample of b using multi-row VALUES statements.
func (s *ClickHouseSampleArchive) WriteBatch(ctx context.Context, b models.Batch) error {
	if len(b.Samples) == 0 {
		return nil
	}
	for start := 0; start < len(b.Samples); start += archiveChunkSize {
		end := start + archiveChunkSize
		if end > len(b.Samples) {
			end = len(b.Samples)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, smp := range b.Samples[start:end] {
			ts := smp.Time
			if ts.IsZero() {
				ts = b.FetchedAt
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, b.ChartID, b.Source.ID, ts.UTC(), smp.Key, smp.Y, b.FetchedAt.UTC())
		}

		q := fmt.Sprintf("INSERT INTO %s (chart_id, source_id, ts, key, y, fetched_at) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("archive source %d: %w", b.Source.ID, err)
		}
	}
	return nil
}

// Query returns archived samples of a source in [from, to], newest first.
func (s *ClickHouseSampleArchive) Query(ctx context.Context, sourceID int64, from, to time.Time, limit int) ([]models.Sample, error) {
	q := fmt.Sprintf("SELECT ts, key, y FROM %s WHERE source_id = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, sourceID, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		var smp models.Sample
		if err := rows.Scan(&smp.Time, &smp.Key, &smp.Y); err != nil {
			return nil, err
		}
		if smp.Key != "" {
			smp.Time = time.Time{}
		}
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}

func (s *ClickHouseSampleArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSampleArchive) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}
