package clickhouse

import (
	"fmt"
	"time"
)

// SampleSchema returns the DDL creating database and its sample table. Rows older
// than retention are dropped by a table TTL; retention <= 0 keeps them forever.
func SampleSchema(database, table string, retention time.Duration) []string {
	ttl := ""
	if days := int(retention / (24 * time.Hour)); days > 0 {
		ttl = fmt.Sprintf("\nTTL toDateTime(fetched_at) + INTERVAL %d DAY", days)
	}
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + database,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	chart_id   Int64,
	source_id  Int64,
	ts         DateTime64(3, 'UTC'),
	key        String,
	y          Float64,
	fetched_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMMDD(fetched_at)
ORDER BY (source_id, fetched_at, ts)%s`, database, table, ttl),
	}
}
