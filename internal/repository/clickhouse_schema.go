package repository

import "fmt"

// Table names inside the configured database.
const (
	TicksTable    = "ticks"
	SignalsTable  = "signals"
	OutcomesTable = "signal_outcomes"
	Candles1m     = "candles_1m"
)

// Schema returns idempotent DDL for every table the service writes or reads.
// candles_1m is a materialized view over ticks so warm start works even
// when nothing else populates it.
func Schema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    ts DateTime64(3, 'UTC'),
    symbol LowCardinality(String),
    price Float64,
    volume Float64
) ENGINE = MergeTree
PARTITION BY toYYYYMMDD(ts)
ORDER BY (symbol, ts)
TTL toDateTime(ts) + INTERVAL 30 DAY`, db, TicksTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    bucket DateTime('UTC'),
    symbol LowCardinality(String),
    open AggregateFunction(argMin, Float64, DateTime64(3, 'UTC')),
    high SimpleAggregateFunction(max, Float64),
    low SimpleAggregateFunction(min, Float64),
    close AggregateFunction(argMax, Float64, DateTime64(3, 'UTC'))
) ENGINE = AggregatingMergeTree
ORDER BY (symbol, bucket)`, db, Candles1m),
		fmt.Sprintf(`CREATE MATERIALIZED VIEW IF NOT EXISTS %s.%s_mv TO %s.%s AS
SELECT
    toStartOfMinute(ts) AS bucket,
    symbol,
    argMinState(price, ts) AS open,
    max(price) AS high,
    min(price) AS low,
    argMaxState(price, ts) AS close
FROM %s.%s
GROUP BY symbol, bucket`, db, Candles1m, db, Candles1m, db, TicksTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id String,
    symbol LowCardinality(String),
    ts DateTime64(3, 'UTC'),
    action LowCardinality(String),
    confidence Float64,
    group_id LowCardinality(String),
    price Float64,
    expiry_seconds UInt32,
    auto_trade UInt8,
    gate_score Float64,
    regime LowCardinality(String),
    reasons Array(String),
    rl_state Array(Float64),
    rl_action Int32
) ENGINE = MergeTree
ORDER BY (symbol, ts)`, db, SignalsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    signal_id String,
    symbol LowCardinality(String),
    group_id LowCardinality(String),
    action LowCardinality(String),
    result LowCardinality(String),
    confidence Float64,
    entry_price Float64,
    exit_price Float64,
    reward Float64,
    source LowCardinality(String),
    verified_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (symbol, verified_at)`, db, OutcomesTable),
	}
}
