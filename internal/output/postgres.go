package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportSchema = `
CREATE TABLE IF NOT EXISTS report_runs (
    run_id       TEXT PRIMARY KEY,
    generated_at TIMESTAMPTZ NOT NULL,
    document     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_dish_sales (
    run_id             TEXT NOT NULL REFERENCES report_runs (run_id) ON DELETE CASCADE,
    timestamp          BIGINT NOT NULL,
    dish               TEXT NOT NULL,
    archived           BOOLEAN NOT NULL,
    total_sales        BIGINT NOT NULL,
    total_revenue      DOUBLE PRECISION NOT NULL,
    total_profit       DOUBLE PRECISION NOT NULL,
    average_sale_price DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_monthly_sales (
    run_id        TEXT NOT NULL REFERENCES report_runs (run_id) ON DELETE CASCADE,
    timestamp     BIGINT NOT NULL,
    month         TEXT NOT NULL,
    total_sales   BIGINT NOT NULL,
    total_revenue DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_seasonal_sales (
    run_id    TEXT NOT NULL REFERENCES report_runs (run_id) ON DELETE CASCADE,
    timestamp BIGINT NOT NULL,
    season    TEXT NOT NULL,
    dish      TEXT NOT NULL,
    count     BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_weather_sales (
    run_id    TEXT NOT NULL REFERENCES report_runs (run_id) ON DELETE CASCADE,
    timestamp BIGINT NOT NULL,
    condition TEXT NOT NULL,
    dish      TEXT NOT NULL,
    count     BIGINT NOT NULL,
    revenue   DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_significance (
    run_id      TEXT NOT NULL REFERENCES report_runs (run_id) ON DELETE CASCADE,
    timestamp   BIGINT NOT NULL,
    dish        TEXT NOT NULL,
    status      TEXT NOT NULL,
    months      BIGINT NOT NULL,
    f_statistic DOUBLE PRECISION,
    p_value     DOUBLE PRECISION,
    significant BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS dim_rankings (
    run_id        TEXT NOT NULL REFERENCES report_runs (run_id) ON DELETE CASCADE,
    timestamp     BIGINT NOT NULL,
    list          TEXT NOT NULL,
    rank          BIGINT NOT NULL,
    dish          TEXT NOT NULL,
    total_sales   BIGINT NOT NULL,
    total_revenue DOUBLE PRECISION NOT NULL,
    total_profit  DOUBLE PRECISION NOT NULL
);
`

// PostgresSink stores a report as one report_runs row plus fact and
// dimension rows, all in a single transaction. Re-writing a run replaces it.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, url string, maxConns int32) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, reportSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error creating report tables: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (p *PostgresSink) Write(ctx context.Context, report *analytics.Report) error {
	msgs, err := Messages(report)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM report_runs WHERE run_id = $1`, report.RunID); err != nil {
		return fmt.Errorf("failed to clear run %s: %w", report.RunID, err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO report_runs (run_id, generated_at, document) VALUES ($1, $2, $3)`,
		report.RunID, report.GeneratedAt, msgs[0].Value)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	batch := &pgx.Batch{}
	for _, m := range msgs[1:] {
		query, args, err := insertStatement(m)
		if err != nil {
			return err
		}
		batch.Queue(query, args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert rows for run %s: %w", report.RunID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Infof("stored report %s with %d rows", report.RunID, batch.Len())
	return nil
}

func (p *PostgresSink) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func topicToTable(topic string) (string, error) {
	tableMap := map[string]string{
		// fact tables
		TopicDishes:       "fact_dish_sales",
		TopicMonthly:      "fact_monthly_sales",
		TopicSeasonal:     "fact_seasonal_sales",
		TopicWeather:      "fact_weather_sales",
		TopicSignificance: "fact_significance",

		// dimension tables
		TopicRankings: "dim_rankings",
	}
	table, ok := tableMap[topic]
	if !ok {
		return "", fmt.Errorf("no table for topic %s", topic)
	}
	return table, nil
}

// insertStatement builds the INSERT for one row message from its JSON
// encoding, so columns always follow the row's json tags.
func insertStatement(m Message) (string, []interface{}, error) {
	table, err := topicToTable(m.Topic)
	if err != nil {
		return "", nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(m.Value))
	dec.UseNumber()
	var row map[string]interface{}
	if err := dec.Decode(&row); err != nil {
		return "", nil, fmt.Errorf("decode %s row: %w", m.Topic, err)
	}
	cols, vals, placeholders, err := buildInsertComponents(row)
	if err != nil {
		return "", nil, fmt.Errorf("%s row: %w", m.Topic, err)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, cols, placeholders), vals, nil
}

func buildInsertComponents(row map[string]interface{}) (string, []interface{}, string, error) {
	// sorted for consistent queries
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	columns := make([]string, 0, len(keys))
	placeholders := make([]string, 0, len(keys))
	values := make([]interface{}, 0, len(keys))
	for i, key := range keys {
		val := row[key]
		if n, ok := val.(json.Number); ok {
			if iv, err := n.Int64(); err == nil {
				val = iv
			} else if f, err := n.Float64(); err == nil {
				val = f
			} else {
				return "", nil, "", fmt.Errorf("column %s: %w", key, err)
			}
		}
		columns = append(columns, pgx.Identifier{key}.Sanitize())
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		values = append(values, val)
	}
	return strings.Join(columns, ", "), values, strings.Join(placeholders, ", "), nil
}
