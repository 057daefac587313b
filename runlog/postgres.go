package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultRunTable = "weft_runs"

// Postgres is a Store over a PostgreSQL table.
type Postgres struct {
	db    *sql.DB
	table string
}

// NewPostgres creates a store over the given *sql.DB (driver "postgres").
// The table is created if it does not exist.
func NewPostgres(db *sql.DB, table string) (*Postgres, error) {
	if table == "" {
		table = defaultRunTable
	}
	s := &Postgres{db: db, table: table}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		id BIGSERIAL PRIMARY KEY,
		record_id TEXT NOT NULL DEFAULT '',
		template TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		latency_ms BIGINT NOT NULL DEFAULT 0,
		prompt_tokens INT NOT NULL DEFAULT 0,
		completion_tokens INT NOT NULL DEFAULT 0,
		ok BOOLEAN NOT NULL DEFAULT false,
		at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_` + s.table + `_template ON ` + s.table + ` (template);
	CREATE INDEX IF NOT EXISTS idx_` + s.table + `_at ON ` + s.table + ` (at);`
	_, err := s.db.ExecContext(ctx, q)
	return err
}

// Record implements Recorder.
func (s *Postgres) Record(ctx context.Context, rec Record) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (record_id, template, model, latency_ms, prompt_tokens, completion_tokens, ok, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Template, rec.Model, rec.LatencyMs, rec.PromptTokens, rec.CompletionTokens, rec.OK, rec.At)
	return err
}

// Summarize implements Store using SQL aggregation.
func (s *Postgres) Summarize(ctx context.Context, q Query) ([]Summary, error) {
	args := []interface{}{}
	where := "1=1"
	n := 1
	if q.Template != "" {
		args = append(args, q.Template)
		where += fmt.Sprintf(" AND template = $%d", n)
		n++
	}
	if q.Model != "" {
		args = append(args, q.Model)
		where += fmt.Sprintf(" AND model = $%d", n)
		n++
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		where += fmt.Sprintf(" AND at >= $%d", n)
		n++
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		where += fmt.Sprintf(" AND at <= $%d", n)
		n++
	}

	groupCol := "'all'"
	switch q.GroupBy {
	case "template":
		groupCol = "template"
	case "model":
		groupCol = "model"
	case "day":
		groupCol = "date_trunc('day', at)::date::text"
	case "hour":
		groupCol = "to_char(date_trunc('hour', at), 'YYYY-MM-DD-HH24')"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	limitPlaceholder := fmt.Sprintf("$%d", n)

	query := `SELECT ` + groupCol + ` AS key,
		COUNT(*)::bigint AS invocations,
		COUNT(*) FILTER (WHERE NOT ok)::bigint AS failures,
		COALESCE(AVG(latency_ms), 0) AS avg_latency_ms,
		COALESCE(SUM(prompt_tokens), 0)::bigint AS prompt_tokens,
		COALESCE(SUM(completion_tokens), 0)::bigint AS completion_tokens
		FROM ` + s.table + `
		WHERE ` + where + `
		GROUP BY ` + groupCol + `
		ORDER BY invocations DESC, key
		LIMIT ` + limitPlaceholder

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sum Summary
		var k sql.NullString
		if err := rows.Scan(&k, &sum.Invocations, &sum.Failures, &sum.AvgLatencyMs, &sum.PromptTokens, &sum.CompletionTokens); err != nil {
			return nil, err
		}
		if k.Valid {
			sum.Key = k.String
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

var _ Store = (*Postgres)(nil)
