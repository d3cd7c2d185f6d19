package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cortexai/analytics/internal/security"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// DBConfig holds the connection pool settings of the KPI database
type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// QueryResult holds the rows returned for one validated statement
type QueryResult struct {
	Columns         []string                 `json:"columns"`
	Rows            []map[string]interface{} `json:"rows"`
	RowCount        int                      `json:"row_count"`
	ExecutionTimeMs int64                    `json:"execution_time_ms"`
}

// PostgresRunner executes validated SQL against the KPI database
type PostgresRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenPostgres opens and pings a pgx-backed database/sql pool
func OpenPostgres(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open kpi db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping kpi db: %w", err)
	}
	return db, nil
}

// NewPostgresRunner wraps db. timeout <= 0 means 30s.
func NewPostgresRunner(db *sql.DB, timeout time.Duration) *PostgresRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostgresRunner{db: db, timeout: timeout}
}

// Close releases the pool
func (r *PostgresRunner) Close() error {
	return r.db.Close()
}

// Ping checks database connectivity
func (r *PostgresRunner) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunQuery executes sql. Only validator output is accepted, so no unchecked
// statement can reach the database.
func (r *PostgresRunner) RunQuery(ctx context.Context, stmt security.ValidatedSQL) (*QueryResult, error) {
	query := stmt.String()
	if query == "" {
		return nil, errors.New("empty statement")
	}

	qCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	rows, err := r.db.QueryContext(qCtx, query)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &QueryResult{Columns: columns, Rows: []map[string]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	log.Debug().Int("rows", result.RowCount).Int64("execution_time_ms", result.ExecutionTimeMs).Msg("kpi query executed")
	return result, nil
}

// normalizeValue turns driver byte slices (numeric, text) into strings so rows
// serialise as JSON scalars
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
