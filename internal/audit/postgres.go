package audit

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	u "pdf-generator/internal/utils"
)

// PostgresRecorder appends records to the generations table.
type PostgresRecorder struct {
	dsn string

	mu       sync.Mutex
	db       *sql.DB
	schemaOK bool
}

func postgresPort(cfg u.PostgresConfig) int {
	if cfg.Port != 0 {
		return cfg.Port
	}
	return 5432
}

// postgresDSN returns cfg.DSN when set, otherwise builds a URL-style DSN. A
// Host that already is a postgres URL is passed through unchanged.
func postgresDSN(cfg u.PostgresConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	if cfg.Host == "" {
		return "", fmt.Errorf("postgres host is empty")
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("postgres database is empty")
	}
	if cfg.User == "" {
		return "", fmt.Errorf("postgres user is empty")
	}

	hostPort := cfg.Host
	port := postgresPort(cfg)
	switch {
	case strings.HasPrefix(hostPort, "["):
		if !strings.Contains(hostPort, "]:") {
			hostPort = fmt.Sprintf("%s:%d", hostPort, port)
		}
	case strings.Count(hostPort, ":") >= 2:
		hostPort = fmt.Sprintf("[%s]:%d", hostPort, port)
	case !strings.Contains(hostPort, ":"):
		hostPort = fmt.Sprintf("%s:%d", hostPort, port)
	}

	dsn := &url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		dsn.User = url.User(cfg.User)
	}
	q := dsn.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	dsn.RawQuery = q.Encode()
	return dsn.String(), nil
}

// NewPostgresRecorder validates the connection settings. The database is
// opened lazily so a cold database does not block startup.
func NewPostgresRecorder(cfg u.PostgresConfig) (*PostgresRecorder, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresRecorder{dsn: dsn}, nil
}

func (r *PostgresRecorder) getDB(ctx context.Context) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		db, err := sql.Open("pgx", r.dsn)
		if err != nil {
			return nil, err
		}
		// One insert per generated document; a handful of connections is plenty.
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		r.db = db
	}

	if !r.schemaOK {
		if err := ensureSchema(ctx, r.db); err != nil {
			return nil, err
		}
		r.schemaOK = true
	}
	return r.db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ddl1 := `CREATE TABLE IF NOT EXISTS generations (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL DEFAULT '',
		template TEXT NOT NULL,
		path TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	ddl2 := `CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations (created_at);`
	if _, err := db.ExecContext(ctx, ddl1); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl2); err != nil {
		return err
	}
	return nil
}

// Record inserts rec.
func (r *PostgresRecorder) Record(ctx context.Context, rec Record) error {
	db, err := r.getDB(ctx)
	if err != nil {
		return fmt.Errorf("audit postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx,
		`INSERT INTO generations (request_id, template, path, bytes, duration_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.RequestID, rec.Template, rec.Path, rec.Bytes, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit postgres: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (r *PostgresRecorder) Recent(ctx context.Context, n int64) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx,
		`SELECT request_id, template, path, bytes, duration_ms, created_at FROM generations ORDER BY created_at DESC, id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		if err := rows.Scan(&rec.RequestID, &rec.Template, &rec.Path, &rec.Bytes, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit postgres: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit postgres: %w", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (r *PostgresRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.schemaOK = false
	return err
}
