// Package postgres provides the Postgres-backed metadata repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urlmeta/inventory/internal/metadata"
	"github.com/urlmeta/inventory/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool backing the metadata store.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// MetadataStore implements store.Repository on a pgx connection pool. The
// table has a unique key on url; Upsert relies on ON CONFLICT for atomic
// insert-or-overwrite semantics.
type MetadataStore struct {
	pool  pgxPool
	table string
}

// New connects a pool, verifies it with a ping, and returns the store.
func New(ctx context.Context, cfg Config) (*MetadataStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "url_metadata"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &MetadataStore{pool: pool, table: table}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool, table string) (*MetadataStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "url_metadata"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &MetadataStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *MetadataStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetByURL loads the record stored under the given URL string.
func (s *MetadataStore) GetByURL(ctx context.Context, url string) (metadata.Record, error) {
	query := fmt.Sprintf(`
SELECT url, headers, cookies, page_source, collected_at
FROM %s
WHERE url = $1`, s.table)

	var (
		rec         metadata.Record
		headersJSON []byte
		cookiesJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, url).Scan(
		&rec.URL,
		&headersJSON,
		&cookiesJSON,
		&rec.PageSource,
		&rec.CollectedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return metadata.Record{}, store.ErrNotFound
		}
		return metadata.Record{}, classifyError("get metadata", err)
	}
	if err := json.Unmarshal(headersJSON, &rec.Headers); err != nil {
		return metadata.Record{}, fmt.Errorf("unmarshal headers: %w", err)
	}
	if err := json.Unmarshal(cookiesJSON, &rec.Cookies); err != nil {
		return metadata.Record{}, fmt.Errorf("unmarshal cookies: %w", err)
	}
	return rec, nil
}

// Upsert inserts or fully overwrites the record keyed by record.URL.
func (s *MetadataStore) Upsert(ctx context.Context, record metadata.Record) error {
	if record.URL == "" {
		return fmt.Errorf("record url is required")
	}
	headersJSON, err := json.Marshal(record.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	cookiesJSON, err := json.Marshal(record.Cookies)
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (url, headers, cookies, page_source, collected_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (url) DO UPDATE
SET headers = EXCLUDED.headers,
	cookies = EXCLUDED.cookies,
	page_source = EXCLUDED.page_source,
	collected_at = EXCLUDED.collected_at`, s.table)

	_, err = s.pool.Exec(ctx, query,
		record.URL,
		headersJSON,
		cookiesJSON,
		record.PageSource,
		record.CollectedAt,
	)
	if err != nil {
		return classifyError("upsert metadata", err)
	}
	return nil
}

// Ping verifies connectivity to Postgres.
func (s *MetadataStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// classifyError maps pgx errors onto the store's sentinel errors. A PgError
// means the server answered: 23505 is the unique-key race, anything else is
// a plain failure. Errors that never reached the server (dial, timeout,
// closed pool) count as the store being unavailable.
func classifyError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", store.ErrDuplicateKey, pgErr.ConstraintName)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
}
