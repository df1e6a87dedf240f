package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Schema   string
}

func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// PostgresStorage probes tables over a direct, read-only database connection.
type PostgresStorage struct {
	db      *sql.DB
	schema  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, timeout time.Duration, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	logger.Debug("connected to database",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("dbname", config.DBName))
	return newPostgresStorage(db, config.Schema, timeout, logger), nil
}

func newPostgresStorage(db *sql.DB, schema string, timeout time.Duration, logger *zap.Logger) *PostgresStorage {
	if schema == "" {
		schema = "public"
	}
	return &PostgresStorage{db: db, schema: schema, timeout: timeout, logger: logger}
}

func (s *PostgresStorage) qualified(table string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(table)
}

func (s *PostgresStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStorage) Probe(ctx context.Context, table string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var id any
	err := s.db.QueryRowContext(ctx, "SELECT id FROM "+s.qualified(table)+" LIMIT 1").Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("probe %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStorage) Sample(ctx context.Context, table string) (*Sample, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+s.qualified(table)+" LIMIT 1")
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("error reading columns of %s: %w", table, err)
	}
	sample := newSample(columns)
	sample.Empty = !rows.Next()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}
	return sample, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
