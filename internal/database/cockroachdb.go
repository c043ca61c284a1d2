package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"amora-realtime/pkg/constants"
	"amora-realtime/pkg/logger"
)

// CockroachConfig holds CockroachDB connection configuration
type CockroachConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// ConnString builds the pgx connection string
func (c *CockroachConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// CockroachDB wraps the pgxpool.Pool with pool configuration applied
type CockroachDB struct {
	Pool *pgxpool.Pool
}

// NewCockroachDB creates a new connection pool with configured limits
func NewCockroachDB(ctx context.Context, cfg *CockroachConfig) (*CockroachDB, error) {
	config, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	config.MaxConnLifetime = constants.MaxConnLifetime
	config.MaxConnIdleTime = constants.MaxConnIdleTime
	config.HealthCheckPeriod = constants.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	return &CockroachDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *CockroachDB) Close() {
	db.Pool.Close()
	logger.Info("Database connection pool closed")
}
