package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool defaults sized for the catalog's workload: many short statements
// (ledger adjustments, upserts, keyset pages) and no long-running queries.
const (
	defaultMaxConns        = 20
	defaultMinConns        = 2
	defaultMaxConnIdleTime = 5 * time.Minute
	defaultMaxConnLifetime = time.Hour
	defaultConnTimeout     = 10 * time.Second
)

// Options controls connection-pool behaviour. Zero values fall back to the
// catalog defaults above.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 *log.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxConns <= 0 {
		o.MaxConns = defaultMaxConns
	}
	if o.MinConns <= 0 {
		o.MinConns = defaultMinConns
	}
	if o.MinConns > o.MaxConns {
		o.MinConns = o.MaxConns
	}
	if o.MaxConnIdleTime <= 0 {
		o.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	if o.MaxConnLifetime <= 0 {
		o.MaxConnLifetime = defaultMaxConnLifetime
	}
	if o.ConnTimeout <= 0 {
		o.ConnTimeout = defaultConnTimeout
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Store hides direct access to the underlying connection pool so higher
// layers can focus on catalog logic.
type Store struct {
	pool   *pgxpool.Pool
	logger *log.Logger
	opts   Options
}

// New initializes a connection pool and validates connectivity.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	opts.Logger.Printf("store: opening pool (max=%d, min=%d, idle=%s, life=%s, stmt_cache=%d)",
		opts.MaxConns, opts.MinConns, opts.MaxConnIdleTime, opts.MaxConnLifetime, opts.StatementCacheCapacity)

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	cfg.MaxConnLifetime = opts.MaxConnLifetime
	if opts.StatementCacheCapacity >= 0 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = opts.StatementCacheCapacity
	}

	connCtx, cancel := context.WithTimeout(ctx, opts.ConnTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	st := &Store{pool: pool, logger: opts.Logger, opts: opts}
	if err := st.HealthCheck(connCtx); err != nil {
		pool.Close()
		return nil, err
	}

	opts.Logger.Println("store: database connection established")
	return st, nil
}

// Close releases database resources, reporting final pool usage.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	stat := s.pool.Stat()
	s.logger.Printf("store: closing pool (total=%d, idle=%d, acquired=%d)",
		stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns())
	s.pool.Close()
}

// HealthCheck verifies the database answers a query, not just a ping, so a
// wedged backend that still accepts connections is reported as unhealthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store not initialized")
	}
	checkCtx, cancel := context.WithTimeout(ctx, s.opts.ConnTimeout)
	defer cancel()

	var one int
	if err := s.pool.QueryRow(checkCtx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store health: %w", err)
	}
	return nil
}

// Pool exposes the underlying pgx pool for repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
