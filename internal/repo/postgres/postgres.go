package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects to dsn, verifies the connection and applies migrations.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := Migrate(dsn); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("postgres_ready", zap.String("host", cfg.ConnConfig.Host))
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- ResultStore ----

func (s *Store) Append(ctx context.Context, r domain.Result) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ping_results
		   (timestamp, target, ip, status, response_time_ms, count, reason)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7)`,
		r.Timestamp.UTC(), string(r.TargetID), r.Address, string(r.Status),
		r.LatencyMS, r.Consecutive, r.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ---- AlertStore ----

func (s *Store) Record(ctx context.Context, ev domain.AlertEvent) error {
	a := repo.AlertRecordOf(ev)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, target, kind, status, consecutive, at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, string(a.TargetID), string(a.Kind), string(a.Status), a.Consecutive, a.At,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ---- Purger ----

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := tx.Exec(ctx, `DELETE FROM ping_results WHERE timestamp < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge results: %w", err)
	}
	al, err := tx.Exec(ctx, `DELETE FROM alerts WHERE at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge alerts: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("purge commit: %w", err)
	}
	return res.RowsAffected() + al.RowsAffected(), nil
}
