package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var _ repo.Store = (*Store)(nil)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store is the single-file structured backend.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates (if needed) and migrates the database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; WAL lets readers proceed
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("sqlite_ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := msqlite3.WithInstance(db, &msqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	// m.Close would close db as well; the store keeps using it
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Append(ctx context.Context, r domain.Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ping_results (timestamp, target, ip, status, response_time_ms, count, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(timeLayout), string(r.TargetID), r.Address,
		string(r.Status), r.LatencyMS, r.Consecutive, r.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) Record(ctx context.Context, ev domain.AlertEvent) error {
	a := repo.AlertRecordOf(ev)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alerts (id, target, kind, status, consecutive, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.TargetID), string(a.Kind), string(a.Status), a.Consecutive,
		a.At.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	cut := before.UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("purge begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, q := range []string{
		`DELETE FROM ping_results WHERE timestamp < ?`,
		`DELETE FROM alerts WHERE at < ?`,
	} {
		res, err := tx.ExecContext(ctx, q, cut)
		if err != nil {
			return 0, fmt.Errorf("purge: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("purge commit: %w", err)
	}
	return total, nil
}
