// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hamed0406/pingmonitor/internal/config"
	"github.com/hamed0406/pingmonitor/internal/notify"
	"github.com/hamed0406/pingmonitor/internal/retention"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if data, err := os.ReadFile(cfg.TargetsFile); err != nil {
		fail("TARGETS_FILE unreadable: " + err.Error())
	} else if snap, err := config.ParseTargets(data); err != nil {
		fail("TARGETS_FILE invalid: " + err.Error())
	} else if len(snap.Targets) == 0 {
		fail("TARGETS_FILE has no targets.")
	} else {
		ok(fmt.Sprintf("%s: %d targets", cfg.TargetsFile, len(snap.Targets)))
	}

	for name, dir := range map[string]string{"LOG_DIR": cfg.LogDir, "CSV_DIR": cfg.CSVDir} {
		if err := writable(dir); err != nil {
			fail(name + " not writable: " + err.Error())
		} else {
			ok(name + "=" + dir)
		}
	}

	switch {
	case cfg.DatabaseURL != "":
		if err := pingPostgres(ctx, cfg.DatabaseURL); err != nil {
			fail("DATABASE_URL unreachable: " + err.Error())
		} else {
			ok("DATABASE_URL reachable")
		}
	case cfg.SQLitePath != "":
		if err := writable(filepath.Dir(cfg.SQLitePath)); err != nil {
			fail("SQLITE_PATH directory not writable: " + err.Error())
		} else {
			ok("SQLITE_PATH=" + cfg.SQLitePath)
		}
	default:
		warn("DATABASE_URL and SQLITE_PATH empty; results are kept in memory and CSV only.")
	}

	if cfg.RedisAddr != "" {
		r := notify.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisChannel)
		if err := r.Ping(ctx); err != nil {
			warn("REDIS_ADDR unreachable: " + err.Error())
		} else {
			ok("REDIS_ADDR reachable")
		}
		_ = r.Close()
	}

	if cfg.SlackWebhook == "" && !cfg.SMTP.Enabled() && cfg.RedisAddr == "" {
		warn("no Slack, SMTP or Redis configured; alerts only reach the log and the store.")
	}

	if cfg.RetentionDays > 0 {
		if err := retention.ValidSchedule(cfg.RetentionSchedule); err != nil {
			fail("RETENTION_SCHEDULE invalid: " + err.Error())
		} else {
			ok(fmt.Sprintf("retention %d days, %s", cfg.RetentionDays, cfg.RetentionSchedule))
		}
	}

	if cfg.Addr != "" {
		if len(cfg.PublicAPIKeys) == 0 {
			warn("PUBLIC_API_KEYS is empty; /api routes will 401.")
		}
		if len(cfg.AdminAPIKeys) == 0 {
			warn("ADMIN_API_KEYS is empty; POST /api/reconcile is unusable.")
		}
		ok("API_ADDR=" + cfg.Addr)
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}

func writable(dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(f.Name())
}

func pingPostgres(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	return pool.Ping(ctx)
}
