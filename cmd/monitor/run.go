package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/pingmonitor/internal/config"
	"github.com/hamed0406/pingmonitor/internal/httpapi"
	apimw "github.com/hamed0406/pingmonitor/internal/httpapi/middleware"
	"github.com/hamed0406/pingmonitor/internal/logging"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/notify"
	"github.com/hamed0406/pingmonitor/internal/probe"
	"github.com/hamed0406/pingmonitor/internal/repo"
	"github.com/hamed0406/pingmonitor/internal/repo/csvlog"
	"github.com/hamed0406/pingmonitor/internal/repo/memory"
	"github.com/hamed0406/pingmonitor/internal/repo/postgres"
	"github.com/hamed0406/pingmonitor/internal/repo/sqlite"
	"github.com/hamed0406/pingmonitor/internal/retention"
	"github.com/hamed0406/pingmonitor/internal/scheduler"
	"github.com/hamed0406/pingmonitor/internal/sink"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Probe every configured target until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, config.Load(v))
		},
	}
	f := cmd.Flags()
	f.String("addr", v.GetString("API_ADDR"), "status API bind address; empty disables it")
	f.String("database-url", v.GetString("DATABASE_URL"), "postgres DSN for structured results")
	f.String("sqlite-path", v.GetString("SQLITE_PATH"), "sqlite file used when no database URL is set")
	f.String("csv-dir", v.GetString("CSV_DIR"), "directory for per-target CSV files")
	f.String("dns-server", v.GetString("DNS_SERVER"), "query this DNS server instead of the system resolver")
	mustBind(v, cmd, map[string]string{
		"addr":         "API_ADDR",
		"database-url": "DATABASE_URL",
		"sqlite-path":  "SQLITE_PATH",
		"csv-dir":      "CSV_DIR",
		"dns-server":   "DNS_SERVER",
	})
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	m := metrics.New()

	store, storeName, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("store_close_error", zap.Error(err))
		}
	}()

	csv, err := csvlog.New(cfg.CSVDir)
	if err != nil {
		return fmt.Errorf("csv dir: %w", err)
	}
	defer func() { _ = csv.Close() }()

	rec := sink.NewRecorder(log, m, cfg.SinkTimeout,
		sink.Backend{Name: storeName, Store: store},
		sink.Backend{Name: "csv", Store: csv},
	)

	channels, closeChannels := alertChannels(ctx, cfg, log, store)
	defer closeChannels()
	disp := notify.NewDispatcher(log, m, cfg.NotifyQueue, cfg.NotifyTimeout, channels...)

	var resolver probe.Resolver = probe.NewNetResolver()
	if cfg.DNSServer != "" {
		resolver = probe.NewServerResolver(cfg.DNSServer, cfg.ProbeTimeout)
	}
	prober := probe.NewProber(resolver, cfg.ProbeTimeout, cfg.PingPrivileged)

	wake := make(chan struct{}, 1)
	poke := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	recon := scheduler.NewReconciler(config.NewFileSource(cfg.TargetsFile), log, m)
	sup := scheduler.NewSupervisor(prober, rec, disp, log, m)
	engine := scheduler.NewEngine(recon, sup, cfg.ReconcileInterval, wake, log)
	purge := retention.New(store, cfg.RetentionDays, cfg.RetentionSchedule, log, m)

	log.Info("monitor_starting",
		zap.String("targets_file", cfg.TargetsFile),
		zap.String("store", storeName),
		zap.String("csv_dir", cfg.CSVDir),
		zap.Strings("channels", disp.Channels()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return disp.Run(gctx) })
	g.Go(func() error { return purge.Run(gctx) })
	g.Go(func() error {
		if err := config.Watch(gctx, log, cfg.TargetsFile, wake); err != nil {
			// polling still picks up edits
			log.Warn("targets_watch_unavailable", zap.Error(err))
		}
		return nil
	})
	if cfg.Addr != "" {
		api := httpapi.NewServer(log, sup, m.Handler(), poke)
		keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           api.Router(keys, cfg.PublicRPM, cfg.PublicBurst),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("api_listening", zap.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("monitor_stopped", zap.Error(err))
	return err
}

// openStore picks the structured backend: postgres when a DSN is set, then
// sqlite, then memory.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, string, error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, "", fmt.Errorf("postgres: %w", err)
		}
		return s, "postgres", nil
	case cfg.SQLitePath != "":
		s, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			return nil, "", fmt.Errorf("sqlite: %w", err)
		}
		return s, "sqlite", nil
	default:
		log.Warn("store_in_memory", zap.String("hint", "set DATABASE_URL or SQLITE_PATH to keep results"))
		return memory.New(), "memory", nil
	}
}

// alertChannels builds the notification channels the configuration enables.
// The log and store channels are always present.
func alertChannels(ctx context.Context, cfg config.Config, log *zap.Logger, store repo.AlertStore) ([]notify.Notifier, func()) {
	chans := []notify.Notifier{notify.LogChannel{Log: log}, notify.StoreChannel{Store: store}}
	closers := []func() error{}

	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		chans = append(chans, s)
	}
	if cfg.SMTP.Enabled() {
		chans = append(chans, &notify.Email{
			Server:   cfg.SMTP.Server,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.Sender,
			Password: cfg.SMTP.Password,
			To:       []string{cfg.SMTP.Receiver},
		})
	}
	if cfg.RedisAddr != "" {
		r := notify.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisChannel)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := r.Ping(pingCtx); err != nil {
			// go-redis reconnects on the next publish; keep the channel
			log.Warn("redis_unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()
		chans = append(chans, r)
		closers = append(closers, r.Close)
	}
	return chans, func() {
		for _, c := range closers {
			_ = c()
		}
	}
}
