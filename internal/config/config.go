package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr        string // status API bind address
	LogDir      string // logs directory
	LogLevel    string
	TargetsFile string // YAML target set

	DatabaseURL string // postgres://... ; empty falls back to SQLitePath
	SQLitePath  string // empty with no DatabaseURL means in-memory store
	CSVDir      string // per-target flat-file fallback

	ReconcileInterval time.Duration
	ProbeTimeout      time.Duration // cap; the effective timeout is min(interval, cap)
	SinkTimeout       time.Duration
	DNSServer         string // host:port; empty uses the OS resolver
	PingPrivileged    bool

	NotifyQueue   int
	NotifyTimeout time.Duration
	SlackWebhook  string
	SMTP          SMTPConfig
	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	RetentionDays     int
	RetentionSchedule string

	PublicAPIKeys []string
	AdminAPIKeys  []string
	PublicRPM     int
	PublicBurst   int
}

// SMTPConfig holds the mail relay settings for alert emails.
type SMTPConfig struct {
	Server   string
	Port     int
	Sender   string
	Password string
	Receiver string
}

func (s SMTPConfig) Enabled() bool {
	return s.Server != "" && s.Sender != "" && s.Receiver != ""
}

// NewViper returns a viper instance bound to the environment with every
// default registered. Callers may bind flags onto the same keys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("API_ADDR", "127.0.0.1:8080")
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TARGETS_FILE", "targets.yaml")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "")
	v.SetDefault("CSV_DIR", "results")
	v.SetDefault("RECONCILE_INTERVAL_MS", 2000)
	v.SetDefault("PROBE_TIMEOUT_MS", 5000)
	v.SetDefault("SINK_TIMEOUT_MS", 5000)
	v.SetDefault("DNS_SERVER", "")
	v.SetDefault("PING_PRIVILEGED", false)
	v.SetDefault("NOTIFY_QUEUE", 256)
	v.SetDefault("NOTIFY_TIMEOUT_MS", 10000)
	v.SetDefault("SLACK_WEBHOOK_URL", "")
	v.SetDefault("SMTP_SERVER", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SENDER_EMAIL", "")
	v.SetDefault("SENDER_PASSWORD", "")
	v.SetDefault("RECEIVER_EMAIL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CHANNEL", "pingmonitor.alerts")
	v.SetDefault("RETENTION_DAYS", 0)
	v.SetDefault("RETENTION_SCHEDULE", "@daily")
	v.SetDefault("PUBLIC_API_KEYS", "")
	v.SetDefault("ADMIN_API_KEYS", "")
	v.SetDefault("PUBLIC_RPM", 120)
	v.SetDefault("PUBLIC_BURST", 60)
	return v
}

func FromEnv() Config {
	return Load(NewViper())
}

// Load reads a Config out of v. Non-positive durations and sizes fall back
// to their defaults.
func Load(v *viper.Viper) Config {
	cfg := Config{
		Addr:        v.GetString("API_ADDR"),
		LogDir:      v.GetString("LOG_DIR"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		TargetsFile: v.GetString("TARGETS_FILE"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		SQLitePath:  v.GetString("SQLITE_PATH"),
		CSVDir:      v.GetString("CSV_DIR"),

		ReconcileInterval: millis(v.GetInt("RECONCILE_INTERVAL_MS"), 2*time.Second),
		ProbeTimeout:      millis(v.GetInt("PROBE_TIMEOUT_MS"), 5*time.Second),
		SinkTimeout:       millis(v.GetInt("SINK_TIMEOUT_MS"), 5*time.Second),
		DNSServer:         v.GetString("DNS_SERVER"),
		PingPrivileged:    v.GetBool("PING_PRIVILEGED"),

		NotifyQueue:   positive(v.GetInt("NOTIFY_QUEUE"), 256),
		NotifyTimeout: millis(v.GetInt("NOTIFY_TIMEOUT_MS"), 10*time.Second),
		SlackWebhook:  v.GetString("SLACK_WEBHOOK_URL"),
		SMTP: SMTPConfig{
			Server:   v.GetString("SMTP_SERVER"),
			Port:     positive(v.GetInt("SMTP_PORT"), 587),
			Sender:   v.GetString("SENDER_EMAIL"),
			Password: v.GetString("SENDER_PASSWORD"),
			Receiver: v.GetString("RECEIVER_EMAIL"),
		},
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisChannel:  v.GetString("REDIS_CHANNEL"),

		RetentionDays:     v.GetInt("RETENTION_DAYS"),
		RetentionSchedule: v.GetString("RETENTION_SCHEDULE"),

		PublicAPIKeys: splitList(v.GetString("PUBLIC_API_KEYS")),
		AdminAPIKeys:  splitList(v.GetString("ADMIN_API_KEYS")),
		PublicRPM:     v.GetInt("PUBLIC_RPM"),
		PublicBurst:   positive(v.GetInt("PUBLIC_BURST"), 1),
	}
	if cfg.RetentionDays < 0 {
		cfg.RetentionDays = 0
	}
	return cfg
}

func millis(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func positive(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
