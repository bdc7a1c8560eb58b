package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	FeatureFlags  FeatureFlagsConfig
	Email         EmailConfig
	Sendgrid      SendgridConfig
	SMTP          SMTPConfig
	Notifications NotificationsConfig
	Cron          CronConfig
	Cache         CacheConfig
	Webhooks      WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	} else if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Email.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"GROUPBUY_APP_ENV" required:"true"`
	Port         string   `envconfig:"GROUPBUY_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"GROUPBUY_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"GROUPBUY_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"GROUPBUY_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GROUPBUY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GROUPBUY_DB_DSN"`
	Driver string `envconfig:"GROUPBUY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GROUPBUY_DB_HOST"`
	LegacyPort     int    `envconfig:"GROUPBUY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GROUPBUY_DB_USER"`
	LegacyPassword string `envconfig:"GROUPBUY_DB_PASSWORD"`
	LegacyName     string `envconfig:"GROUPBUY_DB_NAME"`
	LegacySSLMode  string `envconfig:"GROUPBUY_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"GROUPBUY_SQLITE_PATH" default:"file:groupbuy.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"GROUPBUY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROUPBUY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROUPBUY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROUPBUY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GROUPBUY_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROUPBUY_REDIS_URL"`
	Address      string        `envconfig:"GROUPBUY_REDIS_ADDR"`
	Password     string        `envconfig:"GROUPBUY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROUPBUY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROUPBUY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROUPBUY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROUPBUY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROUPBUY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROUPBUY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured. Without one the
// cache degrades to store reads and cron locking is process-local.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GROUPBUY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GROUPBUY_AUTO_MIGRATE" default:"false"`
}

type EmailConfig struct {
	Provider       string        `envconfig:"GROUPBUY_EMAIL_PROVIDER" default:"log"`
	FromAddress    string        `envconfig:"GROUPBUY_EMAIL_FROM" default:"orders@groupbuy.local"`
	FromName       string        `envconfig:"GROUPBUY_EMAIL_FROM_NAME" default:"Group Buy"`
	RequestTimeout time.Duration `envconfig:"GROUPBUY_EMAIL_REQUEST_TIMEOUT" default:"10s"`
}

func (e EmailConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Provider)) {
	case EmailProviderLog, EmailProviderSendgrid, EmailProviderSMTP:
		return nil
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvEmailProvider, EmailProviderLog, EmailProviderSendgrid, EmailProviderSMTP)
	}
}

// ProviderName returns the normalized provider name.
func (e EmailConfig) ProviderName() string {
	return strings.ToLower(strings.TrimSpace(e.Provider))
}

type SendgridConfig struct {
	APIKey  string `envconfig:"GROUPBUY_SENDGRID_API_KEY"`
	BaseURL string `envconfig:"GROUPBUY_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
}

type SMTPConfig struct {
	Host     string `envconfig:"GROUPBUY_SMTP_HOST"`
	Port     int    `envconfig:"GROUPBUY_SMTP_PORT" default:"587"`
	Username string `envconfig:"GROUPBUY_SMTP_USERNAME"`
	Password string `envconfig:"GROUPBUY_SMTP_PASSWORD"`
}

type NotificationsConfig struct {
	FanOutConcurrency int           `envconfig:"GROUPBUY_NOTIFICATIONS_FANOUT_CONCURRENCY" default:"8"`
	MaxEmailRetries   int           `envconfig:"GROUPBUY_NOTIFICATIONS_MAX_EMAIL_RETRIES" default:"3"`
	RetryBatchSize    int           `envconfig:"GROUPBUY_NOTIFICATIONS_RETRY_BATCH_SIZE" default:"100"`
	PendingTimeout    time.Duration `envconfig:"GROUPBUY_NOTIFICATIONS_PENDING_EMAIL_TIMEOUT" default:"15m"`
	OutboxGracePeriod time.Duration `envconfig:"GROUPBUY_NOTIFICATIONS_OUTBOX_GRACE" default:"2m"`
	OutboxBatchSize   int           `envconfig:"GROUPBUY_NOTIFICATIONS_OUTBOX_BATCH_SIZE" default:"50"`
	OutboxMaxAttempts int           `envconfig:"GROUPBUY_NOTIFICATIONS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays     int           `envconfig:"GROUPBUY_NOTIFICATIONS_RETENTION_DAYS" default:"30"`
	OutboxRetainDays  int           `envconfig:"GROUPBUY_NOTIFICATIONS_OUTBOX_RETENTION_DAYS" default:"14"`
	ClaimTTL          time.Duration `envconfig:"GROUPBUY_NOTIFICATIONS_CLAIM_TTL" default:"10m"`
}

// Retention is how long read notifications are kept. Zero lets the cleanup
// job apply its own default.
func (n NotificationsConfig) Retention() time.Duration { return days(n.RetentionDays) }

// OutboxRetention is how long published outbox events are kept.
func (n NotificationsConfig) OutboxRetention() time.Duration { return days(n.OutboxRetainDays) }

func days(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * 24 * time.Hour
}

type CronConfig struct {
	Interval     time.Duration `envconfig:"GROUPBUY_CRON_INTERVAL" default:"1m"`
	LockTTL      time.Duration `envconfig:"GROUPBUY_CRON_LOCK_TTL" default:"5m"`
	ExpiryBatch  int           `envconfig:"GROUPBUY_CRON_EXPIRY_BATCH_SIZE" default:"50"`
	RunOnStartup bool          `envconfig:"GROUPBUY_CRON_RUN_ON_STARTUP" default:"true"`
}

// WebhooksConfig holds the shared secrets used to verify inbound webhooks.
// An empty secret disables verification for that hook.
type WebhooksConfig struct {
	PaymentSecret string `envconfig:"GROUPBUY_WEBHOOK_PAYMENT_SECRET"`
	EmailSecret   string `envconfig:"GROUPBUY_WEBHOOK_EMAIL_SECRET"`
}

type CacheConfig struct {
	ProductTTL    time.Duration `envconfig:"GROUPBUY_CACHE_PRODUCT_TTL" default:"5m"`
	GroupOrderTTL time.Duration `envconfig:"GROUPBUY_CACHE_GROUP_ORDER_TTL" default:"15s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
