package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Sync      SyncConfig
	Reconcile ReconcileConfig
	Ledger    LedgerConfig
	Cron      CronConfig
	Channels  ChannelsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Reconcile.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHANNELSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"CHANNELSYNC_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHANNELSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHANNELSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CHANNELSYNC_DB_DSN"`
	Driver string `envconfig:"CHANNELSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHANNELSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"CHANNELSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHANNELSYNC_DB_USER"`
	LegacyPassword string `envconfig:"CHANNELSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHANNELSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHANNELSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHANNELSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHANNELSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHANNELSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHANNELSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"CHANNELSYNC_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHANNELSYNC_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHANNELSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"CHANNELSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHANNELSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHANNELSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHANNELSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHANNELSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHANNELSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHANNELSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SyncConfig tunes the outbound sync scheduler.
type SyncConfig struct {
	BatchSize        int           `envconfig:"CHANNELSYNC_SYNC_BATCH_SIZE" default:"25"`
	DispatchInterval time.Duration `envconfig:"CHANNELSYNC_SYNC_DISPATCH_INTERVAL" default:"2s"`
	BackoffBase      time.Duration `envconfig:"CHANNELSYNC_SYNC_BACKOFF_BASE" default:"500ms"`
	BackoffCap       time.Duration `envconfig:"CHANNELSYNC_SYNC_BACKOFF_CAP" default:"2m"`
	FailureThreshold int           `envconfig:"CHANNELSYNC_SYNC_FAILURE_THRESHOLD" default:"5"`
	CooldownWindow   time.Duration `envconfig:"CHANNELSYNC_SYNC_COOLDOWN_WINDOW" default:"1m"`
	MaxAttempts      int           `envconfig:"CHANNELSYNC_SYNC_MAX_ATTEMPTS" default:"8"`
	AdapterTimeout   time.Duration `envconfig:"CHANNELSYNC_SYNC_ADAPTER_TIMEOUT" default:"10s"`
}

// ReconcileConfig controls inbound event handling.
type ReconcileConfig struct {
	// ConflictPolicy decides what happens to the losing booking of a
	// double-booking: auto_cancel pushes a cancellation back to the losing
	// channel, manual parks it for operator resolution.
	ConflictPolicy string `envconfig:"CHANNELSYNC_RECONCILE_CONFLICT_POLICY" default:"auto_cancel"`
}

func (r ReconcileConfig) validate() error {
	switch r.ConflictPolicy {
	case ConflictPolicyAutoCancel, ConflictPolicyManual:
		return nil
	}
	return fmt.Errorf("invalid conflict policy %q (expected %s or %s)",
		r.ConflictPolicy, ConflictPolicyAutoCancel, ConflictPolicyManual)
}

// LedgerConfig controls inventory seeding and change-log retention.
type LedgerConfig struct {
	InitHorizonDays    int `envconfig:"CHANNELSYNC_LEDGER_INIT_HORIZON_DAYS" default:"365"`
	ChangeLogRetention int `envconfig:"CHANNELSYNC_LEDGER_CHANGELOG_RETENTION_DAYS" default:"90"`
}

// ChannelsConfig holds the per-OTA API endpoints.
type ChannelsConfig struct {
	BookingComURL string `envconfig:"CHANNELSYNC_CHANNEL_BOOKING_COM_URL"`
	ExpediaURL    string `envconfig:"CHANNELSYNC_CHANNEL_EXPEDIA_URL"`
	AgodaURL      string `envconfig:"CHANNELSYNC_CHANNEL_AGODA_URL"`
	AirbnbURL     string `envconfig:"CHANNELSYNC_CHANNEL_AIRBNB_URL"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CHANNELSYNC_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"CHANNELSYNC_CRON_LOCK_TTL" default:"2h"`
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
