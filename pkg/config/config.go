package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "gathergrid"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "GATHERGRID_DB_DSN"
	EnvDBHost = "GATHERGRID_DB_HOST"
	EnvDBUser = "GATHERGRID_DB_USER"
	EnvDBName = "GATHERGRID_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Sendgrid SendgridConfig
	PDF      PDFConfig
	Booking  BookingConfig
	Worker   WorkerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GATHERGRID_APP_ENV" required:"true"`
	Port         string `envconfig:"GATHERGRID_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GATHERGRID_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GATHERGRID_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GATHERGRID_DB_DSN"`
	Driver string `envconfig:"GATHERGRID_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GATHERGRID_DB_HOST"`
	LegacyPort     int    `envconfig:"GATHERGRID_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GATHERGRID_DB_USER"`
	LegacyPassword string `envconfig:"GATHERGRID_DB_PASSWORD"`
	LegacyName     string `envconfig:"GATHERGRID_DB_NAME"`
	LegacySSLMode  string `envconfig:"GATHERGRID_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GATHERGRID_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GATHERGRID_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GATHERGRID_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GATHERGRID_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"GATHERGRID_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GATHERGRID_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GATHERGRID_REDIS_ADDR"`
	Password     string        `envconfig:"GATHERGRID_REDIS_PASSWORD"`
	DB           int           `envconfig:"GATHERGRID_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GATHERGRID_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GATHERGRID_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GATHERGRID_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GATHERGRID_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GATHERGRID_REDIS_WRITE_TIMEOUT" default:"5s"`

	WebhookIdempotencyTTL time.Duration `envconfig:"GATHERGRID_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GATHERGRID_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GATHERGRID_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GATHERGRID_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey  string        `envconfig:"GATHERGRID_STRIPE_API_KEY"`
	Secret  string        `envconfig:"GATHERGRID_STRIPE_SECRET"`
	Env     string        `envconfig:"GATHERGRID_STRIPE_ENV" default:"test"`
	Timeout time.Duration `envconfig:"GATHERGRID_STRIPE_TIMEOUT" default:"15s"`

	// PlatformFeePercent is the application fee retained on split payments
	// (event ticket sales routed to organizer accounts).
	PlatformFeePercent int `envconfig:"GATHERGRID_STRIPE_PLATFORM_FEE_PERCENT" default:"10"`

	// Hosted KYC onboarding redirects for organizer payout accounts.
	OnboardingRefreshURL string `envconfig:"GATHERGRID_STRIPE_ONBOARDING_REFRESH_URL" default:"https://app.gathergrid.io/payouts/onboarding/refresh"`
	OnboardingReturnURL  string `envconfig:"GATHERGRID_STRIPE_ONBOARDING_RETURN_URL" default:"https://app.gathergrid.io/payouts/onboarding/complete"`
}

func (s StripeConfig) Environment() string {
	return strings.TrimSpace(strings.ToLower(s.Env))
}

type SendgridConfig struct {
	APIKey      string        `envconfig:"GATHERGRID_SENDGRID_API_KEY"`
	DefaultFrom string        `envconfig:"GATHERGRID_SENDGRID_FROM_EMAIL"`
	FromName    string        `envconfig:"GATHERGRID_SENDGRID_FROM_NAME" default:"GatherGrid"`
	Timeout     time.Duration `envconfig:"GATHERGRID_SENDGRID_TIMEOUT" default:"15s"`
}

type PDFConfig struct {
	BinaryPath string        `envconfig:"GATHERGRID_WKHTMLTOPDF_PATH"`
	Timeout    time.Duration `envconfig:"GATHERGRID_PDF_TIMEOUT" default:"20s"`
}

// BookingConfig holds ticket-booking policy knobs.
type BookingConfig struct {
	// RestoreSlotsOnCancel controls whether a cancelled booking returns its
	// reserved slots to the event pool.
	RestoreSlotsOnCancel bool `envconfig:"GATHERGRID_BOOKING_RESTORE_SLOTS_ON_CANCEL" default:"true"`
}

type WorkerConfig struct {
	PollInterval      time.Duration `envconfig:"GATHERGRID_WORKER_POLL_INTERVAL" default:"10s"`
	BatchSize         int           `envconfig:"GATHERGRID_WORKER_BATCH_SIZE" default:"20"`
	MaxAttempts       int           `envconfig:"GATHERGRID_WORKER_MAX_ATTEMPTS" default:"8"`
	BaseRetryInterval time.Duration `envconfig:"GATHERGRID_WORKER_BASE_RETRY_INTERVAL" default:"30s"`
	MaxRetryInterval  time.Duration `envconfig:"GATHERGRID_WORKER_MAX_RETRY_INTERVAL" default:"1h"`
	MetricsPort       string        `envconfig:"GATHERGRID_WORKER_METRICS_PORT" default:"9091"`
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
