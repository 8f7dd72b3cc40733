package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PAYFLOW_DB_DSN"
	EnvDBHost = "PAYFLOW_DB_HOST"
	EnvDBUser = "PAYFLOW_DB_USER"
	EnvDBName = "PAYFLOW_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Gateway      GatewayConfig
	Reconcile    ReconcileConfig
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
	Env          string `envconfig:"PAYFLOW_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"PAYFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PAYFLOW_SERVICE_KIND" default:"reconcile-worker"`
	Name string `envconfig:"PAYFLOW_SERVICE_NAME" default:"payment-service"`
}

type DBConfig struct {
	DSN    string `envconfig:"PAYFLOW_DB_DSN"`
	Driver string `envconfig:"PAYFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PAYFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYFLOW_DB_USER"`
	LegacyPassword string `envconfig:"PAYFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAYFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"PAYFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PAYFLOW_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PAYFLOW_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PAYFLOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PAYFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PAYFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentsTopic        string `envconfig:"PAYFLOW_PUBSUB_PAYMENTS_TOPIC" default:"payment-events"`
	AnalyticsSubscription string `envconfig:"PAYFLOW_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"PAYFLOW_BIGQUERY_DATASET" default:"payflow"`
	PaymentEventsTable string `envconfig:"PAYFLOW_BIGQUERY_PAYMENT_EVENTS_TABLE" default:"payment_events"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PAYFLOW_STRIPE_API_KEY"`
	Env    string `envconfig:"PAYFLOW_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"PAYFLOW_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"PAYFLOW_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"PAYFLOW_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GatewayConfig struct {
	Provider string `envconfig:"PAYFLOW_GATEWAY_PROVIDER" default:"stripe"`
}

type ReconcileConfig struct {
	Interval   time.Duration `envconfig:"PAYFLOW_RECONCILE_INTERVAL" default:"5m"`
	PendingAge time.Duration `envconfig:"PAYFLOW_RECONCILE_PENDING_AGE" default:"15m"`
	BatchSize  int           `envconfig:"PAYFLOW_RECONCILE_BATCH_SIZE" default:"100"`
	LockTTL    time.Duration `envconfig:"PAYFLOW_RECONCILE_LOCK_TTL" default:"10m"`
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
