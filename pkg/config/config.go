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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Ledger        LedgerConfig
	FeatureFlags  FeatureFlagsConfig
	A2E           A2EConfig
	FAL           FALConfig
	Replicate     ReplicateConfig
	OpenAI        OpenAIConfig
	Stripe        StripeConfig
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
	Env          string `envconfig:"AKTIONFILM_APP_ENV" required:"true"`
	Port         string `envconfig:"AKTIONFILM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AKTIONFILM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AKTIONFILM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AKTIONFILM_DB_DSN"`
	Driver string `envconfig:"AKTIONFILM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AKTIONFILM_DB_HOST"`
	LegacyPort     int    `envconfig:"AKTIONFILM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AKTIONFILM_DB_USER"`
	LegacyPassword string `envconfig:"AKTIONFILM_DB_PASSWORD"`
	LegacyName     string `envconfig:"AKTIONFILM_DB_NAME"`
	LegacySSLMode  string `envconfig:"AKTIONFILM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AKTIONFILM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AKTIONFILM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AKTIONFILM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AKTIONFILM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AKTIONFILM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AKTIONFILM_REDIS_ADDR"`
	Password     string        `envconfig:"AKTIONFILM_REDIS_PASSWORD"`
	DB           int           `envconfig:"AKTIONFILM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AKTIONFILM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AKTIONFILM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AKTIONFILM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AKTIONFILM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AKTIONFILM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AKTIONFILM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AKTIONFILM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AKTIONFILM_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AKTIONFILM_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AKTIONFILM_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AKTIONFILM_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AKTIONFILM_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AKTIONFILM_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"AKTIONFILM_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"AKTIONFILM_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"AKTIONFILM_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"AKTIONFILM_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"AKTIONFILM_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"AKTIONFILM_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// LedgerConfig carries the fixed credit cost per paid action kind plus the
// operator accounts that bypass billing entirely.
type LedgerConfig struct {
	ExemptUserIDs   []string      `envconfig:"AKTIONFILM_LEDGER_EXEMPT_USER_IDS"`
	SignupGrant     int64         `envconfig:"AKTIONFILM_LEDGER_SIGNUP_GRANT" default:"50"`
	AvatarVideoCost int64         `envconfig:"AKTIONFILM_LEDGER_AVATAR_VIDEO_COST" default:"75"`
	AvatarImageCost int64         `envconfig:"AKTIONFILM_LEDGER_AVATAR_IMAGE_COST" default:"150"`
	PresetCost      int64         `envconfig:"AKTIONFILM_LEDGER_PRESET_COST" default:"25"`
	SpeechCost      int64         `envconfig:"AKTIONFILM_LEDGER_SPEECH_COST" default:"5"`
	WebhookEventTTL time.Duration `envconfig:"AKTIONFILM_LEDGER_WEBHOOK_EVENT_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AKTIONFILM_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AKTIONFILM_AUTO_MIGRATE" default:"false"`
}

type A2EConfig struct {
	APIKey  string        `envconfig:"AKTIONFILM_A2E_API_KEY"`
	BaseURL string        `envconfig:"AKTIONFILM_A2E_BASE_URL" default:"https://video.a2e.ai"`
	Timeout time.Duration `envconfig:"AKTIONFILM_A2E_TIMEOUT" default:"60s"`
}

type FALConfig struct {
	APIKey  string        `envconfig:"AKTIONFILM_FAL_API_KEY"`
	BaseURL string        `envconfig:"AKTIONFILM_FAL_BASE_URL" default:"https://queue.fal.run"`
	Timeout time.Duration `envconfig:"AKTIONFILM_FAL_TIMEOUT" default:"60s"`
}

type ReplicateConfig struct {
	APIToken string        `envconfig:"AKTIONFILM_REPLICATE_API_TOKEN"`
	BaseURL  string        `envconfig:"AKTIONFILM_REPLICATE_BASE_URL" default:"https://api.replicate.com"`
	Timeout  time.Duration `envconfig:"AKTIONFILM_REPLICATE_TIMEOUT" default:"60s"`
}

type OpenAIConfig struct {
	APIKey  string        `envconfig:"AKTIONFILM_OPENAI_API_KEY"`
	BaseURL string        `envconfig:"AKTIONFILM_OPENAI_BASE_URL" default:"https://api.openai.com"`
	Timeout time.Duration `envconfig:"AKTIONFILM_OPENAI_TIMEOUT" default:"120s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"AKTIONFILM_STRIPE_API_KEY"`
	Secret string `envconfig:"AKTIONFILM_STRIPE_SECRET"`
	Env    string `envconfig:"AKTIONFILM_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
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
