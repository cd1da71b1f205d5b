package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "wavecraft"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Square        SquareConfig
	Keygen        KeygenConfig
	Releases      ReleasesConfig
	Downloads     DownloadsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WAVECRAFT_APP_ENV" required:"true"`
	Port         string `envconfig:"WAVECRAFT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WAVECRAFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WAVECRAFT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WAVECRAFT_DB_DSN" required:"true"`
	Driver string `envconfig:"WAVECRAFT_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"WAVECRAFT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WAVECRAFT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WAVECRAFT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WAVECRAFT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WAVECRAFT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WAVECRAFT_REDIS_ADDR"`
	Password     string        `envconfig:"WAVECRAFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"WAVECRAFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WAVECRAFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WAVECRAFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WAVECRAFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WAVECRAFT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WAVECRAFT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"WAVECRAFT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"WAVECRAFT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"WAVECRAFT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"WAVECRAFT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WAVECRAFT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WAVECRAFT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WAVECRAFT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WAVECRAFT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WAVECRAFT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"WAVECRAFT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"WAVECRAFT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"WAVECRAFT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WAVECRAFT_AUTO_MIGRATE" default:"false"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"WAVECRAFT_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"WAVECRAFT_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"WAVECRAFT_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type KeygenConfig struct {
	BaseURL   string        `envconfig:"WAVECRAFT_KEYGEN_BASE_URL" default:"https://api.keygen.sh/v1"`
	AccountID string        `envconfig:"WAVECRAFT_KEYGEN_ACCOUNT_ID"`
	Token     string        `envconfig:"WAVECRAFT_KEYGEN_TOKEN"`
	Timeout   time.Duration `envconfig:"WAVECRAFT_KEYGEN_TIMEOUT" default:"10s"`
}

type ReleasesConfig struct {
	Repo        string        `envconfig:"WAVECRAFT_RELEASES_REPO" default:"wavecraftaudio/wavecraft-plugin"`
	ProductSlug string        `envconfig:"WAVECRAFT_RELEASES_PRODUCT_SLUG" default:"wavecraft"`
	AssetExt    string        `envconfig:"WAVECRAFT_RELEASES_ASSET_EXT" default:".zip"`
	GitHubToken string        `envconfig:"WAVECRAFT_RELEASES_GITHUB_TOKEN"`
	CacheTTL    time.Duration `envconfig:"WAVECRAFT_RELEASES_CACHE_TTL" default:"5m"`
}

type DownloadsConfig struct {
	SigningSecret string        `envconfig:"WAVECRAFT_DOWNLOAD_SIGNING_SECRET"`
	TokenTTL      time.Duration `envconfig:"WAVECRAFT_DOWNLOAD_TOKEN_TTL" default:"60s"`
}

// SigningSecretSource labels where the download signing secret came from.
type SigningSecretSource string

const (
	SecretSourceDedicated SigningSecretSource = "dedicated"
	SecretSourceKeygen    SigningSecretSource = "keygen_token"
	SecretSourceJWT       SigningSecretSource = "jwt_secret"
	SecretSourceNone      SigningSecretSource = "none"
)

// ResolveSigningSecret walks the fallback chain for the download token secret.
// The chain is a deployment convenience: a dedicated secret is preferred, and
// production refuses to start when the chain is empty.
func (c *Config) ResolveSigningSecret() (string, SigningSecretSource, error) {
	if s := strings.TrimSpace(c.Downloads.SigningSecret); s != "" {
		return s, SecretSourceDedicated, nil
	}
	if s := strings.TrimSpace(c.Keygen.Token); s != "" {
		return s, SecretSourceKeygen, nil
	}
	if s := strings.TrimSpace(c.JWT.Secret); s != "" {
		return s, SecretSourceJWT, nil
	}
	return "", SecretSourceNone, fmt.Errorf("no download signing secret configured")
}
