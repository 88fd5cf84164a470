// Package config loads application configuration from the environment.
// A .env file is read first when present; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; required ones abort startup when missing.
type Config struct {
	Env          string        `env:"APP_ENV" env-default:"development"` // development | production
	Port         string        `env:"APP_PORT" env-default:"8080"`       // HTTP port to listen on
	LogLevel     string        `env:"LOG_LEVEL" env-default:"info"`      // zap level name
	LogDir       string        `env:"LOG_DIR" env-default:"logs"`        // activity log directory
	JWTSecret    string        `env:"JWT_SECRET" env-required:"true"`    // HS256 signing secret
	TokenTTL     time.Duration `env:"TOKEN_TTL" env-default:"24h"`       // access token and cookie lifetime
	BcryptCost   int           `env:"BCRYPT_COST" env-default:"10"`      // bcrypt cost factor
	CookieSecure bool          `env:"COOKIE_SECURE" env-default:"false"` // mark the token cookie Secure
	CORSOrigin   []string      `env:"CORS_ORIGIN" env-default:"http://localhost:5173" env-separator:","`
	RabbitMQURL  string        `env:"RABBITMQ_URL"` // empty disables the broker

	DB        Database
	Redis     Redis
	MinIO     MinIO
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// Database holds MySQL connection settings.
type Database struct {
	User    string `env:"DB_USER" env-required:"true"`
	Pass    string `env:"DB_PASS"`
	Host    string `env:"DB_HOST" env-default:"localhost"`
	Port    string `env:"DB_PORT" env-default:"3306"`
	Name    string `env:"DB_NAME" env-required:"true"`
	Migrate bool   `env:"DB_MIGRATE" env-default:"true"` // apply embedded migrations at startup
}

// MinIO holds object storage settings for avatars. An empty Endpoint
// disables uploads.
type MinIO struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"avatars"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
	PublicURL string `env:"MINIO_PUBLIC_URL"` // base URL for public objects; presigned URLs otherwise
}

// IsDevelopment reports whether error stacks may be exposed to clients.
func (c Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads path as a dotenv file (missing file is fine) and then the
// process environment into a Config.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("godotenv.Load: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("cleanenv.ReadEnv: %w", err)
	}
	cfg.RateLimit.normalize()
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 30 * time.Second
	}
	return cfg, nil
}
