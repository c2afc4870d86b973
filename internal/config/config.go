package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSessionSecretLen is the shortest HS256 secret accepted outside development.
const minSessionSecretLen = 32

// devSessionSecret signs development sessions when SESSION_SECRET is unset.
const devSessionSecret = "development-only-session-secret-change-me"

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DatabaseServiceURL  string        `mapstructure:"DATABASE_SERVICE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	SessionSecret       string        `mapstructure:"SESSION_SECRET"`
	AccessTokenTTL      time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL     time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	VerificationCodeTTL time.Duration `mapstructure:"VERIFICATION_CODE_TTL"`
	CookieSecure        bool          `mapstructure:"COOKIE_SECURE"`
	SiteURL             string        `mapstructure:"SITE_URL"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	ReadTimeout         time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout        time.Duration `mapstructure:"WRITE_TIMEOUT"`
	S3Bucket            string        `mapstructure:"S3_BUCKET"`
	S3Region            string        `mapstructure:"S3_REGION"`
	S3Endpoint          string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKey         string        `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey         string        `mapstructure:"S3_SECRET_KEY"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DATABASE_SERVICE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SESSION_SECRET", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "VERIFICATION_CODE_TTL",
	"COOKIE_SECURE", "SITE_URL", "CORS_ORIGINS", "READ_TIMEOUT", "WRITE_TIMEOUT",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("ACCESS_TOKEN_TTL", "1h")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h")
	v.SetDefault("VERIFICATION_CODE_TTL", "24h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("SITE_URL", "http://localhost:8000")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("READ_TIMEOUT", "15s")
	v.SetDefault("WRITE_TIMEOUT", "30s")
	v.SetDefault("S3_REGION", "us-east-1")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DatabaseServiceURL == "" {
		return nil, fmt.Errorf("DATABASE_SERVICE_URL is required")
	}

	if cfg.IsDev() && cfg.SessionSecret == "" {
		log.Println("WARNING: SESSION_SECRET not set, using the built-in development secret.")
		cfg.SessionSecret = devSessionSecret
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// the session secret must be explicit and long enough, and session cookies
// must carry the Secure attribute in production.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.SessionSecret == "" || c.SessionSecret == devSessionSecret {
			return fmt.Errorf("SESSION_SECRET must be set when ENV=%q", c.Env)
		}
		if len(c.SessionSecret) < minSessionSecretLen {
			return fmt.Errorf("SESSION_SECRET must be at least %d bytes, got %d", minSessionSecretLen, len(c.SessionSecret))
		}
	}
	if c.IsProduction() && !c.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true in production")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL and REFRESH_TOKEN_TTL must be positive")
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must not be shorter than ACCESS_TOKEN_TTL (%s)", c.RefreshTokenTTL, c.AccessTokenTTL)
	}
	if c.VerificationCodeTTL <= 0 {
		return fmt.Errorf("VERIFICATION_CODE_TTL must be positive")
	}
	if c.S3Bucket == "" && c.IsProduction() {
		return fmt.Errorf("S3_BUCKET is required in production")
	}
	return nil
}

// UsesS3 reports whether document blobs go to S3 instead of process memory.
func (c *Config) UsesS3() bool {
	return c.S3Bucket != ""
}
