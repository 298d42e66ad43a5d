package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	SSO        SSOConfig
	Downstream DownstreamConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name string
	Env  string
	// Host defaults to loopback: /sso/token serves the default identity's token.
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SSOConfig locates the identity provider and the default identity.
type SSOConfig struct {
	BaseEndpoint       string
	LoginEndpoint      string
	DefaultEmail       string
	DefaultPassword    string
	HTTPTimeoutSeconds int
	TokenSkewSeconds   int
	MaxRequestAttempts int
}

// DownstreamConfig points the proxy at the service that consumes the token.
type DownstreamConfig struct {
	BaseURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sso-requester"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		SSO: SSOConfig{
			BaseEndpoint:       os.Getenv("SSO_BASE_ENDPOINT"),
			LoginEndpoint:      getEnv("SSO_LOGIN_ENDPOINT", "/auth/login"),
			DefaultEmail:       os.Getenv("SSO_DEFAULT_EMAIL"),
			DefaultPassword:    os.Getenv("SSO_DEFAULT_PASSWORD"),
			HTTPTimeoutSeconds: getEnvAsInt("SSO_HTTP_TIMEOUT_SECONDS", 30),
			TokenSkewSeconds:   getEnvAsInt("SSO_TOKEN_SKEW_SECONDS", 30),
			MaxRequestAttempts: getEnvAsInt("SSO_MAX_REQUEST_ATTEMPTS", 10),
		},
		Downstream: DownstreamConfig{
			BaseURL: os.Getenv("DOWNSTREAM_BASE_URL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.SSO.BaseEndpoint == "" {
		errs = append(errs, errors.New("SSO_BASE_ENDPOINT is required"))
	}
	if c.SSO.TokenSkewSeconds < 0 {
		errs = append(errs, fmt.Errorf("invalid SSO_TOKEN_SKEW_SECONDS: %d", c.SSO.TokenSkewSeconds))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// HTTPTimeout bounds a single call to the provider or the downstream service.
func (s SSOConfig) HTTPTimeout() time.Duration {
	if s.HTTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.HTTPTimeoutSeconds) * time.Second
}

// TokenSkew returns the safety margin applied before a token's expiry.
func (s SSOConfig) TokenSkew() time.Duration {
	return time.Duration(s.TokenSkewSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// FakeSSOConfig configures the local development SSO provider.
type FakeSSOConfig struct {
	Addr            string
	Secret          string
	TokenTTLSeconds int
	BcryptCost      int
	Email           string
	Password        string
}

// LoadFakeSSO reads the development provider settings. The account defaults
// to the service's own SSO_DEFAULT_* identity so both binaries share one .env.
func LoadFakeSSO() FakeSSOConfig {
	_ = godotenv.Load()

	return FakeSSOConfig{
		Addr:            getEnv("FAKESSO_ADDR", "127.0.0.1:9000"),
		Secret:          getEnv("FAKESSO_SECRET", "dev-secret"),
		TokenTTLSeconds: getEnvAsInt("FAKESSO_TOKEN_TTL_SECONDS", 3600),
		BcryptCost:      getEnvAsInt("FAKESSO_BCRYPT_COST", 10),
		Email:           getEnv("SSO_DEFAULT_EMAIL", "dev@example.com"),
		Password:        getEnv("SSO_DEFAULT_PASSWORD", "dev-password"),
	}
}

// TokenTTL returns the lifetime of issued tokens.
func (f FakeSSOConfig) TokenTTL() time.Duration {
	return time.Duration(f.TokenTTLSeconds) * time.Second
}
