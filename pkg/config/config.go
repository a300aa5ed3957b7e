package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Retry    RetryConfig
	Upload   UploadConfig
	Journal  JournalConfig
	Realtime RealtimeConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SAFLIIX_APP_ENV" required:"true"`
	Port         string `envconfig:"SAFLIIX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SAFLIIX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAFLIIX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points the console at the SaFliix REST backend.
type BackendConfig struct {
	BaseURL       string        `envconfig:"SAFLIIX_BACKEND_BASE_URL" required:"true"`
	Timeout       time.Duration `envconfig:"SAFLIIX_BACKEND_TIMEOUT" default:"30s"`
	UploadTimeout time.Duration `envconfig:"SAFLIIX_BACKEND_UPLOAD_TIMEOUT" default:"10m"`
	BearerToken   string        `envconfig:"SAFLIIX_BACKEND_BEARER_TOKEN"`
}

func (b BackendConfig) validate() error {
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend base url must be http(s), got %q", b.BaseURL)
	}
	return nil
}

// RetryConfig bounds the per-step retry policy.
type RetryConfig struct {
	MaxRetries int           `envconfig:"SAFLIIX_RETRY_MAX_RETRIES" default:"2"`
	BaseDelay  time.Duration `envconfig:"SAFLIIX_RETRY_BASE_DELAY" default:"500ms"`
	Factor     float64       `envconfig:"SAFLIIX_RETRY_FACTOR" default:"2"`
}

type UploadConfig struct {
	Parallel   bool          `envconfig:"SAFLIIX_UPLOAD_PARALLEL" default:"false"`
	ResetDelay time.Duration `envconfig:"SAFLIIX_UPLOAD_RESET_DELAY" default:"2s"`
}

type JournalConfig struct {
	Enabled bool   `envconfig:"SAFLIIX_JOURNAL_ENABLED" default:"true"`
	Path    string `envconfig:"SAFLIIX_JOURNAL_PATH" default:"safliix-console.db"`
}

// RealtimeConfig configures the optional progress websocket. An empty URL
// disables publishing entirely.
type RealtimeConfig struct {
	URL              string        `envconfig:"SAFLIIX_REALTIME_URL"`
	HandshakeTimeout time.Duration `envconfig:"SAFLIIX_REALTIME_HANDSHAKE_TIMEOUT" default:"5s"`
	WriteTimeout     time.Duration `envconfig:"SAFLIIX_REALTIME_WRITE_TIMEOUT" default:"5s"`
}

func (r RealtimeConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}
