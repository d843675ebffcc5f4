// Package config loads runtime settings from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/famomatic/loomdl/client"
	"github.com/famomatic/loomdl/internal/cookies"
	"github.com/famomatic/loomdl/internal/platform/metrics"
)

// EnvPrefix prefixes every recognized environment variable.
const EnvPrefix = "LOOMDL"

// Settings are the engine settings. Each field maps to LOOMDL_<TAG>.
type Settings struct {
	OutputDir      string        `envconfig:"OUTPUT_DIR"      default:"downloads"`
	LedgerPath     string        `envconfig:"LEDGER_PATH"     default:"downloaded.log"`
	Concurrency    int           `envconfig:"CONCURRENCY"     default:"5"`
	Pacing         time.Duration `envconfig:"PACING"          default:"5s"`
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS"    default:"5"`
	Resume         bool          `envconfig:"RESUME"          default:"true"`
	FFmpegPath     string        `envconfig:"FFMPEG_PATH"     default:"ffmpeg"`
	ProxyURL       string        `envconfig:"PROXY_URL"`
	UserAgent      string        `envconfig:"USER_AGENT"`
	CookiesFile    string        `envconfig:"COOKIES_FILE"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT"`
	LogLevel       string        `envconfig:"LOG_LEVEL"       default:"info"`
	LogFormat      string        `envconfig:"LOG_FORMAT"      default:"text"`
	MetricsAddr    string        `envconfig:"METRICS_ADDR"`
	DebugDir       string        `envconfig:"DEBUG_DIR"`
	BaseURL        string        `envconfig:"BASE_URL"`
	CDNBaseURL     string        `envconfig:"CDN_BASE_URL"`
}

// Load reads .env files into the process environment without overriding
// variables that are already set. With no paths, ".env" is read if present.
func Load(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// FromEnv decodes Settings from LOOMDL_* variables and validates them.
func FromEnv() (Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing environment variables: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	switch {
	case s.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	case s.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be at least 1, got %d", s.MaxAttempts)
	case s.Pacing < 0:
		return fmt.Errorf("pacing must not be negative, got %s", s.Pacing)
	case s.RequestTimeout < 0:
		return fmt.Errorf("request timeout must not be negative, got %s", s.RequestTimeout)
	}
	switch strings.ToLower(s.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", s.LogFormat)
	}
	return nil
}

// ClientConfig maps settings onto the engine configuration. A zero Pacing
// disables pacing. A cookies file, when set, is loaded into the HTTP
// client's jar.
func (s Settings) ClientConfig(log *slog.Logger, m *metrics.Metrics) (client.Config, error) {
	pacing := s.Pacing
	if pacing == 0 {
		pacing = -1
	}
	cfg := client.Config{
		ProxyURL:       s.ProxyURL,
		UserAgent:      s.UserAgent,
		OutputDir:      s.OutputDir,
		LedgerPath:     s.LedgerPath,
		Concurrency:    s.Concurrency,
		Pacing:         pacing,
		MaxAttempts:    s.MaxAttempts,
		DisableResume:  !s.Resume,
		FFmpegPath:     s.FFmpegPath,
		RequestTimeout: s.RequestTimeout,
		DebugDir:       s.DebugDir,
		BaseURL:        s.BaseURL,
		CDNBaseURL:     s.CDNBaseURL,
		Logger:         log,
		Metrics:        m,
	}
	if s.CookiesFile != "" {
		jar, err := cookies.LoadJar(s.CookiesFile)
		if err != nil {
			return client.Config{}, fmt.Errorf("load cookies %s: %w", s.CookiesFile, err)
		}
		cfg.CookieJar = jar
	}
	return cfg, nil
}
