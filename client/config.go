package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/famomatic/loomdl/internal/muxer"
	"github.com/famomatic/loomdl/internal/platform/metrics"
)

const (
	DefaultOutputDir   = "downloads"
	DefaultLedgerPath  = "downloaded.log"
	DefaultConcurrency = 5
	DefaultPacing      = 5 * time.Second
	DefaultMaxAttempts = 5
)

// Remuxer fetches a segmented stream into a single container file.
// *muxer.FFmpeg is the default implementation.
type Remuxer interface {
	// Available reports whether the remux tool can be run.
	Available() error
	Remux(ctx context.Context, req muxer.RemuxRequest) error
}

// Config holds configuration for the download engine.
type Config struct {
	// HTTPClient is the client used for page, API and media requests.
	// If nil, a client honoring ProxyURL and CookieJar is built.
	HTTPClient *http.Client

	// ProxyURL is the optional proxy URL to use for requests.
	// If HTTPClient is provided, this field is ignored.
	ProxyURL string

	// CookieJar is attached to the HTTP client. Use it for private shares.
	CookieJar http.CookieJar

	// UserAgent overrides the browser-like default.
	UserAgent string

	// RequestHeaders are added to every page and API request.
	RequestHeaders http.Header

	// BaseURL and CDNBaseURL override the share-page and media hosts.
	BaseURL    string
	CDNBaseURL string

	// OutputDir receives artifacts when no explicit output path is given.
	// Default is "downloads".
	OutputDir string

	// LedgerPath is the completion ledger used by RunBatch.
	// Default is "downloaded.log".
	LedgerPath string

	// Concurrency bounds in-flight batch tasks. Default is 5.
	Concurrency int

	// Pacing is the pause after each successful batch task before its slot
	// is released. Zero selects the 5s default; a negative value disables it.
	Pacing time.Duration

	// MaxAttempts bounds stream fetch attempts. Default is 5.
	MaxAttempts int

	// RetryInitial is the first backoff delay. Default is one second.
	RetryInitial time.Duration

	// DisableResume restarts progressive transfers from zero instead of
	// continuing an existing partial file.
	// Default is false (resume enabled).
	DisableResume bool

	// FFmpegPath names the remux tool. Default is "ffmpeg" on PATH.
	FFmpegPath string

	// Remuxer overrides the ffmpeg-backed remuxer.
	Remuxer Remuxer

	// RequestTimeout bounds each resolve and side fetch when ctx has no
	// deadline. Zero means no timeout.
	RequestTimeout time.Duration

	// DebugDir receives raw share-page markup when resolution finds no stream.
	DebugDir string

	// Logger receives structured logs. If nil, logs are discarded.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// OnEvent receives pipeline stage events.
	OnEvent func(Event)

	// OnProgress receives transfer progress for the primary stream.
	OnProgress func(ProgressUpdate)
}

func (c Config) concurrency() int {
	if c.Concurrency < 1 {
		return DefaultConcurrency
	}
	return c.Concurrency
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

func (c Config) pacing() time.Duration {
	switch {
	case c.Pacing < 0:
		return 0
	case c.Pacing == 0:
		return DefaultPacing
	default:
		return c.Pacing
	}
}

func (c Config) outputDir() string {
	if c.OutputDir == "" {
		return DefaultOutputDir
	}
	return c.OutputDir
}

func (c Config) ledgerPath() string {
	if c.LedgerPath == "" {
		return DefaultLedgerPath
	}
	return c.LedgerPath
}
