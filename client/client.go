// Package client resolves shared videos into downloadable manifests and runs
// single and batch downloads with resume, retry and a completion ledger.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/famomatic/loomdl/internal/downloader"
	"github.com/famomatic/loomdl/internal/muxer"
	"github.com/famomatic/loomdl/internal/platform/metrics"
	"github.com/famomatic/loomdl/internal/resolver"
	"github.com/famomatic/loomdl/internal/retry"
	"github.com/famomatic/loomdl/internal/types"
)

// Client is the download engine. It is safe for concurrent use.
type Client struct {
	config   Config
	resolver *resolver.Resolver
	remuxer  Remuxer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a new client.
func New(config Config) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = defaultHTTPClient(config.ProxyURL, config.CookieJar)
	} else if config.CookieJar != nil && config.HTTPClient.Jar == nil {
		hc := *config.HTTPClient
		hc.Jar = config.CookieJar
		config.HTTPClient = &hc
	}
	logger := config.Logger
	if logger == nil {
		logger = discardLogger()
	}

	remuxer := config.Remuxer
	if remuxer == nil {
		remuxer = muxer.NewFFmpeg(config.FFmpegPath, logger.With("component", "muxer"))
	}

	return &Client{
		config: config,
		resolver: resolver.New(resolver.Config{
			HTTPClient: config.HTTPClient,
			BaseURL:    config.BaseURL,
			CDNBaseURL: config.CDNBaseURL,
			UserAgent:  config.UserAgent,
			Headers:    config.RequestHeaders,
			Logger:     logger.With("component", "resolver"),
			DebugDir:   config.DebugDir,
		}),
		remuxer: remuxer,
		logger:  logger,
		metrics: config.Metrics,
	}
}

// Resolve builds the manifest for ref without downloading anything.
func (c *Client) Resolve(ctx context.Context, ref string) (*AssetManifest, error) {
	if c == nil {
		return nil, errors.New("client: nil client")
	}
	return c.resolve(ctx, types.AssetID(ExtractID(ref)), resolver.Options{})
}

func (c *Client) resolve(ctx context.Context, id types.AssetID, opts resolver.Options) (*types.AssetManifest, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	c.emitEvent("resolve", "start", id, "", "")
	manifest, err := c.resolver.Resolve(ctx, id, opts)
	if err != nil {
		var resErr *types.ResolutionError
		if errors.As(err, &resErr) {
			c.metrics.IncResolveFailures(string(resErr.Kind))
		}
		c.emitEvent("resolve", "failure", id, "", err.Error())
		return nil, err
	}
	c.emitEvent("resolve", "complete", id, "", streamDetail(manifest.Stream))
	return manifest, nil
}

// transport returns a downloader for media and side-asset requests against
// the share page of id.
func (c *Client) transport(id types.AssetID, creds *types.SignedCredentials, onProgress downloader.ProgressFunc) *downloader.Progressive {
	return &downloader.Progressive{
		Client:     c.config.HTTPClient,
		Headers:    c.mediaHeaders(id, creds),
		OnProgress: onProgress,
	}
}

func (c *Client) mediaHeaders(id types.AssetID, creds *types.SignedCredentials) http.Header {
	return buildMediaRequestHeaders(c.config.RequestHeaders, c.config.UserAgent, c.resolver.ShareURL(id), creds)
}

func (c *Client) retryPolicy(id types.AssetID, path string) retry.Policy {
	p := retry.DefaultPolicy()
	if c.config.RetryInitial > 0 {
		p.Initial = c.config.RetryInitial
	}
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.metrics.IncRetries()
		c.logger.Warn("transfer failed, retrying",
			"asset_id", string(id),
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		c.emitEvent("download", "retry", id, path, fmt.Sprintf("attempt=%d delay=%s: %v", attempt, delay, err))
	}
	return p
}

func (c *Client) emitEvent(stage, phase string, id types.AssetID, path, detail string) {
	if c == nil || c.config.OnEvent == nil {
		return
	}
	c.config.OnEvent(Event{
		Stage:   stage,
		Phase:   phase,
		AssetID: id,
		Path:    path,
		Detail:  detail,
	})
}

func streamDetail(d *types.StreamDescriptor) string {
	if d == nil {
		return "stream=none"
	}
	return "stream=" + d.Kind.String()
}
