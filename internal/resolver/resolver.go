// Package resolver turns a share-page identifier into an AssetManifest by
// reading the page's embedded state document, with layered fallbacks for
// every field the document may omit.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/famomatic/loomdl/internal/types"
)

const (
	DefaultBaseURL    = "https://www.loom.com"
	DefaultCDNBaseURL = "https://cdn.loom.com"
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	defaultAcceptLanguage = "en-US,en;q=0.9"
	maxPageBytes          = 32 << 20
	maxAPIBytes           = 1 << 20
)

var errEmptyID = errors.New("empty asset id")

// Config contains externally tunable settings for share-page resolution.
type Config struct {
	HTTPClient *http.Client
	BaseURL    string
	CDNBaseURL string
	UserAgent  string
	// Headers are added to every page and API request.
	Headers http.Header
	Logger  *slog.Logger
	// DebugDir receives the raw page markup when resolution fails with NotFound.
	DebugDir string
}

// Options tune a single Resolve call.
type Options struct {
	// TranscriptOnly suppresses the stream fallbacks and the NotFound failure.
	TranscriptOnly bool
	// SkipSeekPreview disables the seek-preview chain entirely.
	SkipSeekPreview bool
}

// Resolver is safe for concurrent use.
type Resolver struct {
	client     *http.Client
	config     Config
	log        *slog.Logger
	directFile *regexp.Regexp

	seekPreview []seekPreviewStrategy
}

// New returns a Resolver with defaults applied to empty config fields.
func New(cfg Config) *Resolver {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(firstNonEmpty(cfg.BaseURL, DefaultBaseURL), "/")
	cfg.CDNBaseURL = strings.TrimRight(firstNonEmpty(cfg.CDNBaseURL, DefaultCDNBaseURL), "/")
	cfg.UserAgent = firstNonEmpty(cfg.UserAgent, DefaultUserAgent)
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Resolver{
		client:     cfg.HTTPClient,
		config:     cfg,
		log:        log,
		directFile: directFilePattern(cfg.CDNBaseURL),
	}
	r.seekPreview = []seekPreviewStrategy{
		{name: "state_strict", run: r.seekPreviewFromStateStrict},
		{name: "state_loose", run: r.seekPreviewFromStateLoose},
		{name: "markup", run: r.seekPreviewFromMarkup},
		{name: "graphql", run: r.seekPreviewFromGraphQL},
	}
	return r
}

// Resolve fetches the share page for id and builds its manifest.
func (r *Resolver) Resolve(ctx context.Context, id types.AssetID, opts Options) (*types.AssetManifest, error) {
	id = types.AssetID(strings.TrimSpace(string(id)))
	if id == "" {
		return nil, &types.ResolutionError{Kind: types.ResolutionNotFound, ID: id, Err: errEmptyID}
	}
	log := r.log.With("asset_id", string(id))

	page, err := r.loadPage(ctx, id)
	if err != nil {
		return nil, &types.ResolutionError{Kind: types.ResolutionPageUnreadable, ID: id, Err: err}
	}

	found := walkState(page.state)
	manifest := &types.AssetManifest{
		ID:         id,
		Title:      found.title,
		Stream:     found.stream,
		Transcript: found.transcript,
	}
	if manifest.Title == "" {
		manifest.Title = page.ogTitle()
	}

	if manifest.Stream == nil && !opts.TranscriptOnly {
		manifest.Stream = r.scanDirectFile(page.markup)
	}
	if manifest.Stream == nil && !opts.TranscriptOnly {
		stream, err := r.fetchTranscodedURL(ctx, id)
		if err != nil {
			log.Debug("transcoded url lookup failed", "error", err)
		}
		manifest.Stream = stream
	}
	if manifest.Stream == nil && !opts.TranscriptOnly {
		r.dumpMarkup(log, id, page.markup)
		return nil, &types.ResolutionError{Kind: types.ResolutionNotFound, ID: id}
	}

	if !opts.SkipSeekPreview {
		manifest.SeekPreview = r.resolveSeekPreview(ctx, log, page)
	}
	manifest.ThumbnailURL, manifest.ThumbnailGIFURL = r.thumbnailURLs(id)

	log.Debug("asset resolved",
		"title", manifest.Title,
		"stream", streamSummary(manifest.Stream),
		"transcript", manifest.Transcript.TranscriptURL != "",
		"captions", manifest.Transcript.CaptionsURL != "",
		"seek_preview", manifest.SeekPreview.Complete(),
	)
	return manifest, nil
}

func (r *Resolver) thumbnailURLs(id types.AssetID) (string, string) {
	base := r.config.CDNBaseURL + "/sessions/thumbnails/" + url.PathEscape(string(id))
	return base + "-00001.jpg", base + "-with-play.gif"
}

// ShareURL returns the share page address for id.
func (r *Resolver) ShareURL(id types.AssetID) string {
	return r.config.BaseURL + "/share/" + url.PathEscape(string(id))
}

func (r *Resolver) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.config.UserAgent)
	req.Header.Set("Accept-Language", defaultAcceptLanguage)
	for k, values := range r.config.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (r *Resolver) dumpMarkup(log *slog.Logger, id types.AssetID, markup string) {
	if r.config.DebugDir == "" {
		return
	}
	path := filepath.Join(r.config.DebugDir, string(id)+".html")
	if err := os.MkdirAll(r.config.DebugDir, 0o755); err != nil {
		log.Warn("debug dump failed", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		log.Warn("debug dump failed", "path", path, "error", err)
		return
	}
	log.Info("page markup saved for inspection", "path", path)
}

func streamSummary(d *types.StreamDescriptor) string {
	if d == nil {
		return "none"
	}
	return d.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
