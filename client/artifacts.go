package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/famomatic/loomdl/internal/downloader"
	"github.com/famomatic/loomdl/internal/transcript"
	"github.com/famomatic/loomdl/internal/types"
)

const (
	suffixTranscript  = ".transcript.json"
	suffixCaptions    = ".captions.vtt"
	suffixThumbnail   = ".thumbnail.jpg"
	suffixThumbGIF    = ".thumbnail.gif"
	suffixSeekSprite  = ".seekpreview.jpg"
	suffixSeekTrack   = ".seekpreview.vtt"
	defaultVideoExt   = ".mp4"
	maxSlugTitleRunes = 80
)

type artifactPaths struct {
	dir   string
	base  string
	video string
}

func (p artifactPaths) with(suffix string) string {
	return filepath.Join(p.dir, p.base+suffix)
}

func (c *Client) artifactPaths(m *types.AssetManifest, opts DownloadOptions) artifactPaths {
	if opts.OutputPath != "" {
		name := filepath.Base(opts.OutputPath)
		return artifactPaths{
			dir:   filepath.Dir(opts.OutputPath),
			base:  strings.TrimSuffix(name, filepath.Ext(name)),
			video: opts.OutputPath,
		}
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = c.config.outputDir()
	}
	p := artifactPaths{dir: dir, base: artifactBase(m.ID, m.Title, opts)}
	p.video = p.with(defaultVideoExt)
	return p
}

// artifactBase names a task's files: "<prefix>-<index>-<id>" in prefixed
// batches, "<slug(title)>-<id>" by title, and "<id>" otherwise.
func artifactBase(id types.AssetID, title string, opts DownloadOptions) string {
	if opts.Prefix != "" && opts.Index > 0 {
		return opts.Prefix + "-" + strconv.Itoa(opts.Index) + "-" + string(id)
	}
	if opts.NameByTitle {
		if s := slug.Make(truncateRunes(title, maxSlugTitleRunes)); s != "" {
			return s + "-" + string(id)
		}
	}
	return string(id)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// sideTransport fetches ancillary assets with the stream's signed cookies
// when it has them.
func (c *Client) sideTransport(m *types.AssetManifest) *downloader.Progressive {
	var creds *types.SignedCredentials
	if m.Stream != nil {
		creds = m.Stream.Credentials
	}
	return c.transport(m.ID, creds, nil)
}

func (c *Client) saveTranscript(ctx context.Context, m *types.AssetManifest, paths artifactPaths, subtitles SubtitleOutputFormat, result *DownloadResult) error {
	loc := m.Transcript
	if loc.Empty() {
		return fmt.Errorf("asset %s: %w", m.ID, ErrTranscriptUnavailable)
	}
	t := c.sideTransport(m)

	var errs []error
	if loc.TranscriptURL != "" {
		if err := c.saveTranscriptDocument(ctx, t, m, loc.TranscriptURL, paths, subtitles, result); err != nil {
			errs = append(errs, err)
		}
	} else if subtitles != SubtitleOutputFormatNone {
		errs = append(errs, fmt.Errorf("subtitles: asset %s: %w", m.ID, ErrTranscriptUnavailable))
	}
	if loc.CaptionsURL != "" {
		if err := c.saveSideFile(ctx, t, m.ID, "captions", loc.CaptionsURL, paths.with(suffixCaptions), result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) saveTranscriptDocument(ctx context.Context, t *downloader.Progressive, m *types.AssetManifest, rawURL string, paths artifactPaths, subtitles SubtitleOutputFormat, result *DownloadResult) error {
	fetchCtx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	payload, err := t.FetchBytes(fetchCtx, rawURL)
	cancel()
	if err != nil {
		return fmt.Errorf("transcript: %w", err)
	}

	rendered, err := transcript.Render(payload)
	if err != nil {
		return fmt.Errorf("transcript: %w", err)
	}
	dest := paths.with(suffixTranscript)
	if err := writeArtifact(dest, rendered); err != nil {
		return fmt.Errorf("transcript: %w", err)
	}
	c.recordArtifact(m.ID, "transcript", dest, result)

	if subtitles == SubtitleOutputFormatNone {
		return nil
	}
	doc, ok := transcript.Normalize(payload)
	if !ok || len(doc.Sentences) == 0 {
		return fmt.Errorf("subtitles: transcript of %s has no timed sentences", m.ID)
	}
	dest = paths.with(subtitles.Extension())
	if err := WriteSubtitles(dest, doc.Sentences, subtitles); err != nil {
		return fmt.Errorf("subtitles: %w", err)
	}
	c.recordArtifact(m.ID, "subtitles", dest, result)
	return nil
}

func (c *Client) saveThumbnails(ctx context.Context, m *types.AssetManifest, paths artifactPaths, result *DownloadResult) error {
	t := c.sideTransport(m)
	var errs []error
	if m.ThumbnailURL != "" {
		if err := c.saveSideFile(ctx, t, m.ID, "thumbnail", m.ThumbnailURL, paths.with(suffixThumbnail), result); err != nil {
			errs = append(errs, err)
		}
	}
	if m.ThumbnailGIFURL != "" {
		if err := c.saveSideFile(ctx, t, m.ID, "animated thumbnail", m.ThumbnailGIFURL, paths.with(suffixThumbGIF), result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) saveSeekPreview(ctx context.Context, log *slog.Logger, m *types.AssetManifest, paths artifactPaths, result *DownloadResult) error {
	sp := m.SeekPreview
	if !sp.Complete() {
		log.Info("seek preview unavailable")
	}
	t := c.sideTransport(m)
	var errs []error
	if sp.SpriteURL != "" {
		if err := c.saveSideFile(ctx, t, m.ID, "seek preview sprite", sp.SpriteURL, paths.with(suffixSeekSprite), result); err != nil {
			errs = append(errs, err)
		}
	}
	if sp.VTTURL != "" {
		if err := c.saveSideFile(ctx, t, m.ID, "seek preview track", sp.VTTURL, paths.with(suffixSeekTrack), result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) saveSideFile(ctx context.Context, t *downloader.Progressive, id types.AssetID, kind, rawURL, dest string, result *DownloadResult) error {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	if _, err := t.FetchFile(ctx, rawURL, dest); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	c.recordArtifact(id, kind, dest, result)
	return nil
}

func (c *Client) recordArtifact(id types.AssetID, kind, path string, result *DownloadResult) {
	result.Artifacts = append(result.Artifacts, path)
	c.emitEvent("side", "complete", id, path, kind)
}

func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
