package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/famomatic/loomdl/client"
)

// progressReporter logs at most one progress line per transfer per interval,
// plus the final line of each transfer.
type progressReporter struct {
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func newProgressReporter(log *slog.Logger, interval time.Duration) *progressReporter {
	return &progressReporter{
		log:      log,
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

func (r *progressReporter) Report(p client.ProgressUpdate) {
	done := p.Percent >= 100
	r.mu.Lock()
	now := r.now()
	prev, seen := r.last[p.Path]
	if seen && !done && now.Sub(prev) < r.interval {
		r.mu.Unlock()
		return
	}
	if done {
		delete(r.last, p.Path)
	} else {
		r.last[p.Path] = now
	}
	r.mu.Unlock()

	attrs := []any{"asset_id", string(p.AssetID)}
	if p.Percent >= 0 {
		attrs = append(attrs, "percent", fmt.Sprintf("%.1f", p.Percent))
	}
	if t := p.Transfer; t.BytesTransferred > 0 {
		attrs = append(attrs, "bytes", t.BytesTransferred)
		if t.Rate > 0 {
			attrs = append(attrs, "rate", formatRate(t.Rate))
		}
		if t.ETA > 0 {
			attrs = append(attrs, "eta", t.ETA.Round(time.Second).String())
		}
	}
	r.log.Info("progress", attrs...)
}

func formatRate(bytesPerSec float64) string {
	const unit = 1024
	if bytesPerSec < unit {
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	}
	div, exp := float64(unit), 0
	for n := bytesPerSec / unit; n >= unit && exp < 3; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB/s", bytesPerSec/div, "KMGT"[exp])
}

func formatEvent(e client.Event) string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Stage, e.Phase)}
	if e.AssetID != "" {
		parts = append(parts, "asset_id="+string(e.AssetID))
	}
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	if e.Detail != "" {
		parts = append(parts, "detail="+e.Detail)
	}
	return strings.Join(parts, " ")
}

// manifestView is the printable form of a manifest. Signed credentials are
// reduced to a flag.
type manifestView struct {
	ID              string      `json:"id"`
	Title           string      `json:"title,omitempty"`
	Stream          *streamView `json:"stream,omitempty"`
	TranscriptURL   string      `json:"transcriptUrl,omitempty"`
	CaptionsURL     string      `json:"captionsUrl,omitempty"`
	SeekSpriteURL   string      `json:"seekPreviewSpriteUrl,omitempty"`
	SeekTrackURL    string      `json:"seekPreviewVttUrl,omitempty"`
	ThumbnailURL    string      `json:"thumbnailUrl,omitempty"`
	ThumbnailGIFURL string      `json:"thumbnailGifUrl,omitempty"`
}

type streamView struct {
	Kind   string `json:"kind"`
	URL    string `json:"url"`
	Signed bool   `json:"signed"`
}

func newManifestView(m *client.AssetManifest) manifestView {
	v := manifestView{
		ID:              string(m.ID),
		Title:           m.Title,
		TranscriptURL:   m.Transcript.TranscriptURL,
		CaptionsURL:     m.Transcript.CaptionsURL,
		SeekSpriteURL:   m.SeekPreview.SpriteURL,
		SeekTrackURL:    m.SeekPreview.VTTURL,
		ThumbnailURL:    m.ThumbnailURL,
		ThumbnailGIFURL: m.ThumbnailGIFURL,
	}
	if m.Stream != nil {
		v.Stream = &streamView{
			Kind:   m.Stream.Kind.String(),
			URL:    m.Stream.URL,
			Signed: m.Stream.Credentials.Valid(),
		}
	}
	return v
}
