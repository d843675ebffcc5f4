package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/famomatic/loomdl/internal/muxer"
	"github.com/famomatic/loomdl/internal/platform/metrics"
	"github.com/famomatic/loomdl/internal/resolver"
	"github.com/famomatic/loomdl/internal/retry"
	"github.com/famomatic/loomdl/internal/types"
)

// DownloadOptions controls one download task.
type DownloadOptions struct {
	// OutputPath is the explicit video path. Side artifacts share its base
	// name and directory. RunBatch ignores it.
	OutputPath string

	// OutputDir overrides Config.OutputDir.
	OutputDir string

	// Prefix and Index select the base name "<prefix>-<index>-<id>".
	// RunBatch fills Index from the reference's position in its input.
	Prefix string
	Index  int

	// NameByTitle selects "<slug(title)>-<id>" when no prefix applies.
	NameByTitle bool

	// Transcript saves the normalized transcript and the captions track.
	Transcript bool

	// TranscriptOnly saves the transcript and skips the video. A missing
	// or failing transcript is then a task failure.
	TranscriptOnly bool

	// Thumbnails saves the still and animated thumbnails.
	Thumbnails bool

	// SeekPreview saves the scrubber sprite and its timing track.
	SeekPreview bool

	// Subtitles renders the transcript sentences to SRT or VTT.
	Subtitles SubtitleOutputFormat
}

func (o DownloadOptions) wantsTranscript() bool {
	return o.Transcript || o.TranscriptOnly || o.Subtitles != SubtitleOutputFormatNone
}

// DownloadResult describes a completed task.
type DownloadResult struct {
	AssetID AssetID
	Title   string
	// OutputPath is the video file, or "" in transcript-only mode.
	OutputPath string
	// Bytes is the final video size.
	Bytes int64
	// Artifacts lists every side file written, in write order.
	Artifacts []string
	// SideErrors joins side-fetch failures that did not fail the task.
	SideErrors error
}

// Download resolves ref and writes its video and requested side artifacts.
// It does not consult or update the completion ledger.
func (c *Client) Download(ctx context.Context, ref string, opts DownloadOptions) (*DownloadResult, error) {
	if c == nil {
		return nil, errors.New("client: nil client")
	}
	c.metrics.TaskStarted()
	defer c.metrics.TaskFinished()

	result, err := c.runTask(ctx, ref, opts)
	if err != nil {
		c.metrics.IncTasks(metrics.ResultFailed)
		return nil, err
	}
	c.metrics.IncTasks(metrics.ResultSucceeded)
	return result, nil
}

func (c *Client) runTask(ctx context.Context, ref string, opts DownloadOptions) (*DownloadResult, error) {
	id := types.AssetID(ExtractID(ref))
	log := c.logger.With("asset_id", string(id))

	manifest, err := c.resolve(ctx, id, resolver.Options{
		TranscriptOnly:  opts.TranscriptOnly,
		SkipSeekPreview: !opts.SeekPreview,
	})
	if err != nil {
		return nil, err
	}
	paths := c.artifactPaths(manifest, opts)
	result := &DownloadResult{AssetID: id, Title: manifest.Title}

	withVideo := !opts.TranscriptOnly && manifest.Stream != nil
	if withVideo && manifest.Stream.Kind == types.StreamSegmented {
		if err := c.remuxer.Available(); err != nil {
			c.emitEvent("download", "failure", id, paths.video, err.Error())
			return nil, err
		}
	}

	var sideErrs []error
	if opts.wantsTranscript() {
		if err := c.saveTranscript(ctx, manifest, paths, opts.Subtitles, result); err != nil {
			if opts.TranscriptOnly {
				return nil, err
			}
			sideErrs = append(sideErrs, err)
		}
	}
	if opts.Thumbnails {
		if err := c.saveThumbnails(ctx, manifest, paths, result); err != nil {
			sideErrs = append(sideErrs, err)
		}
	}
	if opts.SeekPreview {
		if err := c.saveSeekPreview(ctx, log, manifest, paths, result); err != nil {
			sideErrs = append(sideErrs, err)
		}
	}
	for _, err := range sideErrs {
		log.Warn("side fetch failed", "error", err)
		c.emitEvent("side", "warning", id, "", err.Error())
	}
	result.SideErrors = errors.Join(sideErrs...)

	if !withVideo {
		return result, nil
	}

	c.emitEvent("download", "destination", id, paths.video, streamDetail(manifest.Stream))
	c.emitEvent("download", "start", id, paths.video, "")
	var size int64
	if manifest.Stream.Kind == types.StreamSegmented {
		size, err = c.remuxStream(ctx, manifest, paths.video)
	} else {
		size, err = c.fetchProgressive(ctx, manifest, paths.video)
	}
	if err != nil {
		c.emitEvent("download", "failure", id, paths.video, err.Error())
		return nil, err
	}
	c.emitEvent("download", "complete", id, paths.video, fmt.Sprintf("bytes=%d", size))
	log.Info("video saved", "path", paths.video, "bytes", size)

	result.OutputPath = paths.video
	result.Bytes = size
	return result, nil
}

func (c *Client) fetchProgressive(ctx context.Context, m *types.AssetManifest, dest string) (int64, error) {
	resume := !c.config.DisableResume
	var before int64
	if resume {
		before = fileSize(dest)
	}

	p := c.transport(m.ID, m.Stream.Credentials, func(pr types.Progress) {
		c.reportProgress(m.ID, dest, pr.Percent(), pr)
	})
	size, err := retry.Do(ctx, c.retryPolicy(m.ID, dest), c.config.maxAttempts(), func(ctx context.Context) (int64, error) {
		return p.Fetch(ctx, *m.Stream, dest, resume)
	})
	if err != nil {
		return 0, err
	}
	if size > before {
		c.metrics.AddBytes(size - before)
	}
	return size, nil
}

func (c *Client) remuxStream(ctx context.Context, m *types.AssetManifest, dest string) (int64, error) {
	shareURL := c.resolver.ShareURL(m.ID)
	req := muxer.RemuxRequest{
		InputURL:    m.Stream.URL,
		OutputPath:  dest,
		Referer:     shareURL,
		Credentials: m.Stream.Credentials,
		Metadata:    types.Metadata{Title: m.Title, Comment: shareURL},
		OnProgress: func(pct float64) {
			c.reportProgress(m.ID, dest, pct, types.Progress{})
		},
	}
	err := retry.Run(ctx, c.retryPolicy(m.ID, dest), c.config.maxAttempts(), func(ctx context.Context) error {
		return c.remuxer.Remux(ctx, req)
	})
	if err != nil {
		return 0, err
	}
	size := fileSize(dest)
	c.metrics.AddBytes(size)
	return size, nil
}

func (c *Client) reportProgress(id types.AssetID, path string, pct float64, pr types.Progress) {
	if c.config.OnProgress == nil {
		return
	}
	c.config.OnProgress(ProgressUpdate{
		AssetID:  id,
		Path:     path,
		Percent:  pct,
		Transfer: pr,
	})
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return 0
	}
	return st.Size()
}

// taskLogger returns the logger used for per-task batch logs.
func (c *Client) taskLogger(runID, ref string, id types.AssetID) *slog.Logger {
	return c.logger.With("run_id", runID, "ref", ref, "asset_id", string(id))
}
