// Package downloader performs resumable HTTP transfers of progressive media
// files and plain ancillary assets.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/famomatic/loomdl/internal/types"
)

// ProgressFunc receives advisory transfer snapshots.
type ProgressFunc func(types.Progress)

// Progressive downloads a single directly addressable media file, resuming
// from an existing partial file when asked to.
type Progressive struct {
	Client     *http.Client
	Headers    http.Header
	OnProgress ProgressFunc
}

func (p *Progressive) client() *http.Client {
	if p == nil || p.Client == nil {
		return http.DefaultClient
	}
	return p.Client
}

// Fetch writes desc.URL to dest and returns the final size of dest.
//
// With resume set and dest present, the transfer continues from the current
// file size. A 416 reply means the file is already complete and leaves it
// untouched. A transfer error removes dest only when resume is off.
func (p *Progressive) Fetch(ctx context.Context, desc types.StreamDescriptor, dest string, resume bool) (int64, error) {
	if desc.URL == "" {
		return 0, errors.New("download: empty stream url")
	}
	if err := ensureParentDir(dest); err != nil {
		return 0, err
	}

	offset := int64(0)
	if resume {
		if st, err := os.Stat(dest); err == nil && st.Mode().IsRegular() {
			offset = st.Size()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return 0, err
	}
	applyRequestHeaders(req, p.Headers)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := p.client().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var (
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		total int64
	)
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		flags = os.O_WRONLY | os.O_APPEND
		if resp.ContentLength >= 0 {
			total = offset + resp.ContentLength
		}
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		// The server ignored the range; the body is the whole file.
		offset = 0
		if resp.ContentLength >= 0 {
			total = resp.ContentLength
		}
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return offset, nil
	default:
		return 0, statusError(resp)
	}

	file, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return 0, err
	}

	meter := newProgressMeter(offset, total, p.OnProgress)
	n, copyErr := io.Copy(file, io.TeeReader(resp.Body, meter))
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if !resume {
			_ = os.Remove(dest)
		}
		return 0, fmt.Errorf("download interrupted after %d bytes: %w", offset+n, copyErr)
	}
	return offset + n, nil
}

// progressMeter turns body reads into Progress snapshots. Rate and ETA only
// consider bytes moved by the current attempt.
type progressMeter struct {
	fn       ProgressFunc
	progress types.Progress
}

func newProgressMeter(offset, total int64, fn ProgressFunc) *progressMeter {
	return &progressMeter{
		fn: fn,
		progress: types.Progress{
			BytesResumedFrom: offset,
			BytesTotal:       total,
			BytesTransferred: offset,
			StartTime:        time.Now(),
		},
	}
}

func (m *progressMeter) Write(b []byte) (int, error) {
	m.progress.BytesTransferred += int64(len(b))
	if m.fn == nil {
		return len(b), nil
	}
	elapsed := time.Since(m.progress.StartTime).Seconds()
	if elapsed > 0 {
		m.progress.Rate = float64(m.progress.BytesTransferred-m.progress.BytesResumedFrom) / elapsed
	}
	m.progress.ETA = 0
	if m.progress.Rate > 0 && m.progress.BytesTotal > m.progress.BytesTransferred {
		remaining := float64(m.progress.BytesTotal - m.progress.BytesTransferred)
		m.progress.ETA = time.Duration(remaining / m.progress.Rate * float64(time.Second))
	}
	m.report()
	return len(b), nil
}

func (m *progressMeter) report() {
	defer func() { _ = recover() }()
	m.fn(m.progress)
}
