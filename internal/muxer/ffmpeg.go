// Package muxer drives ffmpeg to fetch and remux segmented streams into a
// single container.
package muxer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/famomatic/loomdl/internal/cookies"
	"github.com/famomatic/loomdl/internal/types"
)

const (
	installGuidance = "install ffmpeg (https://ffmpeg.org/download.html) and make sure it is on PATH, or pass --ffmpeg"
	stderrTailLines = 20
)

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	positionPattern = regexp.MustCompile(`time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
)

// RemuxRequest describes one segmented-stream download.
type RemuxRequest struct {
	InputURL    string
	OutputPath  string
	Referer     string
	Credentials *types.SignedCredentials
	Metadata    types.Metadata
	// OnProgress receives a completion percentage in [0,100].
	OnProgress func(percent float64)
}

// RemuxError reports a non-zero ffmpeg exit.
type RemuxError struct {
	ExitCode int
	Stderr   string
}

func (e *RemuxError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("ffmpeg exited with status %d: %s", e.ExitCode, e.Stderr)
}

// FFmpeg runs the ffmpeg command line tool. The zero value looks up "ffmpeg"
// on PATH.
type FFmpeg struct {
	Path   string
	Logger *slog.Logger

	once     sync.Once
	resolved string
	probeErr error
}

// NewFFmpeg returns an FFmpeg using path, or "ffmpeg" from PATH when empty.
func NewFFmpeg(path string, logger *slog.Logger) *FFmpeg {
	return &FFmpeg{Path: path, Logger: logger}
}

func (f *FFmpeg) name() string {
	if strings.TrimSpace(f.Path) == "" {
		return "ffmpeg"
	}
	return f.Path
}

func (f *FFmpeg) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f.Logger
}

// Available probes for the executable once and caches the result.
func (f *FFmpeg) Available() error {
	f.once.Do(func() {
		path, err := exec.LookPath(f.name())
		if err != nil {
			f.probeErr = &types.ToolMissingError{Tool: f.name(), Guidance: installGuidance}
			return
		}
		f.resolved = path
	})
	return f.probeErr
}

// Remux downloads req.InputURL with stream copy into req.OutputPath,
// overwriting any existing file. The tool probe runs before any network
// activity.
func (f *FFmpeg) Remux(ctx context.Context, req RemuxRequest) error {
	if err := f.Available(); err != nil {
		return err
	}
	if req.InputURL == "" || req.OutputPath == "" {
		return errors.New("remux: input url and output path are required")
	}
	if dir := filepath.Dir(req.OutputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, f.resolved, remuxArgs(req)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return &types.ToolMissingError{Tool: f.name(), Guidance: installGuidance}
		}
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	tail := scanProgress(stderr, req.OnProgress)
	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &RemuxError{ExitCode: exitErr.ExitCode(), Stderr: tail}
		}
		return fmt.Errorf("ffmpeg remux failed: %w", err)
	}
	f.logger().Debug("remux complete", "path", req.OutputPath)
	return nil
}

func remuxArgs(req RemuxRequest) []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}

	var headers strings.Builder
	if req.Referer != "" {
		headers.WriteString("Referer: " + req.Referer + "\r\n")
	}
	if cookie := cookies.SignedCookieHeader(req.Credentials); cookie != "" {
		headers.WriteString("Cookie: " + cookie + "\r\n")
	}
	if headers.Len() > 0 {
		args = append(args, "-headers", headers.String())
	}

	args = append(args,
		"-i", req.InputURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-movflags", "+faststart",
	)
	if req.Metadata.Title != "" {
		args = append(args, "-metadata", "title="+req.Metadata.Title)
	}
	if req.Metadata.Comment != "" {
		args = append(args, "-metadata", "comment="+req.Metadata.Comment)
	}
	return append(args, req.OutputPath)
}

// scanProgress consumes ffmpeg's diagnostic stream, reporting progress as it
// goes, and returns the last lines for error reporting.
func scanProgress(r io.Reader, onProgress func(float64)) string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitLinesOrCR)

	var (
		total float64
		tail  []string
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
		if m := durationPattern.FindStringSubmatch(line); m != nil {
			total = hmsSeconds(m[1], m[2], m[3])
			continue
		}
		if m := positionPattern.FindStringSubmatch(line); m != nil && total > 0 && onProgress != nil {
			pct := hmsSeconds(m[1], m[2], m[3]) / total * 100
			if pct > 100 {
				pct = 100
			}
			report(onProgress, pct)
		}
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
	return strings.Join(tail, "\n")
}

func report(fn func(float64), pct float64) {
	defer func() { _ = recover() }()
	fn(pct)
}

func hmsSeconds(h, m, s string) float64 {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.ParseFloat(s, 64)
	return float64(hours*3600+minutes*60) + seconds
}

func splitLinesOrCR(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
