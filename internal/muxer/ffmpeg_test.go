package muxer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/famomatic/loomdl/internal/types"
)

// fakeFFmpeg writes an executable script that records its arguments, emits
// ffmpeg-like progress on stderr, and creates the output file.
func fakeFFmpeg(t *testing.T, exitCode int) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	bin = filepath.Join(dir, "ffmpeg")
	script := `#!/bin/sh
for a in "$@"; do printf '%s\n' "$a" >> "` + argsFile + `"; done
printf 'Input #0, hls\n  Duration: 00:00:10.00, start: 0.000000, bitrate: N/A\n' >&2
printf 'frame=1 time=00:00:02.50 bitrate=1\rframe=2 time=00:00:05.00 bitrate=1\rframe=3 time=00:00:10.00 bitrate=1\n' >&2
for last in "$@"; do :; done
if [ ` + strconv.Itoa(exitCode) + ` -ne 0 ]; then
  echo "Server returned 403 Forbidden (access denied)" >&2
  exit ` + strconv.Itoa(exitCode) + `
fi
printf 'remuxed' > "$last"
`
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return bin, argsFile
}

func TestRemux_InvokesFFmpegWithStreamCopy(t *testing.T) {
	bin, argsFile := fakeFFmpeg(t, 0)
	out := filepath.Join(t.TempDir(), "videos", "abc.mp4")

	var mu sync.Mutex
	var progress []float64
	f := NewFFmpeg(bin, nil)
	err := f.Remux(context.Background(), RemuxRequest{
		InputURL:    "https://cdn.test/abc/playlist.m3u8",
		OutputPath:  out,
		Referer:     "https://www.loom.com/share/abc",
		Credentials: &types.SignedCredentials{Policy: "pol", Signature: "sig", KeyPairID: "kp"},
		Metadata:    types.Metadata{Title: "Demo"},
		OnProgress: func(p float64) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Remux() error = %v", err)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("ReadFile(args) error = %v", err)
	}
	args := string(raw)
	for _, want := range []string{
		"-hide_banner", "-nostdin", "-y",
		"Referer: https://www.loom.com/share/abc",
		"Cookie: CloudFront-Policy=pol; CloudFront-Signature=sig; CloudFront-Key-Pair-Id=kp",
		"https://cdn.test/abc/playlist.m3u8",
		"aac_adtstoasc", "+faststart", "title=Demo",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("ffmpeg args missing %q:\n%s", want, args)
		}
	}
	lines := strings.Split(strings.TrimSpace(args), "\n")
	if lines[len(lines)-1] != out {
		t.Fatalf("last arg=%q, want output path", lines[len(lines)-1])
	}
	body, err := os.ReadFile(out)
	if err != nil || string(body) != "remuxed" {
		t.Fatalf("output=%q err=%v", body, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) != 3 || progress[0] != 25 || progress[1] != 50 || progress[2] != 100 {
		t.Fatalf("progress=%v, want [25 50 100]", progress)
	}
}

func TestRemux_NonZeroExit(t *testing.T) {
	bin, _ := fakeFFmpeg(t, 1)
	err := NewFFmpeg(bin, nil).Remux(context.Background(), RemuxRequest{
		InputURL:   "https://cdn.test/abc/playlist.m3u8",
		OutputPath: filepath.Join(t.TempDir(), "abc.mp4"),
	})
	var remuxErr *RemuxError
	if !errors.As(err, &remuxErr) {
		t.Fatalf("Remux() error = %v, want RemuxError", err)
	}
	if remuxErr.ExitCode != 1 || !strings.Contains(remuxErr.Stderr, "403 Forbidden") {
		t.Fatalf("RemuxError=%+v", remuxErr)
	}
}

func TestRemux_MissingToolFailsBeforeStarting(t *testing.T) {
	f := NewFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg"), nil)
	out := filepath.Join(t.TempDir(), "abc.mp4")
	err := f.Remux(context.Background(), RemuxRequest{InputURL: "https://cdn.test/x.m3u8", OutputPath: out})
	if !errors.Is(err, types.ErrToolMissing) {
		t.Fatalf("Remux() error = %v, want ErrToolMissing", err)
	}
	var missing *types.ToolMissingError
	if !errors.As(err, &missing) || missing.Guidance == "" {
		t.Fatalf("error=%#v, want guidance", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output created despite missing tool")
	}
	if err := f.Available(); !errors.Is(err, types.ErrToolMissing) {
		t.Fatalf("Available() error = %v", err)
	}
}

func TestRemuxArgs_OmitsHeadersWithoutRefererOrCredentials(t *testing.T) {
	args := remuxArgs(RemuxRequest{InputURL: "in", OutputPath: "out.mp4"})
	for _, a := range args {
		if a == "-headers" {
			t.Fatalf("unexpected -headers in %v", args)
		}
	}
	want := []string{"-hide_banner", "-nostdin", "-y", "-i", "in", "-c", "copy", "-bsf:a", "aac_adtstoasc", "-movflags", "+faststart", "out.mp4"}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Fatalf("args=%v, want %v", args, want)
	}
}

func TestScanProgress(t *testing.T) {
	stderr := "  Duration: 01:00:00.00, start: 0\r" +
		"size=1 time=00:30:00.00 bitrate=1\r" +
		"size=2 time=01:10:00.00 bitrate=1\n" +
		"done\n"
	var got []float64
	tail := scanProgress(strings.NewReader(stderr), func(p float64) { got = append(got, p) })
	if len(got) != 2 || got[0] != 50 || got[1] != 100 {
		t.Fatalf("progress=%v, want [50 100]", got)
	}
	if !strings.HasSuffix(tail, "done") {
		t.Fatalf("tail=%q", tail)
	}
}
