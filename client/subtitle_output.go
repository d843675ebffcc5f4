package client

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/famomatic/loomdl/internal/transcript"
)

// SubtitleOutputFormat is a transcript serialization target format.
type SubtitleOutputFormat string

const (
	SubtitleOutputFormatNone SubtitleOutputFormat = ""
	SubtitleOutputFormatSRT  SubtitleOutputFormat = "srt"
	SubtitleOutputFormatVTT  SubtitleOutputFormat = "vtt"
)

// ResolveSubtitleOutputFormat selects an output format from preferences
// such as "vtt/srt" or "best". Empty input disables subtitles; unknown
// values fall back to SRT.
func ResolveSubtitleOutputFormat(raw string) SubtitleOutputFormat {
	if strings.TrimSpace(raw) == "" {
		return SubtitleOutputFormatNone
	}
	tokens := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == '/' || r == ','
	})
	for _, token := range tokens {
		switch strings.TrimSpace(token) {
		case "best", "srt":
			return SubtitleOutputFormatSRT
		case "vtt":
			return SubtitleOutputFormatVTT
		}
	}
	return SubtitleOutputFormatSRT
}

// Extension returns the file extension including the dot.
func (f SubtitleOutputFormat) Extension() string {
	if f == SubtitleOutputFormatVTT {
		return ".vtt"
	}
	return ".srt"
}

// WriteSubtitles serializes timed segments to the selected subtitle format.
// Segments with no text are dropped.
func WriteSubtitles(path string, segments []transcript.Segment, format SubtitleOutputFormat) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if format == SubtitleOutputFormatVTT {
		err = writeVTT(w, segments)
	} else {
		err = writeSRT(w, segments)
	}
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func writeSRT(w *bufio.Writer, segments []transcript.Segment) error {
	n := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		n++
		start := formatSRTTimestamp(seg.Start)
		end := formatSRTTimestamp(seg.End)
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", n, start, end, text); err != nil {
			return err
		}
	}
	return nil
}

func writeVTT(w *bufio.Writer, segments []transcript.Segment) error {
	if _, err := fmt.Fprint(w, "WEBVTT\n\n"); err != nil {
		return err
	}
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := formatVTTTimestamp(seg.Start)
		end := formatVTTTimestamp(seg.End)
		if _, err := fmt.Fprintf(w, "%s --> %s\n%s\n\n", start, end, text); err != nil {
			return err
		}
	}
	return nil
}

func formatSRTTimestamp(sec float64) string {
	h, m, s, ms := splitTimestamp(sec)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func formatVTTTimestamp(sec float64) string {
	h, m, s, ms := splitTimestamp(sec)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitTimestamp(sec float64) (hours, minutes, seconds, millis int64) {
	if sec < 0 {
		sec = 0
	}
	totalMs := int64(math.Round(sec * 1000))
	hours = totalMs / (60 * 60 * 1000)
	minutes = (totalMs / (60 * 1000)) % 60
	seconds = (totalMs / 1000) % 60
	millis = totalMs % 1000
	return hours, minutes, seconds, millis
}
