package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/famomatic/loomdl/internal/transcript"
)

func TestResolveSubtitleOutputFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want SubtitleOutputFormat
	}{
		{name: "vtt preferred", raw: "vtt/srt", want: SubtitleOutputFormatVTT},
		{name: "upper case", raw: "VTT", want: SubtitleOutputFormatVTT},
		{name: "best fallback", raw: "best", want: SubtitleOutputFormatSRT},
		{name: "unknown fallback", raw: "srv3/ttml", want: SubtitleOutputFormatSRT},
		{name: "empty disables", raw: "", want: SubtitleOutputFormatNone},
	}
	for _, tt := range tests {
		got := ResolveSubtitleOutputFormat(tt.raw)
		if got != tt.want {
			t.Fatalf("%s: ResolveSubtitleOutputFormat(%q)=%q want=%q", tt.name, tt.raw, got, tt.want)
		}
	}
}

var sampleSegments = []transcript.Segment{
	{Text: "hello", Start: 0, End: 1.5},
	{Text: "  ", Start: 1.5, End: 1.6},
	{Text: "world", Start: 1.6, End: 3661.25},
}

func TestWriteSubtitles_SRT(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "sub.srt")
	if err := WriteSubtitles(out, sampleSegments, SubtitleOutputFormatSRT); err != nil {
		t.Fatalf("WriteSubtitles(SRT) error = %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nhello\n\n2\n00:00:01,600 --> 01:01:01,250\nworld\n\n"
	if string(raw) != want {
		t.Fatalf("unexpected srt output: %q", raw)
	}
}

func TestWriteSubtitles_VTT(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sub.vtt")
	if err := WriteSubtitles(out, sampleSegments, SubtitleOutputFormatVTT); err != nil {
		t.Fatalf("WriteSubtitles(VTT) error = %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	txt := string(raw)
	if !strings.HasPrefix(txt, "WEBVTT\n\n") {
		t.Fatalf("unexpected vtt output: %q", txt)
	}
	if !strings.Contains(txt, "00:00:00.000 --> 00:00:01.500\nhello") {
		t.Fatalf("unexpected vtt output: %q", txt)
	}
	if strings.Count(txt, "-->") != 2 {
		t.Fatalf("blank segment not dropped: %q", txt)
	}
}
