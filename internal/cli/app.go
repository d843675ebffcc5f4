// Package cli wires the command line surface to the download engine.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	urfave "github.com/urfave/cli/v2"

	"github.com/famomatic/loomdl/client"
)

const (
	flagEnvFile     = "env-file"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
	flagMetricsAddr = "metrics-addr"
	flagProxy       = "proxy"
	flagCookies     = "cookies"
	flagFFmpeg      = "ffmpeg"
	flagDebugDir    = "debug-dir"
	flagOutputDir   = "output-dir"
	flagTimeout     = "request-timeout"

	flagOut            = "out"
	flagTranscript     = "transcript"
	flagTranscriptOnly = "transcript-only"
	flagThumbnails     = "thumbnails"
	flagSeekPreview    = "seek-preview"
	flagSubtitles      = "subtitles"
	flagNoResume       = "no-resume"
	flagNameByTitle    = "name-by-title"

	flagConcurrency = "concurrency"
	flagPacing      = "pacing"
	flagPrefix      = "prefix"
	flagLedger      = "ledger"
	flagFailOnError = "fail-on-error"
	flagMaxAttempts = "max-attempts"
)

// NewApp returns the loomdl application. Command output goes to stdout and
// logs go to stderr.
func NewApp(stdout, stderr io.Writer) *urfave.App {
	return &urfave.App{
		Name:      "loomdl",
		Usage:     "download shared videos with their transcripts and previews",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []urfave.Flag{
			&urfave.StringFlag{Name: flagEnvFile, Usage: "load environment variables from `FILE` (default .env when present)"},
			&urfave.StringFlag{Name: flagLogLevel, Usage: "debug, info, warn or error"},
			&urfave.StringFlag{Name: flagLogFormat, Usage: "text or json"},
			&urfave.StringFlag{Name: flagMetricsAddr, Usage: "serve Prometheus metrics on `ADDR`"},
			&urfave.StringFlag{Name: flagProxy, Usage: "HTTP(S) proxy `URL`"},
			&urfave.StringFlag{Name: flagCookies, Usage: "Netscape cookies `FILE` for private shares"},
			&urfave.StringFlag{Name: flagFFmpeg, Usage: "ffmpeg executable `PATH`"},
			&urfave.StringFlag{Name: flagDebugDir, Usage: "save unparseable share pages to `DIR`"},
			&urfave.StringFlag{Name: flagOutputDir, Usage: "write artifacts to `DIR`"},
			&urfave.DurationFlag{Name: flagTimeout, Usage: "bound each page and side request"},
		},
		Commands: []*urfave.Command{
			getCommand(stdout, stderr),
			batchCommand(stdout, stderr),
			resolveCommand(stdout, stderr),
		},
	}
}

func downloadFlags() []urfave.Flag {
	return []urfave.Flag{
		&urfave.BoolFlag{Name: flagTranscript, Usage: "save the transcript and captions"},
		&urfave.BoolFlag{Name: flagTranscriptOnly, Usage: "save only the transcript"},
		&urfave.BoolFlag{Name: flagThumbnails, Usage: "save the still and animated thumbnails"},
		&urfave.BoolFlag{Name: flagSeekPreview, Usage: "save the seek preview sprite and track"},
		&urfave.StringFlag{Name: flagSubtitles, Usage: "render the transcript as srt or vtt"},
		&urfave.BoolFlag{Name: flagNoResume, Usage: "restart partial downloads from zero"},
		&urfave.BoolFlag{Name: flagNameByTitle, Usage: "name files after the video title"},
		&urfave.IntFlag{Name: flagMaxAttempts, Usage: "stream fetch attempts"},
	}
}

func downloadOptions(c *urfave.Context) (client.DownloadOptions, error) {
	opts := client.DownloadOptions{
		Transcript:     c.Bool(flagTranscript),
		TranscriptOnly: c.Bool(flagTranscriptOnly),
		Thumbnails:     c.Bool(flagThumbnails),
		SeekPreview:    c.Bool(flagSeekPreview),
		NameByTitle:    c.Bool(flagNameByTitle),
	}
	if raw := c.String(flagSubtitles); raw != "" {
		switch strings.ToLower(raw) {
		case "srt", "vtt":
		default:
			return opts, fmt.Errorf("--%s must be srt or vtt, got %q", flagSubtitles, raw)
		}
		opts.Subtitles = client.ResolveSubtitleOutputFormat(raw)
	}
	return opts, nil
}

func getCommand(stdout, stderr io.Writer) *urfave.Command {
	return &urfave.Command{
		Name:      "get",
		Usage:     "download a single video",
		ArgsUsage: "<url|id>",
		Flags: append(downloadFlags(),
			&urfave.StringFlag{Name: flagOut, Aliases: []string{"o"}, Usage: "write the video to `PATH`"},
		),
		Action: func(c *urfave.Context) error {
			ref := c.Args().First()
			if ref == "" {
				return urfave.Exit("get: missing <url|id>", 2)
			}
			opts, err := downloadOptions(c)
			if err != nil {
				return urfave.Exit(err.Error(), 2)
			}
			opts.OutputPath = c.String(flagOut)

			rt, err := setup(c, stderr)
			if err != nil {
				return err
			}
			defer rt.close()

			res, err := rt.client.Download(c.Context, ref, opts)
			if err != nil {
				rt.log.Error("download failed", "ref", ref, "category", client.ClassifyError(err), "error", err)
				return urfave.Exit("", 1)
			}
			if res.OutputPath != "" {
				fmt.Fprintln(stdout, res.OutputPath)
			}
			for _, path := range res.Artifacts {
				fmt.Fprintln(stdout, path)
			}
			return nil
		},
	}
}

func batchCommand(stdout, stderr io.Writer) *urfave.Command {
	return &urfave.Command{
		Name:      "batch",
		Usage:     "download every video listed in a file, skipping completed ones",
		ArgsUsage: "<file|->",
		Flags: append(downloadFlags(),
			&urfave.IntFlag{Name: flagConcurrency, Aliases: []string{"c"}, Usage: "parallel downloads"},
			&urfave.DurationFlag{Name: flagPacing, Usage: "pause after each successful download (0 disables)"},
			&urfave.StringFlag{Name: flagPrefix, Usage: "name files <prefix>-<index>-<id>"},
			&urfave.StringFlag{Name: flagLedger, Usage: "completion ledger `FILE`"},
			&urfave.BoolFlag{Name: flagFailOnError, Usage: "exit non-zero when any download fails"},
		),
		Action: func(c *urfave.Context) error {
			name := c.Args().First()
			if name == "" {
				return urfave.Exit("batch: missing <file>", 2)
			}
			opts, err := downloadOptions(c)
			if err != nil {
				return urfave.Exit(err.Error(), 2)
			}
			opts.Prefix = c.String(flagPrefix)
			refs, err := readReferenceFile(name, c.App.Reader)
			if err != nil {
				return err
			}

			rt, err := setup(c, stderr)
			if err != nil {
				return err
			}
			defer rt.close()

			summary, err := rt.client.RunBatch(c.Context, refs, client.BatchOptions{Download: opts})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "run %s: %d total, %d skipped, %d succeeded, %d failed\n",
				summary.RunID, summary.Total, summary.Skipped, summary.Succeeded, summary.Failed)
			for _, f := range summary.Failures {
				fmt.Fprintf(stdout, "  #%d %s: %v\n", f.Index, f.Ref, f.Err)
			}
			if summary.Failed > 0 && c.Bool(flagFailOnError) {
				return urfave.Exit("", 1)
			}
			return nil
		},
	}
}

func resolveCommand(stdout, stderr io.Writer) *urfave.Command {
	return &urfave.Command{
		Name:      "resolve",
		Usage:     "print the resolved asset manifest as JSON",
		ArgsUsage: "<url|id>",
		Action: func(c *urfave.Context) error {
			ref := c.Args().First()
			if ref == "" {
				return urfave.Exit("resolve: missing <url|id>", 2)
			}
			rt, err := setup(c, stderr)
			if err != nil {
				return err
			}
			defer rt.close()

			m, err := rt.client.Resolve(c.Context, ref)
			if err != nil {
				rt.log.Error("resolve failed", "ref", ref, "category", client.ClassifyError(err), "error", err)
				return urfave.Exit("", 1)
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(newManifestView(m))
		},
	}
}

func readReferenceFile(name string, stdin io.Reader) ([]string, error) {
	if name == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		return client.ReadReferences(stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	refs, err := client.ReadReferences(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return refs, nil
}
