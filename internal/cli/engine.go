package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	urfave "github.com/urfave/cli/v2"

	"github.com/famomatic/loomdl/client"
	"github.com/famomatic/loomdl/internal/platform/config"
	"github.com/famomatic/loomdl/internal/platform/logger"
	"github.com/famomatic/loomdl/internal/platform/metrics"
)

const progressInterval = 2 * time.Second

type engine struct {
	log    *slog.Logger
	client *client.Client
	stop   context.CancelFunc
	served chan struct{}
}

// setup loads settings from the environment, applies explicitly set flags
// on top, and builds the engine.
func setup(c *urfave.Context, stderr io.Writer) (*engine, error) {
	var err error
	if path := c.String(flagEnvFile); path != "" {
		err = config.Load(path)
	} else {
		err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	s, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	applyFlags(c, &s)
	if err := s.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(s.LogLevel, s.LogFormat, stderr)
	m := metrics.New()
	cfg, err := s.ClientConfig(log, m)
	if err != nil {
		return nil, err
	}
	cfg.OnProgress = newProgressReporter(log, progressInterval).Report
	cfg.OnEvent = func(e client.Event) {
		log.Debug(formatEvent(e))
	}

	ctx, stop := context.WithCancel(c.Context)
	rt := &engine{log: log, client: client.New(cfg), stop: stop}
	if s.MetricsAddr != "" {
		rt.served = make(chan struct{})
		go func() {
			defer close(rt.served)
			if err := metrics.Serve(ctx, s.MetricsAddr, m, log); err != nil {
				log.Error("metrics server failed", "addr", s.MetricsAddr, "error", err)
			}
		}()
	}
	return rt, nil
}

func (rt *engine) close() {
	rt.stop()
	if rt.served != nil {
		<-rt.served
	}
}

// applyFlags overrides settings with every flag the user set. Flags that the
// current command does not define are never set.
func applyFlags(c *urfave.Context, s *config.Settings) {
	strs := map[string]*string{
		flagLogLevel:    &s.LogLevel,
		flagLogFormat:   &s.LogFormat,
		flagMetricsAddr: &s.MetricsAddr,
		flagProxy:       &s.ProxyURL,
		flagCookies:     &s.CookiesFile,
		flagFFmpeg:      &s.FFmpegPath,
		flagDebugDir:    &s.DebugDir,
		flagOutputDir:   &s.OutputDir,
		flagLedger:      &s.LedgerPath,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.IsSet(flagConcurrency) {
		s.Concurrency = c.Int(flagConcurrency)
	}
	if c.IsSet(flagMaxAttempts) {
		s.MaxAttempts = c.Int(flagMaxAttempts)
	}
	if c.IsSet(flagPacing) {
		s.Pacing = c.Duration(flagPacing)
	}
	if c.IsSet(flagTimeout) {
		s.RequestTimeout = c.Duration(flagTimeout)
	}
	if c.Bool(flagNoResume) {
		s.Resume = false
	}
}
