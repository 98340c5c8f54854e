package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rtkrelay/adapter"
	"github.com/pithecene-io/rtkrelay/adapter/redis"
	"github.com/pithecene-io/rtkrelay/adapter/webhook"
	"github.com/pithecene-io/rtkrelay/cli/config"
	"github.com/pithecene-io/rtkrelay/lode"
	"github.com/pithecene-io/rtkrelay/log"
	"github.com/pithecene-io/rtkrelay/metrics"
	"github.com/pithecene-io/rtkrelay/nav"
	"github.com/pithecene-io/rtkrelay/server"
	"github.com/pithecene-io/rtkrelay/session"
	"github.com/pithecene-io/rtkrelay/wire"
)

// Defaults applied when neither the config file nor a flag sets a value.
const (
	defaultRNX2RTKP = "rnx2rtkp"
	defaultLogLevel = "info"
)

// ServeCommand returns the serve command.
// Serve is the only long-running command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Accept observation files and return RTK solutions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to rtkrelay.yaml"},

			// Listener
			&cli.StringFlag{Name: "listen", Usage: "TCP listen address (default :9999)"},
			&cli.IntFlag{Name: "max-concurrent", Usage: "Maximum concurrently served sessions (default 1)"},
			&cli.IntFlag{Name: "max-units", Usage: "Maximum files per transfer (default 8)"},
			&cli.StringFlag{Name: "staging-dir", Usage: "Parent directory for per-session staging (default: system temp)"},

			// Session deadlines
			&cli.DurationFlag{Name: "read-timeout", Usage: "Deadline for receiving all files"},
			&cli.DurationFlag{Name: "fetch-timeout", Usage: "Deadline for fetching navigation data"},
			&cli.DurationFlag{Name: "compute-timeout", Usage: "Deadline for rnx2rtkp"},
			&cli.DurationFlag{Name: "write-timeout", Usage: "Deadline for sending the response"},

			// Computation and aux data
			&cli.StringFlag{Name: "rnx2rtkp", Usage: "Path to the rnx2rtkp executable"},
			&cli.StringFlag{Name: "nav-url", Usage: "Base URL of the BRDC archive"},
			&cli.StringFlag{Name: "nav-s3", Usage: "S3 mirror of the BRDC archive (bucket/prefix), tried before --nav-url"},

			// Archive
			&cli.StringFlag{Name: "archive-backend", Usage: "Session archive backend: fs or s3 (empty disables archiving)"},
			&cli.StringFlag{Name: "archive-path", Usage: "Archive location (fs: directory, s3: bucket/prefix)"},
			&cli.StringFlag{Name: "archive-region", Usage: "AWS region for the s3 archive"},

			// Notifications
			&cli.StringFlag{Name: "adapter", Usage: "Completion adapter: webhook or redis"},
			&cli.StringFlag{Name: "adapter-url", Usage: "Adapter endpoint (webhook URL or redis://...)"},

			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadServeConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logger := log.NewLogger(level)
	defer logger.Sync()
	sugar := logger.Sugar().With("listen", cfg.Listen)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, err := buildFetcher(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("navigation source: %v", err), 1)
	}
	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("archive: %v", err), 1)
	}
	adp, err := buildAdapter(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), 1)
	}
	if adp != nil {
		defer func() {
			if err := adp.Close(); err != nil {
				sugar.Warnf("adapter close failed: %v", err)
			}
		}()
	}

	collector := metrics.NewCollector(cfg.Listen, cfg.Archive.Backend, cfg.Adapter.Type)

	orch := session.NewOrchestrator(
		sessionConfig(cfg),
		fetcher,
		&session.RTKLIBComputer{Path: cfg.RTKLIB.Path, Args: cfg.RTKLIB.Args},
		session.WithLogger(logger),
		session.WithMetrics(collector),
	)

	completion := &server.Completion{
		Archive: archive,
		Adapter: adp,
		Metrics: collector,
		Logger:  logger,
	}
	srv := server.New(
		server.Config{Addr: cfg.Listen, MaxConcurrent: cfg.MaxConcurrent},
		orch,
		server.WithLogger(logger),
		server.WithHooks(completion.Hook()),
	)

	sugar.Infof("relay starting (archive=%q adapter=%q max_concurrent=%d)",
		cfg.Archive.Backend, cfg.Adapter.Type, cfg.MaxConcurrent)
	err = srv.ListenAndServe(ctx)
	logSnapshot(logger, collector.Snapshot())
	if err != nil {
		sugar.Errorf("relay stopped: %v", err)
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// loadServeConfig reads --config (if given), applies explicitly set flags
// on top and fills defaults.
func loadServeConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	if c.IsSet("max-concurrent") {
		cfg.MaxConcurrent = c.Int("max-concurrent")
	}
	if c.IsSet("max-units") {
		cfg.MaxUnits = c.Int("max-units")
	}
	if c.IsSet("staging-dir") {
		cfg.StagingDir = c.String("staging-dir")
	}
	if c.IsSet("read-timeout") {
		cfg.Timeouts.Read.Duration = c.Duration("read-timeout")
	}
	if c.IsSet("fetch-timeout") {
		cfg.Timeouts.Fetch.Duration = c.Duration("fetch-timeout")
	}
	if c.IsSet("compute-timeout") {
		cfg.Timeouts.Compute.Duration = c.Duration("compute-timeout")
	}
	if c.IsSet("write-timeout") {
		cfg.Timeouts.Write.Duration = c.Duration("write-timeout")
	}
	if c.IsSet("rnx2rtkp") {
		cfg.RTKLIB.Path = c.String("rnx2rtkp")
	}
	if c.IsSet("nav-url") {
		cfg.Nav.URL = c.String("nav-url")
	}
	if c.IsSet("nav-s3") {
		cfg.Nav.S3 = c.String("nav-s3")
	}
	if c.IsSet("archive-backend") {
		cfg.Archive.Backend = c.String("archive-backend")
	}
	if c.IsSet("archive-path") {
		cfg.Archive.Path = c.String("archive-path")
	}
	if c.IsSet("archive-region") {
		cfg.Archive.Region = c.String("archive-region")
	}
	if c.IsSet("adapter") {
		cfg.Adapter.Type = c.String("adapter")
	}
	if c.IsSet("adapter-url") {
		cfg.Adapter.URL = c.String("adapter-url")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	applyServeDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Archive.Backend != "" && cfg.Archive.Path == "" {
		return nil, errors.New("archive path is required when an archive backend is set")
	}
	return cfg, nil
}

func applyServeDefaults(cfg *config.Config) {
	if cfg.Listen == "" {
		cfg.Listen = server.DefaultAddr
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxUnits == 0 {
		cfg.MaxUnits = wire.DefaultMaxUnits
	}
	if cfg.RTKLIB.Path == "" {
		cfg.RTKLIB.Path = defaultRNX2RTKP
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.Archive.Dataset == "" {
		cfg.Archive.Dataset = lode.DefaultDataset
	}
	defaults := session.DefaultConfig()
	setDuration(&cfg.Timeouts.Read, defaults.ReadTimeout)
	setDuration(&cfg.Timeouts.Fetch, defaults.FetchTimeout)
	setDuration(&cfg.Timeouts.Compute, defaults.ComputeTimeout)
	setDuration(&cfg.Timeouts.Write, defaults.WriteTimeout)
}

func setDuration(d *config.Duration, def time.Duration) {
	if d.Duration == 0 {
		d.Duration = def
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		StagingDir:     cfg.StagingDir,
		MaxUnits:       cfg.MaxUnits,
		ReadTimeout:    cfg.Timeouts.Read.Duration,
		FetchTimeout:   cfg.Timeouts.Fetch.Duration,
		ComputeTimeout: cfg.Timeouts.Compute.Duration,
		WriteTimeout:   cfg.Timeouts.Write.Duration,
	}
}

// buildFetcher returns the S3 mirror (when configured) followed by the
// HTTP archive.
func buildFetcher(ctx context.Context, cfg *config.Config) (nav.Fetcher, error) {
	var chain nav.FallbackFetcher
	if cfg.Nav.S3 != "" {
		bucket, prefix := nav.ParseS3Path(cfg.Nav.S3)
		f, err := nav.NewS3FetcherFromConfig(ctx, nav.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Nav.Region,
			Endpoint:     cfg.Nav.Endpoint,
			UsePathStyle: cfg.Nav.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}

	var client *http.Client
	if cfg.Nav.Timeout.Duration > 0 {
		client = &http.Client{Timeout: cfg.Nav.Timeout.Duration}
	}
	chain = append(chain, nav.NewHTTPFetcher(cfg.Nav.URL, client))

	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// buildArchive returns nil when archiving is disabled.
func buildArchive(ctx context.Context, cfg *config.Config) (*lode.Archive, error) {
	switch cfg.Archive.Backend {
	case "":
		return nil, nil
	case "fs":
		return lode.NewArchiveFS(cfg.Archive.Dataset, cfg.Archive.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(cfg.Archive.Path)
		return lode.NewArchiveS3(ctx, cfg.Archive.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Archive.Region,
			Endpoint:     cfg.Archive.Endpoint,
			UsePathStyle: cfg.Archive.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.Archive.Backend)
	}
}

// buildAdapter returns nil when no adapter is configured.
func buildAdapter(cfg *config.Config) (adapter.Adapter, error) {
	ac := cfg.Adapter
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		a, err := webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Secret:  ac.Secret,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		retries := redis.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		a, err := redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Mode:    redis.Mode(ac.Mode),
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", ac.Type)
	}
}

func logSnapshot(logger *log.Logger, s metrics.Snapshot) {
	logger.Info("server stopped", map[string]any{
		"sessions_started":   s.SessionsStarted,
		"sessions_succeeded": s.SessionsSucceeded,
		"sessions_failed":    s.SessionsFailed,
		"failed_by_status":   s.FailedByStatus,
		"bytes_received":     s.BytesReceived,
		"archive_failures":   s.ArchiveWriteFailure,
		"adapter_failures":   s.AdapterPublishFailure,
	})
}
