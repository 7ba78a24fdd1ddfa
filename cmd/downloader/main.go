package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/log/level"

	"github.com/AppXpress/Integration-API-Utility/internal/api"
	"github.com/AppXpress/Integration-API-Utility/internal/config"
	"github.com/AppXpress/Integration-API-Utility/internal/logging"
	"github.com/AppXpress/Integration-API-Utility/internal/metrics"
	"github.com/AppXpress/Integration-API-Utility/internal/store"
	"github.com/AppXpress/Integration-API-Utility/internal/workflow"
)

type options struct {
	credentialsPath string
	configPath      string
	cycles          int
	debug           bool
}

func newFlagSet(opts *options) *flag.FlagSet {
	flags := flag.NewFlagSet("downloader", flag.ContinueOnError)
	flags.StringVar(&opts.credentialsPath, "credentials", config.DefaultCredentialsPath, "path to the credentials properties file")
	flags.StringVar(&opts.configPath, "config", config.DefaultDownloaderPath, "path to the downloader properties file")
	flags.IntVar(&opts.cycles, "cycles", 0, "stop after this many outbox polls when deleting (0 = until interrupted)")
	flags.BoolVar(&opts.debug, "debug", false, "log the method, url and status of every api response and outbox listing details")
	return flags
}

func parseFlags(args []string) (options, error) {
	var opts options
	if err := newFlagSet(&opts).Parse(args); err != nil {
		return options{}, err
	}
	if opts.cycles < 0 {
		return options{}, fmt.Errorf("cycles must not be negative")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	creds, err := config.LoadCredentials(opts.credentialsPath)
	if err != nil {
		log.Fatalf("load credentials: %v", err)
	}
	cfg, err := config.LoadDownloader(opts.configPath)
	if err != nil {
		log.Fatalf("load downloader config: %v", err)
	}

	logger := logging.New(os.Stdout, "downloader", opts.debug)
	client, err := api.NewClient(creds, logger)
	if err != nil {
		log.Fatalf("init api client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open output folder: %v", err)
	}

	started := time.Now()
	downloader := &workflow.Downloader{
		Client:           client,
		Sink:             sink,
		Logger:           logger,
		Concurrency:      creds.MaxConcurrentSessions,
		DeleteAfterFetch: cfg.DeleteOnDownload,
		Interval:         cfg.PollInterval,
		MaxCycles:        opts.cycles,
	}
	reports, runErr := downloader.Run(ctx)

	if err := sink.Close(); err != nil {
		level.Warn(logger).Log("msg", "close output folder", "err", err)
	}

	var written, failed int
	for _, report := range reports {
		written += report.Written
		failed += report.Failed
	}
	diskPath := ""
	if !strings.Contains(cfg.OutputFolder, "://") {
		diskPath = cfg.OutputFolder
	}
	summary := []any{"msg", "downloader finished", "cycles", len(reports), "written", written, "failed", failed,
		"elapsed", time.Since(started).Round(time.Millisecond)}
	summary = append(summary, metrics.Collect(context.Background(), diskPath).KeyVals()...)
	level.Info(logger).Log(summary...)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		level.Error(logger).Log("msg", "download failed", "err", runErr)
		os.Exit(1)
	}
}
