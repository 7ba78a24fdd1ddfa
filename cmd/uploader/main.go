package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log/level"

	"github.com/AppXpress/Integration-API-Utility/internal/api"
	"github.com/AppXpress/Integration-API-Utility/internal/config"
	"github.com/AppXpress/Integration-API-Utility/internal/logging"
	"github.com/AppXpress/Integration-API-Utility/internal/metrics"
	"github.com/AppXpress/Integration-API-Utility/internal/workflow"
)

type options struct {
	credentialsPath string
	configPath      string
	debug           bool
}

func newFlagSet(opts *options) *flag.FlagSet {
	flags := flag.NewFlagSet("uploader", flag.ContinueOnError)
	flags.StringVar(&opts.credentialsPath, "credentials", config.DefaultCredentialsPath, "path to the credentials properties file")
	flags.StringVar(&opts.configPath, "config", config.DefaultUploaderPath, "path to the uploader properties file")
	flags.BoolVar(&opts.debug, "debug", false, "log the method, url and status of every api response")
	return flags
}

func parseFlags(args []string) (options, error) {
	var opts options
	if err := newFlagSet(&opts).Parse(args); err != nil {
		return options{}, err
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
	cfg, err := config.LoadUploader(opts.configPath)
	if err != nil {
		log.Fatalf("load uploader config: %v", err)
	}
	docs, err := workflow.BuildDocuments(cfg)
	if err != nil {
		log.Fatalf("prepare documents: %v", err)
	}

	logger := logging.New(os.Stdout, "uploader", opts.debug)
	client, err := api.NewClient(creds, logger)
	if err != nil {
		log.Fatalf("init api client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	uploader := &workflow.Uploader{
		Client:       client,
		Logger:       logger,
		DocType:      cfg.DocType,
		Concurrency:  creds.MaxConcurrentSessions,
		PollInterval: cfg.StatusPollInterval,
	}
	outcomes, runErr := uploader.Run(ctx, docs)

	var failed int
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
		}
	}
	summary := []any{"msg", "uploader finished", "documents", len(docs), "resolved", len(outcomes), "failed", failed,
		"elapsed", time.Since(started).Round(time.Millisecond)}
	summary = append(summary, metrics.Collect(context.Background(), "").KeyVals()...)
	level.Info(logger).Log(summary...)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		level.Error(logger).Log("msg", "upload failed", "err", runErr)
		os.Exit(1)
	}
}
