package main

import (
	"strings"
	"testing"

	"github.com/AppXpress/Integration-API-Utility/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.credentialsPath != config.DefaultCredentialsPath || opts.configPath != config.DefaultDownloaderPath {
		t.Fatalf("paths = %q, %q", opts.credentialsPath, opts.configPath)
	}
	if opts.cycles != 0 || opts.debug {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestParseFlagsValues(t *testing.T) {
	opts, err := parseFlags([]string{"-credentials", "c.properties", "-config", "d.yaml", "-cycles", "3", "-debug"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.credentialsPath != "c.properties" || opts.configPath != "d.yaml" || opts.cycles != 3 || !opts.debug {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestParseFlagsRejectsNegativeCycles(t *testing.T) {
	if _, err := parseFlags([]string{"-cycles", "-1"}); err == nil {
		t.Fatal("parseFlags() error = nil, want error")
	}
}

func TestDebugUsageDescribesResponseLogging(t *testing.T) {
	usage := newFlagSet(&options{}).Lookup("debug").Usage
	if strings.Contains(usage, "signed request") {
		t.Fatalf("debug usage = %q", usage)
	}
	for _, want := range []string{"status", "response", "outbox listing"} {
		if !strings.Contains(usage, want) {
			t.Fatalf("debug usage %q does not mention %q", usage, want)
		}
	}
}
