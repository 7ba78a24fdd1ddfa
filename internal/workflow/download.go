// Package workflow drives the outbox download and inbound upload runs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/AppXpress/Integration-API-Utility/internal/api"
	"github.com/AppXpress/Integration-API-Utility/internal/jobs"
	"github.com/AppXpress/Integration-API-Utility/internal/store"
	"github.com/AppXpress/Integration-API-Utility/internal/xmldoc"
)

// ErrDeleteUnconfirmed is recorded when the outbox answers a delete with an empty body.
var ErrDeleteUnconfirmed = errors.New("delete not confirmed")

// OutboxClient is the part of the integration API the downloader needs.
type OutboxClient interface {
	PollOutbox(ctx context.Context) (api.OutboxList, error)
	FetchDocument(ctx context.Context, actionID int64) ([]byte, error)
	DeleteDocument(ctx context.Context, actionID int64) (int, error)
}

// Downloader moves outbox documents into a sink.
type Downloader struct {
	Client OutboxClient
	Sink   store.Sink
	Logger log.Logger

	// Concurrency is the window size handed to jobs.Run.
	Concurrency int
	// DeleteAfterFetch deletes written documents and keeps polling every Interval.
	DeleteAfterFetch bool
	Interval         time.Duration
	// MaxCycles stops a polling run after that many cycles. Zero means no limit.
	MaxCycles int
}

// DownloadOutcome is the result of handling one outbox entry.
type DownloadOutcome struct {
	Entry        api.OutboxEntry
	Location     string
	Fetched      bool
	Written      bool
	Deleted      bool
	DeleteStatus int
	Err          error
}

// CycleReport summarises one list/fetch/write/delete cycle.
type CycleReport struct {
	RunID    string
	Listed   int
	Rejected int
	Fetched  int
	Written  int
	Deleted  int
	Failed   int
	Outcomes []DownloadOutcome
}

// Run performs one cycle, or keeps cycling every Interval while
// DeleteAfterFetch is set. A listing failure ends a single-cycle run; in a
// polling run it is logged and the next cycle is attempted.
func (d *Downloader) Run(ctx context.Context) ([]CycleReport, error) {
	logger := d.logger()
	var reports []CycleReport

	for cycle := 1; ; cycle++ {
		report, err := d.Cycle(ctx)
		reports = append(reports, report)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			if !d.DeleteAfterFetch {
				return reports, err
			}
			level.Error(logger).Log("msg", "download cycle failed", "run", report.RunID, "err", err)
		}

		if !d.DeleteAfterFetch {
			return reports, nil
		}
		if d.MaxCycles > 0 && cycle >= d.MaxCycles {
			return reports, nil
		}

		level.Info(logger).Log("msg", "waiting for next outbox poll", "interval", d.Interval)
		if !wait(ctx, d.Interval) {
			return reports, nil
		}
	}
}

// Cycle lists the outbox once and handles every entry window by window.
func (d *Downloader) Cycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{RunID: uuid.NewString()}
	logger := log.With(d.logger(), "run", report.RunID)

	list, err := d.Client.PollOutbox(ctx)
	if err != nil {
		return report, fmt.Errorf("list outbox: %w", err)
	}
	report.Listed = len(list.Entries)
	report.Rejected = len(list.Rejected)

	if info := list.Info; info != nil {
		level.Debug(logger).Log("msg", "outbox listed", "count", info.Count, "offset", info.Offset,
			"first_row", info.FirstRowNumber, "estimated_total", info.EstimatedTotalCount, "has_more", info.HasMore)
	}
	for _, rejected := range list.Rejected {
		messageUID := "unknown"
		if rejected.MessageUID != nil {
			messageUID = fmt.Sprint(*rejected.MessageUID)
		}
		level.Warn(logger).Log("msg", "skipping outbox entry", "message_uid", messageUID, "err", rejected.Err)
	}
	if len(list.Entries) == 0 {
		level.Info(logger).Log("msg", "outbox empty")
		return report, nil
	}
	level.Info(logger).Log("msg", "downloading outbox", "entries", len(list.Entries), "delete", d.DeleteAfterFetch)

	outcomes, err := jobs.Run(ctx, list.Entries, d.Concurrency, func(ctx context.Context, entry api.OutboxEntry) (DownloadOutcome, error) {
		return d.handle(ctx, logger, entry), nil
	})
	report.Outcomes = outcomes
	for _, outcome := range outcomes {
		if outcome.Fetched {
			report.Fetched++
		}
		if outcome.Written {
			report.Written++
		}
		if outcome.Deleted {
			report.Deleted++
		}
		if outcome.Err != nil {
			report.Failed++
		}
	}

	level.Info(logger).Log("msg", "download cycle finished", "listed", report.Listed, "fetched", report.Fetched,
		"written", report.Written, "deleted", report.Deleted, "failed", report.Failed, "rejected", report.Rejected)
	return report, err
}

func (d *Downloader) handle(ctx context.Context, logger log.Logger, entry api.OutboxEntry) DownloadOutcome {
	outcome := DownloadOutcome{Entry: entry}
	logger = log.With(logger, "action_uid", entry.ActionUID, "document_type", entry.DocumentType)

	body, err := d.Client.FetchDocument(ctx, entry.ActionUID)
	if err != nil {
		outcome.Err = fmt.Errorf("fetch action %d: %w", entry.ActionUID, err)
		logFailure(logger, "fetch failed", outcome.Err)
		return outcome
	}
	outcome.Fetched = true

	data, err := xmldoc.Pretty(body, xmldoc.DefaultIndent)
	if err != nil {
		level.Warn(logger).Log("msg", "document is not well-formed xml, storing raw body", "err", err)
		data = body
	}

	name := entry.FileName()
	outcome.Location = d.Sink.Location(name)
	if err := d.Sink.Put(ctx, name, data); err != nil {
		outcome.Err = fmt.Errorf("store action %d: %w", entry.ActionUID, err)
		logFailure(logger, "write failed", outcome.Err)
		return outcome
	}
	outcome.Written = true
	level.Info(logger).Log("msg", "document written", "file", outcome.Location)

	if !d.DeleteAfterFetch {
		return outcome
	}

	status, err := d.Client.DeleteDocument(ctx, entry.ActionUID)
	outcome.DeleteStatus = status
	if err != nil {
		outcome.Err = fmt.Errorf("delete action %d: %w", entry.ActionUID, err)
		logFailure(logger, "delete failed", outcome.Err)
		return outcome
	}
	// The status is inferred from the response body, not read from the reply.
	if status == api.DeleteAccepted {
		outcome.Deleted = true
		level.Info(logger).Log("msg", "document deleted from outbox", "status", status, "status_source", "body")
		return outcome
	}
	outcome.Err = fmt.Errorf("delete action %d: %w", entry.ActionUID, ErrDeleteUnconfirmed)
	level.Warn(logger).Log("msg", "delete not confirmed, empty response", "status_source", "body", "err", outcome.Err)
	return outcome
}

func (d *Downloader) logger() log.Logger {
	if d.Logger == nil {
		return log.NewNopLogger()
	}
	return d.Logger
}

func logFailure(logger log.Logger, msg string, err error) {
	var connectErr *api.ConnectError
	if errors.As(err, &connectErr) {
		level.Error(logger).Log("msg", msg, "host", connectErr.URL, "err", err)
		return
	}
	level.Error(logger).Log("msg", msg, "err", err)
}

// wait blocks for d or until ctx ends. It reports whether the full duration elapsed.
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
