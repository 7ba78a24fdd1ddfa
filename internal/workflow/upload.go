package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/AppXpress/Integration-API-Utility/internal/api"
	"github.com/AppXpress/Integration-API-Utility/internal/config"
	"github.com/AppXpress/Integration-API-Utility/internal/jobs"
	"github.com/AppXpress/Integration-API-Utility/internal/store"
	"github.com/AppXpress/Integration-API-Utility/internal/xmldoc"
)

// DefaultStatusInterval is the pause between two status checks of one message.
const DefaultStatusInterval = 4 * time.Second

var (
	// ErrNoAcks is returned when an upload response lists no tracked message.
	ErrNoAcks = errors.New("upload response contains no message")
	// ErrMessageFailed is recorded when the service finished a message in the Failed state.
	ErrMessageFailed = errors.New("message processing failed")
)

// InboundClient is the part of the integration API the uploader needs.
type InboundClient interface {
	Upload(ctx context.Context, rawXML []byte, docType string) ([]api.UploadAck, error)
	Status(ctx context.Context, messageID int64) (api.StatusResult, error)
}

// Uploader submits documents and follows each one until the service finishes it.
type Uploader struct {
	Client  InboundClient
	Logger  log.Logger
	DocType string

	Concurrency  int
	PollInterval time.Duration
}

// UploadOutcome is the result of uploading and tracking one document.
type UploadOutcome struct {
	Document store.Document
	Acks     []api.UploadAck
	Final    api.StatusResult
	Polls    int
	Err      error
}

// BuildDocuments returns the documents an upload run submits: the files of
// the upload folder, or clones of the template with numbered order numbers.
func BuildDocuments(cfg config.Uploader) ([]store.Document, error) {
	if cfg.FolderPath != "" {
		return store.ReadFolder(cfg.FolderPath)
	}

	template, err := os.ReadFile(cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	if err := xmldoc.Validate(template); err != nil {
		return nil, fmt.Errorf("template %s: %w", cfg.TemplatePath, err)
	}
	element := cfg.OrderNumberElement
	if element == "" {
		element = "poNumber"
	}
	clones, err := xmldoc.Replicate(template, element, cfg.Count)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", cfg.TemplatePath, err)
	}

	base := filepath.Base(cfg.TemplatePath)
	docs := make([]store.Document, len(clones))
	for i, clone := range clones {
		docs[i] = store.Document{Name: fmt.Sprintf("%s#%d", base, i), Data: clone}
	}
	return docs, nil
}

// Run uploads docs window by window. Every outcome carries its own error; the
// returned error is only set when the run itself was interrupted.
func (u *Uploader) Run(ctx context.Context, docs []store.Document) ([]UploadOutcome, error) {
	logger := u.logger()
	level.Info(logger).Log("msg", "uploading documents", "count", len(docs), "doc_type", u.DocType)

	outcomes, err := jobs.Run(ctx, docs, u.Concurrency, func(ctx context.Context, doc store.Document) (UploadOutcome, error) {
		return u.handle(ctx, log.With(logger, "document", doc.Name), doc), nil
	})

	var completed, failed int
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			continue
		}
		completed++
	}
	level.Info(logger).Log("msg", "upload run finished", "documents", len(docs), "completed", completed, "failed", failed)
	return outcomes, err
}

func (u *Uploader) handle(ctx context.Context, logger log.Logger, doc store.Document) UploadOutcome {
	outcome := UploadOutcome{Document: doc}

	acks, err := u.Client.Upload(ctx, doc.Data, u.DocType)
	if err != nil {
		outcome.Err = fmt.Errorf("upload %s: %w", doc.Name, err)
		logFailure(logger, "upload failed", outcome.Err)
		return outcome
	}
	outcome.Acks = acks
	if len(acks) == 0 {
		outcome.Err = fmt.Errorf("upload %s: %w", doc.Name, ErrNoAcks)
		logFailure(logger, "upload failed", outcome.Err)
		return outcome
	}
	for _, extra := range acks[1:] {
		level.Warn(logger).Log("msg", "untracked message in upload response", "message_id", extra.MessageID)
	}

	messageID := acks[0].MessageID
	logger = log.With(logger, "message_id", messageID)
	level.Info(logger).Log("msg", "document uploaded")

	interval := u.PollInterval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	for {
		status, err := u.Client.Status(ctx, messageID)
		outcome.Polls++
		if err != nil {
			outcome.Err = fmt.Errorf("status of message %d: %w", messageID, err)
			logFailure(logger, "status check failed", outcome.Err)
			return outcome
		}
		level.Info(logger).Log("msg", "message status", "state", status.State, "action", status.StateActionType, "poll", outcome.Polls)

		if status.Terminal() {
			outcome.Final = status
			if !status.Completed() {
				outcome.Err = fmt.Errorf("message %d: %w", messageID, ErrMessageFailed)
			}
			return outcome
		}
		if !wait(ctx, interval) {
			outcome.Final = status
			outcome.Err = fmt.Errorf("status of message %d: %w", messageID, ctx.Err())
			return outcome
		}
	}
}

func (u *Uploader) logger() log.Logger {
	if u.Logger == nil {
		return log.NewNopLogger()
	}
	return u.Logger
}
