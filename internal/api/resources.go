package api

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Terminal processing states of an uploaded message.
const (
	StateCompleted = "Completed"
	StateFailed    = "Failed"
	stateUnknown   = "-unknown-"
)

// ErrMissingActionUID marks outbox entries that cannot be fetched or deleted.
var ErrMissingActionUID = errors.New("outbox entry has no actionUid")

// ResultInfo summarises an outbox listing.
type ResultInfo struct {
	Count               int  `xml:"count"`
	Offset              int  `xml:"offset"`
	FirstRowNumber      int  `xml:"firstRowNumber"`
	EstimatedTotalCount int  `xml:"estimatedTotalCount"`
	HasMore             bool `xml:"hasMore"`
}

// OutboxEntry is one pending document in the remote outbox.
type OutboxEntry struct {
	MessageUID      int64
	DocumentType    string
	MessagePriority string
	ActionUID       int64
}

// FileName is the name a fetched document is stored under.
func (e OutboxEntry) FileName() string {
	return fmt.Sprintf("%s-%d.xml", e.DocumentType, e.ActionUID)
}

// RejectedEntry is an outbox result that could not be turned into an OutboxEntry.
type RejectedEntry struct {
	MessageUID *int64
	Err        error
}

// OutboxList is the parsed outbox listing.
type OutboxList struct {
	Info     *ResultInfo
	Entries  []OutboxEntry
	Rejected []RejectedEntry
}

type outboxListXML struct {
	XMLName    xml.Name         `xml:"QueryResult"`
	ResultInfo *ResultInfo      `xml:"resultInfo"`
	Results    []outboxEntryXML `xml:"result"`
}

type outboxEntryXML struct {
	MessageUID      *int64 `xml:"messageUid"`
	DocumentType    string `xml:"documentType"`
	MessagePriority string `xml:"messagePriority"`
	ActionUID       *int64 `xml:"actionUid"`
}

// ParseOutboxList decodes an outbox listing. Results without an actionUid are
// returned in Rejected rather than given a placeholder id.
func ParseOutboxList(data []byte) (OutboxList, error) {
	var raw outboxListXML
	if err := xml.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return OutboxList{}, fmt.Errorf("parse outbox list: %w", err)
	}

	list := OutboxList{Info: raw.ResultInfo}
	for _, result := range raw.Results {
		if result.ActionUID == nil {
			list.Rejected = append(list.Rejected, RejectedEntry{MessageUID: result.MessageUID, Err: ErrMissingActionUID})
			continue
		}
		entry := OutboxEntry{
			DocumentType:    strings.TrimSpace(result.DocumentType),
			MessagePriority: strings.TrimSpace(result.MessagePriority),
			ActionUID:       *result.ActionUID,
		}
		if result.MessageUID != nil {
			entry.MessageUID = *result.MessageUID
		}
		list.Entries = append(list.Entries, entry)
	}
	return list, nil
}

// UploadAck acknowledges one tracked message created by an upload.
type UploadAck struct {
	MessageID int64           `json:"messageId"`
	Raw       json.RawMessage `json:"-"`
}

// ParseUploadAcks decodes the JSON array returned by an upload.
func ParseUploadAcks(data []byte) ([]UploadAck, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}

	acks := make([]UploadAck, 0, len(raw))
	for i, element := range raw {
		var ack UploadAck
		if err := json.Unmarshal(element, &ack); err != nil {
			return nil, fmt.Errorf("parse upload ack %d: %w", i, err)
		}
		ack.Raw = element
		acks = append(acks, ack)
	}
	return acks, nil
}

// StatusResult is the processing state of an uploaded message.
type StatusResult struct {
	MessageID       int64  `json:"messageId"`
	State           string `json:"state"`
	StateActionType string `json:"stateActionType"`
}

// Terminal reports whether processing has finished.
func (s StatusResult) Terminal() bool {
	return strings.EqualFold(s.State, StateCompleted) || strings.EqualFold(s.State, StateFailed)
}

// Completed reports whether processing finished successfully.
func (s StatusResult) Completed() bool {
	return strings.EqualFold(s.State, StateCompleted)
}

// ParseStatus decodes a status response. A missing state is treated as pending.
func ParseStatus(data []byte) (StatusResult, error) {
	status := StatusResult{State: stateUnknown}
	if err := json.Unmarshal(data, &status); err != nil {
		return StatusResult{}, fmt.Errorf("parse status response: %w", err)
	}
	if status.State == "" {
		status.State = stateUnknown
	}
	return status, nil
}

// PollOutbox lists and parses the outbox.
func (c *Client) PollOutbox(ctx context.Context) (OutboxList, error) {
	body, err := c.ListOutbox(ctx)
	if err != nil {
		return OutboxList{}, err
	}
	return ParseOutboxList(body)
}

// Upload submits a document and parses the acknowledgements.
func (c *Client) Upload(ctx context.Context, rawXML []byte, docType string) ([]UploadAck, error) {
	body, err := c.UploadDocument(ctx, rawXML, docType)
	if err != nil {
		return nil, err
	}
	return ParseUploadAcks(body)
}

// Status fetches and parses a message status.
func (c *Client) Status(ctx context.Context, messageID int64) (StatusResult, error) {
	body, err := c.FetchStatus(ctx, messageID)
	if err != nil {
		return StatusResult{}, err
	}
	return ParseStatus(body)
}
