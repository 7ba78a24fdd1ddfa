package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/AppXpress/Integration-API-Utility/internal/config"
	apicrypto "github.com/AppXpress/Integration-API-Utility/internal/crypto"
)

// Content types sent in the Content-type header.
const (
	ContentTypeXML  = "application/xml"
	ContentTypeJSON = "application/json"
)

const (
	outboxListPath   = "/rest/3.1/integration/outbox/list"
	outboxFetchPath  = "/rest/3.1/integration/outbox/fetch/"
	outboxDeletePath = "/rest/3.1/integration/outbox/delete/"
	inboundUpload    = "/rest/3.1/integration/inbound/upload"
	inboundStatus    = "/rest/3.1/integration/inbound/status/"
)

// DeleteAccepted is reported by DeleteDocument when the service acknowledged the delete.
const DeleteAccepted = http.StatusAccepted

// ConnectError reports that the integration host could not be reached.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("cannot find host of %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// StatusError reports an HTTP error status returned by the service.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error %s for %s: %s", e.Status, e.URL, e.Body)
}

// Client issues HMAC signed requests to the integration API.
type Client struct {
	BaseURL     *url.URL
	Credentials config.Credentials
	Client      *http.Client
	Logger      log.Logger

	// Now supplies the x-dapi-date; overridable for tests.
	Now func() time.Time
}

// NewClient constructs a client for the configured host.
func NewClient(creds config.Credentials, logger log.Logger) (*Client, error) {
	parsed, err := url.Parse(creds.Host)
	if err != nil {
		return nil, fmt.Errorf("parse host url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("host url %q must be absolute", creds.Host)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	timeout := creds.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		BaseURL:     parsed,
		Credentials: creds,
		Client:      &http.Client{Timeout: timeout},
		Logger:      logger,
		Now:         time.Now,
	}, nil
}

// ListOutbox returns the raw XML outbox listing.
func (c *Client) ListOutbox(ctx context.Context) ([]byte, error) {
	return c.doSigned(ctx, http.MethodGet, outboxListPath, ContentTypeXML, nil)
}

// FetchDocument returns the raw XML document behind an outbox action.
func (c *Client) FetchDocument(ctx context.Context, actionID int64) ([]byte, error) {
	return c.doSigned(ctx, http.MethodGet, outboxFetchPath+strconv.FormatInt(actionID, 10), ContentTypeXML, nil)
}

// DeleteDocument removes an action from the outbox. It reports DeleteAccepted
// when the service answered with a non-empty body and 0 otherwise; the
// service gives no stronger acknowledgement than that.
func (c *Client) DeleteDocument(ctx context.Context, actionID int64) (int, error) {
	body, err := c.doSigned(ctx, http.MethodPost, outboxDeletePath+strconv.FormatInt(actionID, 10), ContentTypeXML, nil)
	if err != nil {
		return 0, err
	}
	if len(body) > 0 {
		return DeleteAccepted, nil
	}
	return 0, nil
}

// UploadDocument posts a raw XML document for the given document type and
// returns the raw JSON acknowledgement list.
func (c *Client) UploadDocument(ctx context.Context, rawXML []byte, docType string) ([]byte, error) {
	path := inboundUpload + "?docType='" + url.QueryEscape(docType) + "'"
	if rawXML == nil {
		rawXML = []byte{}
	}
	return c.doSigned(ctx, http.MethodPost, path, ContentTypeXML, rawXML)
}

// FetchStatus returns the raw JSON processing status of an uploaded message.
func (c *Client) FetchStatus(ctx context.Context, messageID int64) ([]byte, error) {
	return c.doSigned(ctx, http.MethodGet, inboundStatus+strconv.FormatInt(messageID, 10), ContentTypeJSON, nil)
}

// doSigned sends the request; a nil body means no body is sent or signed.
func (c *Client) doSigned(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	requestURL := strings.TrimRight(c.BaseURL.String(), "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	date := apicrypto.DapiDate(c.Now())
	signature, err := apicrypto.Sign(c.Credentials.Secret, method, requestURL, date, body, body != nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", apicrypto.Authorization(c.Credentials.AccessKey, signature, c.Credentials.User))
	req.Header.Set("datakey", c.Credentials.Datakey)
	req.Header.Set("x-dapi-date", date)
	req.Header.Set("Content-type", contentType)

	resp, err := c.Client.Do(req)
	if err != nil {
		if isConnectFailure(err) {
			return nil, &ConnectError{URL: requestURL, Err: err}
		}
		return nil, fmt.Errorf("request %s: %w", requestURL, err)
	}
	defer resp.Body.Close()

	level.Debug(c.Logger).Log("msg", "response", "method", method, "url", requestURL, "status", resp.StatusCode)

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", requestURL, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{URL: requestURL, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(responseBody)}
	}
	return responseBody, nil
}

func isConnectFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
