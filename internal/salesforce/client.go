package salesforce

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ORAITApps/attachment-migrator/internal/models"
)

const DefaultAPIVersion = "50.0"

// Operation names passed to the request observer.
const (
	OpQuery  = "query"
	OpFetch  = "fetch_content"
	OpCreate = "create"
)

// Observer is notified after every request with the operation, the response status
// (0 on transport failure) and the elapsed time.
type Observer func(op string, status int, elapsed time.Duration)

type Client struct {
	session    models.Session
	httpClient *http.Client
	apiVersion string
	limiter    *rate.Limiter
	observe    Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if v := strings.TrimPrefix(strings.TrimSpace(version), "v"); v != "" {
			c.apiVersion = v
		}
	}
}

// WithRateLimit caps outgoing requests to rps per second. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observe = o
	}
}

func NewClient(session models.Session, opts ...Option) *Client {
	c := &Client{
		session:    session,
		httpClient: &http.Client{},
		apiVersion: DefaultAPIVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) InstanceURL() string {
	return c.session.InstanceURL
}

func (c *Client) dataURL(parts ...string) string {
	return c.session.InstanceURL + "/services/data/v" + c.apiVersion + "/" + strings.Join(parts, "/")
}

// do sends an authorized request and returns the status and the full response body.
func (c *Client) do(ctx context.Context, op, method, target string, body any) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.notify(op, 0, start)
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.notify(op, resp.StatusCode, start)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) notify(op string, status int, start time.Time) {
	if c.observe != nil {
		c.observe(op, status, time.Since(start))
	}
}

// Query runs a SOQL query and returns the first page of records. Every record must
// carry an Id.
func (c *Client) Query(ctx context.Context, soql string) ([]models.Record, error) {
	if strings.TrimSpace(soql) == "" {
		return nil, &ValidationError{Reason: "empty SOQL query"}
	}

	queryURL := c.dataURL("query") + "?q=" + url.QueryEscape(soql)
	status, body, err := c.do(ctx, OpQuery, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &QueryError{SOQL: soql, StatusCode: status, Err: err}
	}
	if status != http.StatusOK {
		return nil, &QueryError{SOQL: soql, StatusCode: status, Body: string(body)}
	}

	var result models.QueryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &QueryError{SOQL: soql, StatusCode: status, Body: string(body), Err: err}
	}

	for i, rec := range result.Records {
		if rec.ID() == "" {
			return nil, &ValidationError{Reason: fmt.Sprintf("record %d of query result has no Id", i)}
		}
	}

	if result.Records == nil {
		return []models.Record{}, nil
	}
	return result.Records, nil
}

// QueryAttachments runs a SOQL query over Attachment and validates each row.
func (c *Client) QueryAttachments(ctx context.Context, soql string) ([]models.AttachmentRecord, error) {
	records, err := c.Query(ctx, soql)
	if err != nil {
		return nil, err
	}

	attachments := make([]models.AttachmentRecord, 0, len(records))
	for _, rec := range records {
		att, err := models.NewAttachmentRecord(rec)
		if err != nil {
			return nil, &ValidationError{ID: rec.ID(), Reason: err.Error()}
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

// FetchContent downloads the raw body of an Attachment.
func (c *Client) FetchContent(ctx context.Context, attachmentID string) ([]byte, error) {
	if strings.TrimSpace(attachmentID) == "" {
		return nil, &ValidationError{Reason: "attachment Id is missing"}
	}

	target := c.dataURL("sobjects", models.ObjectAttachment, url.PathEscape(attachmentID), "Body")
	status, body, err := c.do(ctx, OpFetch, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{ID: attachmentID, StatusCode: status, Err: err}
	}
	if status != http.StatusOK {
		return nil, &FetchError{ID: attachmentID, StatusCode: status, Body: string(body)}
	}
	return body, nil
}

// CreateRecord creates one sObject and returns its new id. Callers must strip Id and
// attributes from fields beforehand.
func (c *Client) CreateRecord(ctx context.Context, objectType string, fields map[string]any) (string, error) {
	if strings.TrimSpace(objectType) == "" {
		return "", &ValidationError{Reason: "object type is required"}
	}
	for _, key := range []string{models.FieldID, models.FieldAttributes} {
		if _, ok := fields[key]; ok {
			return "", &ValidationError{Reason: fmt.Sprintf("field %s must not be sent on create", key)}
		}
	}

	target := c.dataURL("sobjects", url.PathEscape(objectType)) + "/"
	status, body, err := c.do(ctx, OpCreate, http.MethodPost, target, fields)
	if err != nil {
		return "", &CreateError{ObjectType: objectType, StatusCode: status, Err: err}
	}
	if status != http.StatusCreated {
		return "", &CreateError{ObjectType: objectType, StatusCode: status, Body: string(body)}
	}

	var result models.CreateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &CreateError{ObjectType: objectType, StatusCode: status, Body: string(body), Err: err}
	}
	if result.ID == "" {
		return "", &CreateError{ObjectType: objectType, StatusCode: status, Body: string(body), Err: fmt.Errorf("response carries no id")}
	}
	return result.ID, nil
}

// CreateAttachment creates an Attachment whose Body is content, base64-encoded.
func (c *Client) CreateAttachment(ctx context.Context, fields map[string]any, content []byte) (string, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload[models.FieldBody] = EncodeBody(content)
	return c.CreateRecord(ctx, models.ObjectAttachment, payload)
}

// EncodeBody renders binary content as the text form the JSON create path requires.
func EncodeBody(content []byte) string {
	return base64.StdEncoding.EncodeToString(content)
}

func DecodeBody(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
