// Package gateway is the HTTP boundary to the school-records backend. Every
// failure is translated into a typed error: a non-2xx answer becomes a backend
// rejection carrying the server's detail message, anything else a transport failure.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

const maxErrorBody = 64 << 10

type requestObserver interface {
	ObserveGatewayRequest(method, route, outcome string, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     *TokenSource
	Metrics    requestObserver
	Logger     *zap.Logger
}

// Client talks to the records backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenSource
	metrics requestObserver
	logger  *zap.Logger
}

// New constructs a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		tokens:  opts.Tokens,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// ListStudents fetches the students matching the server-side filters.
func (c *Client) ListStudents(ctx context.Context, filters models.FilterSet) ([]models.StudentRecord, error) {
	query := url.Values{}
	if filters.Search != "" {
		query.Set("search", filters.Search)
	}
	if filters.ClassID != "" {
		query.Set("classId", filters.ClassID)
	}
	if filters.Status != "" {
		query.Set("status", string(filters.Status))
	}
	var students []models.StudentRecord
	if err := c.do(ctx, http.MethodGet, "/students", "/students", query, nil, &students); err != nil {
		return nil, err
	}
	if students == nil {
		students = []models.StudentRecord{}
	}
	return students, nil
}

// ListClasses fetches every class.
func (c *Client) ListClasses(ctx context.Context) ([]models.ClassRecord, error) {
	var classes []models.ClassRecord
	if err := c.do(ctx, http.MethodGet, "/classes", "/classes", nil, nil, &classes); err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []models.ClassRecord{}
	}
	return classes, nil
}

// CreateStudent registers a student.
func (c *Client) CreateStudent(ctx context.Context, in models.StudentInput) (*models.StudentRecord, error) {
	var out models.StudentRecord
	if err := c.do(ctx, http.MethodPost, "/students", "/students", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStudent replaces a student's editable fields.
func (c *Client) UpdateStudent(ctx context.Context, id string, in models.StudentInput) (*models.StudentRecord, error) {
	var out models.StudentRecord
	if err := c.do(ctx, http.MethodPut, "/students/{id}", "/students/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStudent removes a student.
func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/students/{id}", "/students/"+url.PathEscape(id), nil, nil, nil)
}

// CreateClass registers a class.
func (c *Client) CreateClass(ctx context.Context, in models.ClassInput) (*models.ClassRecord, error) {
	var out models.ClassRecord
	if err := c.do(ctx, http.MethodPost, "/classes", "/classes", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateClass replaces a class's editable fields.
func (c *Client) UpdateClass(ctx context.Context, id string, in models.ClassInput) (*models.ClassRecord, error) {
	var out models.ClassRecord
	if err := c.do(ctx, http.MethodPut, "/classes/{id}", "/classes/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteClass removes a class.
func (c *Client) DeleteClass(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/classes/{id}", "/classes/"+url.PathEscape(id), nil, nil, nil)
}

// Enroll assigns a student to a class. Capacity is decided by the backend.
func (c *Client) Enroll(ctx context.Context, req models.EnrollmentRequest) error {
	return c.do(ctx, http.MethodPost, "/enrollments", "/enrollments", nil, req, nil)
}

// Health checks the backend liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "/health", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, body, out interface{}) (err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = strings.ToLower(appErrors.FromError(err).Code)
		}
		if c.metrics != nil {
			c.metrics.ObserveGatewayRequest(method, route, outcome, time.Since(start))
		}
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrTransportFailure.Code, appErrors.ErrTransportFailure.Status, appErrors.ErrTransportFailure.Message)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign api token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("gateway request failed", zap.String("method", method), zap.String("route", route), zap.String("request_id", requestID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrTransportFailure.Code, appErrors.ErrTransportFailure.Status, appErrors.ErrTransportFailure.Message)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		rejection := appErrors.Rejection(resp.StatusCode, decodeDetail(raw))
		c.logger.Info("gateway request rejected", zap.String("method", method), zap.String("route", route), zap.Int("status", resp.StatusCode), zap.String("request_id", requestID), zap.String("detail", rejection.Message))
		return rejection
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return appErrors.Wrap(fmt.Errorf("decode %s %s: %w", method, route, err), appErrors.ErrTransportFailure.Code, appErrors.ErrTransportFailure.Status, appErrors.ErrTransportFailure.Message)
	}
	return nil
}

// decodeDetail extracts the human-readable message of an error body. The detail
// is either a string or a list of validation entries carrying "msg".
func decodeDetail(raw []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}
	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
