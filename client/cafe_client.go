// Package client calls the Record Store API on behalf of the web server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coffeewifi/model"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIError is a non-2xx answer from the Record Store API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cafe api returned %d: %s", e.StatusCode, e.Message)
}

// StatusOf returns the upstream status code carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type requestIDKey struct{}

// WithRequestID makes outgoing calls carry id in X-Request-Id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

type CafeClient struct {
	http   *resty.Client
	apiKey string
	log    *zap.Logger
}

// New builds a client. Calls are never retried.
func New(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *CafeClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if id, _ := r.Context().Value(requestIDKey{}).(string); id != "" {
				r.SetHeader("X-Request-Id", id)
			}
			return nil
		})

	return &CafeClient{http: httpClient, apiKey: apiKey, log: log}
}

// AllCafes calls GET /all.
func (c *CafeClient) AllCafes(ctx context.Context) ([]model.Cafe, error) {
	var out struct {
		Cafes []model.Cafe `json:"cafes"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/all")
	if err := c.check("list cafes", resp, err); err != nil {
		return nil, err
	}
	return out.Cafes, nil
}

// AddCafe posts payload as JSON to /add.
func (c *CafeClient) AddCafe(ctx context.Context, payload any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/add")
	return c.check("add cafe", resp, err)
}

// ReportClosed calls DELETE /report-closed/{id} with the shared api-key.
func (c *CafeClient) ReportClosed(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParam("api-key", c.apiKey).
		Delete("/report-closed/{id}")
	return c.check("report closed", resp, err)
}

func (c *CafeClient) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.log.Error("cafe api call failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body())}
		c.log.Warn("cafe api returned error",
			zap.String("op", op),
			zap.Int("status_code", apiErr.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return fmt.Errorf("%s: %w", op, apiErr)
	}
	return nil
}

// errorMessage extracts the text from {"error": "..."} or {"error": {"Kind": "..."}}.
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(envelope.Error, &s); err == nil {
		return s
	}
	var m map[string]string
	if err := json.Unmarshal(envelope.Error, &m); err == nil {
		for _, v := range m {
			return v
		}
	}
	return string(envelope.Error)
}
