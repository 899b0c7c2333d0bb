package fal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
)

// SubmitResult acknowledges a queued generation request.
type SubmitResult struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

// QueueStatus reports where a queued request currently sits.
type QueueStatus struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	ResponseURL   string `json:"response_url"`
}

// Result carries the raw model output once a request completes.
type Result struct {
	RequestID string          `json:"request_id"`
	Output    json.RawMessage `json:"output"`
}

// Client talks to FAL's queue API.
type Client struct {
	http *resty.Client
}

// NewClient builds a FAL client from configuration.
func NewClient(cfg config.FALConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("fal api key is required")
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Key "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http}, nil
}

// Submit enqueues a generation request for the given model.
func (c *Client) Submit(ctx context.Context, model string, input any) (*SubmitResult, error) {
	if model == "" {
		return nil, errors.New("model is required")
	}
	var result SubmitResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(input).
		SetResult(&result).
		Post("/" + model)
	if err != nil {
		return nil, fmt.Errorf("fal submit: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fal returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.RequestID == "" {
		return nil, errors.New("fal response missing request id")
	}
	return &result, nil
}

// Status polls the queue state of a submitted request.
func (c *Client) Status(ctx context.Context, model, requestID string) (*QueueStatus, error) {
	if requestID == "" {
		return nil, errors.New("request id is required")
	}
	var status QueueStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&status).
		Get(fmt.Sprintf("/%s/requests/%s/status", model, requestID))
	if err != nil {
		return nil, fmt.Errorf("fal status: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fal returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return &status, nil
}

// Fetch retrieves the output of a completed request.
func (c *Client) Fetch(ctx context.Context, model, requestID string) (*Result, error) {
	if requestID == "" {
		return nil, errors.New("request id is required")
	}
	var result Result
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/%s/requests/%s", model, requestID))
	if err != nil {
		return nil, fmt.Errorf("fal fetch: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fal returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}
