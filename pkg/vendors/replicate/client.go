package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
)

// Prediction mirrors Replicate's prediction resource.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
}

// CreateRequest starts a prediction against a pinned model version.
type CreateRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

// Client talks to the Replicate predictions API.
type Client struct {
	http *resty.Client
}

// NewClient builds a Replicate client from configuration.
func NewClient(cfg config.ReplicateConfig) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("replicate api token is required")
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIToken).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http}, nil
}

// CreatePrediction starts a new prediction.
func (c *Client) CreatePrediction(ctx context.Context, req CreateRequest) (*Prediction, error) {
	if req.Version == "" {
		return nil, errors.New("model version is required")
	}
	var prediction Prediction
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&prediction).
		Post("/v1/predictions")
	if err != nil {
		return nil, fmt.Errorf("replicate create: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("replicate returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return &prediction, nil
}

// GetPrediction polls an existing prediction.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	if id == "" {
		return nil, errors.New("prediction id is required")
	}
	var prediction Prediction
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&prediction).
		Get("/v1/predictions/" + id)
	if err != nil {
		return nil, fmt.Errorf("replicate get: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("replicate returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return &prediction, nil
}
