package a2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
)

// A2E wraps every response in an envelope; a non-zero code inside an HTTP 200
// is still an application-level failure and must be treated as one.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// VendorError carries A2E's application-level error code and message.
type VendorError struct {
	Code    int
	Message string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("a2e error %d: %s", e.Code, e.Message)
}

// TrainVideoRequest starts avatar training from a source video.
type TrainVideoRequest struct {
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	VideoURL string `json:"video_url"`
}

// TrainImageRequest starts avatar training from a source image.
type TrainImageRequest struct {
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	ImageURL string `json:"image_url"`
}

// TrainResult is the vendor's acknowledgment of a started training job.
type TrainResult struct {
	ID     string `json:"_id"`
	Status string `json:"status"`
}

// TrainingStatus reports the vendor-side state of a training job.
type TrainingStatus struct {
	ID        string  `json:"_id"`
	Status    string  `json:"status"`
	ResultURL *string `json:"result_url"`
}

// Client calls the A2E avatar training API.
type Client struct {
	http *resty.Client
}

// NewClient builds an A2E client from configuration.
func NewClient(cfg config.A2EConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("a2e api key is required")
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http}, nil
}

// StartVideoTraining submits a video-twin training job.
func (c *Client) StartVideoTraining(ctx context.Context, req TrainVideoRequest) (*TrainResult, error) {
	var result TrainResult
	if err := c.post(ctx, "/api/v1/userVideoTwin/startTraining", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartImageTraining submits an image-twin training job.
func (c *Client) StartImageTraining(ctx context.Context, req TrainImageRequest) (*TrainResult, error) {
	var result TrainResult
	if err := c.post(ctx, "/api/v1/userImageTwin/startTraining", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTraining polls the vendor-side state of a training job.
func (c *Client) GetTraining(ctx context.Context, externalID string) (*TrainingStatus, error) {
	if externalID == "" {
		return nil, errors.New("training id is required")
	}
	var status TrainingStatus
	payload := map[string]string{"_id": externalID}
	if err := c.post(ctx, "/api/v1/userVideoTwin/detail", payload, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&env).
		Post(path)
	if err != nil {
		return fmt.Errorf("a2e request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("a2e returned status %d: %s", resp.StatusCode(), truncate(resp.String()))
	}
	if env.Code != 0 {
		return &VendorError{Code: env.Code, Message: env.Msg}
	}
	if dest != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return fmt.Errorf("decode a2e response: %w", err)
		}
	}
	return nil
}

func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max]
}
