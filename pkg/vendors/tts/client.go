package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
)

// SynthesizeRequest asks OpenAI's speech endpoint for a voice line.
type SynthesizeRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Client talks to the OpenAI text-to-speech API.
type Client struct {
	http *resty.Client
}

// NewClient builds a TTS client from configuration.
func NewClient(cfg config.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http}, nil
}

// Synthesize returns the rendered audio bytes for the given voice line.
func (c *Client) Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error) {
	if req.Input == "" {
		return nil, errors.New("input text is required")
	}
	if req.Model == "" {
		req.Model = "tts-1"
	}
	if req.Voice == "" {
		req.Voice = "onyx"
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/audio/speech")
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tts returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}
