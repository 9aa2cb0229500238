// Package geminiapi wraps the Google Gemini API for oneshot calls.
package geminiapi

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultAPIKeyEnv = "GEMINI_API_KEY"
	defaultTimeout   = 60 * time.Second
)

// Config is Gemini API client configuration.
type Config struct {
	Model       string
	BaseURL     string
	APIKey      string
	APIKeyEnv   string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// CompletionRequest is a single Gemini generateContent request.
type CompletionRequest struct {
	Instructions string
	Input        string
}

// CompletionResponse is a single Gemini generateContent response.
type CompletionResponse struct {
	OutputText string
}

// Client wraps the Gemini API for oneshot calls.
type Client struct {
	cfg    Config
	client *genai.Client
}

// NewClient constructs a new Gemini API client.
func NewClient(cfg Config) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		envKey := strings.TrimSpace(cfg.APIKeyEnv)
		if envKey == "" {
			envKey = defaultAPIKeyEnv
		}
		apiKey = strings.TrimSpace(os.Getenv(envKey))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required (set api_key or api_key_env)")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		cfg: Config{
			Model:       model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		},
		client: client,
	}, nil
}

// Complete executes a single generateContent request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.Instructions, genai.RoleUser),
	}
	if c.cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(c.cfg.Temperature))
	}
	if c.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Input, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("gemini generate content: %w", err)
	}

	output := strings.TrimSpace(resp.Text())
	if output == "" {
		return CompletionResponse{}, fmt.Errorf("gemini response did not contain output text")
	}

	return CompletionResponse{OutputText: output}, nil
}
