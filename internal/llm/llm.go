// Package llm provides the model client abstraction shared by the code
// generator and the code evaluator.
package llm

import (
	"context"
	"fmt"

	"github.com/reachykit/geno/internal/config"
	"github.com/reachykit/geno/internal/llm/geminiapi"
	"github.com/reachykit/geno/internal/llm/openaiapi"
)

// CompletionRequest is a single model call.
type CompletionRequest struct {
	Instructions string
	Input        string
}

// CompletionResponse is the text output of a model call.
type CompletionResponse struct {
	OutputText string
}

// Completer executes one completion against a model backend.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// NewCompleter constructs a Completer for the configured provider.
func NewCompleter(cfg config.ModelConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		client, err := openaiapi.NewClient(openaiapi.Config{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			APIKeyEnv:   cfg.APIKeyEnv,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.RequestTimeout(),
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("openai completer: %w", err)
		}
		return &openaiCompleter{client: client}, nil
	case config.ProviderGemini:
		client, err := geminiapi.NewClient(geminiapi.Config{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			APIKeyEnv:   cfg.APIKeyEnv,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.RequestTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("gemini completer: %w", err)
		}
		return &geminiCompleter{client: client}, nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

type openaiCompleter struct {
	client *openaiapi.Client
}

func (c *openaiCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := c.client.Complete(ctx, openaiapi.CompletionRequest{
		Instructions: req.Instructions,
		Input:        req.Input,
	})
	if err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{OutputText: resp.OutputText}, nil
}

type geminiCompleter struct {
	client *geminiapi.Client
}

func (c *geminiCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := c.client.Complete(ctx, geminiapi.CompletionRequest{
		Instructions: req.Instructions,
		Input:        req.Input,
	})
	if err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{OutputText: resp.OutputText}, nil
}
