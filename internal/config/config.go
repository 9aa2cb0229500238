// Package config provides configuration loading and management for geno.
package config

import (
	"fmt"
	"os"
	"time"
)

// Model roles resolved by ResolveModel.
const (
	RoleGenerator = "generator"
	RoleEvaluator = "evaluator"
)

// Supported model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is the root configuration.
type Config struct {
	Models    map[string]ModelConfig `json:"models"              mapstructure:"models"`
	Pipeline  PipelineConfig         `json:"pipeline"            mapstructure:"pipeline"`
	Knowledge KnowledgeConfig        `json:"knowledge"           mapstructure:"knowledge"`
	Sandbox   SandboxConfig          `json:"sandbox,omitempty"   mapstructure:"sandbox"`
	Retention RetentionPolicy        `json:"retention,omitempty" mapstructure:"retention"`
}

// ModelConfig describes one model endpoint.
type ModelConfig struct {
	Provider    string  `json:"provider"              mapstructure:"provider"`
	Model       string  `json:"model"                 mapstructure:"model"`
	APIKey      string  `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv   string  `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	BaseURL     string  `json:"base_url,omitempty"    mapstructure:"base_url"`
	Temperature float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"  mapstructure:"max_tokens"`
	Timeout     int     `json:"timeout,omitempty"     mapstructure:"timeout"`
}

// PipelineConfig defines the generation loop budgets.
type PipelineConfig struct {
	MaxCorrectionAttempts   int     `json:"max_correction_attempts"   mapstructure:"max_correction_attempts"`
	MaxOptimizationAttempts int     `json:"max_optimization_attempts" mapstructure:"max_optimization_attempts"`
	ScoreThreshold          float64 `json:"score_threshold"           mapstructure:"score_threshold"`
}

// KnowledgeConfig points at the API knowledge base file.
type KnowledgeConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// SandboxConfig configures local execution of accepted code.
type SandboxConfig struct {
	Python  string `json:"python,omitempty"  mapstructure:"python"`
	Timeout int    `json:"timeout,omitempty" mapstructure:"timeout"`
}

// RetentionPolicy defines how many old runs to keep.
type RetentionPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days"`
}

// Default budgets applied when the config omits them.
const (
	DefaultMaxCorrectionAttempts   = 3
	DefaultMaxOptimizationAttempts = 3
	DefaultScoreThreshold          = 75.0
	DefaultModelTimeout            = 60
	DefaultSandboxTimeout          = 120
)

// ApplyDefaults fills zero-valued budgets with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Pipeline.MaxCorrectionAttempts == 0 {
		c.Pipeline.MaxCorrectionAttempts = DefaultMaxCorrectionAttempts
	}
	if c.Pipeline.MaxOptimizationAttempts == 0 {
		c.Pipeline.MaxOptimizationAttempts = DefaultMaxOptimizationAttempts
	}
	if c.Pipeline.ScoreThreshold == 0 {
		c.Pipeline.ScoreThreshold = DefaultScoreThreshold
	}
	if c.Sandbox.Python == "" {
		c.Sandbox.Python = "python3"
	}
	if c.Sandbox.Timeout == 0 {
		c.Sandbox.Timeout = DefaultSandboxTimeout
	}
	for name, m := range c.Models {
		if m.Timeout == 0 {
			m.Timeout = DefaultModelTimeout
			c.Models[name] = m
		}
	}
}

// Validate checks semantic constraints the JSON schema cannot express.
func (c *Config) Validate() error {
	if c.Pipeline.MaxCorrectionAttempts <= 0 {
		return fmt.Errorf("pipeline.max_correction_attempts must be > 0")
	}
	if c.Pipeline.MaxOptimizationAttempts < 0 {
		return fmt.Errorf("pipeline.max_optimization_attempts must be >= 0")
	}
	if c.Pipeline.ScoreThreshold < 0 || c.Pipeline.ScoreThreshold > 100 {
		return fmt.Errorf("pipeline.score_threshold must be in [0,100]")
	}
	if _, ok := c.Models[RoleGenerator]; !ok {
		return fmt.Errorf("models.generator is required")
	}
	for name, m := range c.Models {
		if m.Provider != ProviderOpenAI && m.Provider != ProviderGemini {
			return fmt.Errorf("models.%s.provider %q is not supported", name, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("models.%s.model is required", name)
		}
		if m.APIKey == "" && m.APIKeyEnv == "" {
			return fmt.Errorf("models.%s requires api_key or api_key_env", name)
		}
	}
	return nil
}

// ResolveModel returns the model config for a role. The evaluator falls
// back to the generator model when not configured separately.
func (c *Config) ResolveModel(role string) (ModelConfig, error) {
	if m, ok := c.Models[role]; ok {
		return c.resolveKey(role, m)
	}
	if role == RoleEvaluator {
		if m, ok := c.Models[RoleGenerator]; ok {
			return c.resolveKey(RoleGenerator, m)
		}
	}
	return ModelConfig{}, fmt.Errorf("models.%s is not configured", role)
}

func (c *Config) resolveKey(name string, m ModelConfig) (ModelConfig, error) {
	if m.APIKey == "" && m.APIKeyEnv != "" {
		key := os.Getenv(m.APIKeyEnv)
		if key == "" {
			return ModelConfig{}, fmt.Errorf("models.%s: environment variable %s is empty", name, m.APIKeyEnv)
		}
		m.APIKey = key
	}
	return m, nil
}

// RequestTimeout returns the per-call timeout as a duration.
func (m ModelConfig) RequestTimeout() time.Duration {
	if m.Timeout <= 0 {
		return DefaultModelTimeout * time.Second
	}
	return time.Duration(m.Timeout) * time.Second
}
