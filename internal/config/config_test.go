package config

import "testing"

func validConfig() Config {
	return Config{
		Models: map[string]ModelConfig{
			RoleGenerator: {Provider: ProviderOpenAI, Model: "gpt-5", APIKeyEnv: "OPENAI_API_KEY"},
		},
		Pipeline: PipelineConfig{
			MaxCorrectionAttempts:   3,
			MaxOptimizationAttempts: 3,
			ScoreThreshold:          75,
		},
	}
}

func TestApplyDefaults_FillsBudgets(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Models: map[string]ModelConfig{
			RoleGenerator: {Provider: ProviderOpenAI, Model: "gpt-5", APIKey: "k"},
		},
	}
	cfg.ApplyDefaults()
	if cfg.Pipeline.MaxCorrectionAttempts != DefaultMaxCorrectionAttempts {
		t.Fatalf("max_correction_attempts = %d, want %d", cfg.Pipeline.MaxCorrectionAttempts, DefaultMaxCorrectionAttempts)
	}
	if cfg.Pipeline.MaxOptimizationAttempts != DefaultMaxOptimizationAttempts {
		t.Fatalf("max_optimization_attempts = %d, want %d", cfg.Pipeline.MaxOptimizationAttempts, DefaultMaxOptimizationAttempts)
	}
	if cfg.Pipeline.ScoreThreshold != DefaultScoreThreshold {
		t.Fatalf("score_threshold = %v, want %v", cfg.Pipeline.ScoreThreshold, DefaultScoreThreshold)
	}
	if cfg.Models[RoleGenerator].Timeout != DefaultModelTimeout {
		t.Fatalf("model timeout = %d, want %d", cfg.Models[RoleGenerator].Timeout, DefaultModelTimeout)
	}
}

func TestValidate_RequiresGeneratorModel(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	delete(cfg.Models, RoleGenerator)
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate returned nil error, want error")
	}
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Models["generator"] = ModelConfig{Provider: "anthropic", Model: "m", APIKey: "k"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate returned nil error, want error")
	}
}

func TestValidate_RejectsThresholdOutOfRange(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Pipeline.ScoreThreshold = 101
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate returned nil error, want error")
	}
}

func TestResolveModel_EvaluatorFallsBackToGenerator(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Models[RoleGenerator] = ModelConfig{Provider: ProviderGemini, Model: "gemini-2.5-pro", APIKey: "k"}
	m, err := cfg.ResolveModel(RoleEvaluator)
	if err != nil {
		t.Fatalf("ResolveModel returned error: %v", err)
	}
	if m.Model != "gemini-2.5-pro" {
		t.Fatalf("model = %q, want generator fallback", m.Model)
	}
}

func TestResolveModel_ReadsKeyFromEnv(t *testing.T) {
	cfg := validConfig()
	t.Setenv("OPENAI_API_KEY", "secret")
	m, err := cfg.ResolveModel(RoleGenerator)
	if err != nil {
		t.Fatalf("ResolveModel returned error: %v", err)
	}
	if m.APIKey != "secret" {
		t.Fatalf("api key = %q, want value from env", m.APIKey)
	}
}

func TestResolveModel_ErrorsOnEmptyEnvKey(t *testing.T) {
	cfg := validConfig()
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := cfg.ResolveModel(RoleGenerator); err == nil {
		t.Fatal("ResolveModel returned nil error, want error")
	}
}

func TestValidateSettings_AllowsCompleteConfig(t *testing.T) {
	t.Parallel()

	settings := map[string]any{
		"models": map[string]any{
			"generator": map[string]any{
				"provider":    "openai",
				"model":       "gpt-5",
				"api_key_env": "OPENAI_API_KEY",
				"timeout":     45,
			},
			"evaluator": map[string]any{
				"provider":    "gemini",
				"model":       "gemini-2.5-pro",
				"api_key_env": "GEMINI_API_KEY",
			},
		},
		"pipeline": map[string]any{
			"max_correction_attempts":   3,
			"max_optimization_attempts": 3,
			"score_threshold":           75.0,
		},
		"knowledge": map[string]any{"path": "api_documentation.json"},
		"retention": map[string]any{"keep_last": 10, "keep_days": 7},
	}

	if err := ValidateSettings(settings); err != nil {
		t.Fatalf("ValidateSettings returned error: %v", err)
	}
}

func TestValidateSettings_RejectsModelWithoutAPIKey(t *testing.T) {
	t.Parallel()

	settings := map[string]any{
		"models": map[string]any{
			"generator": map[string]any{
				"provider": "openai",
				"model":    "gpt-5",
			},
		},
	}

	if err := ValidateSettings(settings); err == nil {
		t.Fatal("ValidateSettings returned nil error, want error")
	}
}

func TestValidateSettings_RejectsZeroCorrectionBudget(t *testing.T) {
	t.Parallel()

	settings := map[string]any{
		"models": map[string]any{
			"generator": map[string]any{
				"provider": "openai",
				"model":    "gpt-5",
				"api_key":  "k",
			},
		},
		"pipeline": map[string]any{
			"max_correction_attempts": 0,
		},
	}

	if err := ValidateSettings(settings); err == nil {
		t.Fatal("ValidateSettings returned nil error, want error")
	}
}
