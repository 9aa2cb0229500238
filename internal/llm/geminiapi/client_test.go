package geminiapi

import (
	"os"
	"testing"
)

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"})
	if err == nil {
		t.Fatal("NewClient returned nil error, want error")
	}
}

func TestNewClient_ReturnsErrorWhenAPIKeyMissing(t *testing.T) {
	const envKey = "GENO_GEMINI_MISSING_KEY"
	if err := os.Unsetenv(envKey); err != nil {
		t.Fatalf("unset env: %v", err)
	}

	_, err := NewClient(Config{
		Model:     "gemini-2.5-pro",
		APIKeyEnv: envKey,
	})
	if err == nil {
		t.Fatal("NewClient returned nil error, want error")
	}
}
