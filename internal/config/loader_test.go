package config_test

import (
	"strings"
	"testing"

	"github.com/kadonomaro197-cloud/AiD/internal/config"
)

const validYAML = `
server:
  log_level: info
discord:
  token: "bot-token"
providers:
  llm:
    name: openai
    model: gpt-4o
  embeddings:
    name: ollama
    model: nomic-embed-text
persona:
  name: Aid
  description: "You are a thoughtful companion."
memory:
  data_dir: ./data
  backend: chromem
  embedding_dimensions: 768
`

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Persona.Name != "Aid" {
		t.Errorf("persona.name = %q, want Aid", cfg.Persona.Name)
	}
	if cfg.Memory.Backend != config.BackendChromem {
		t.Errorf("memory.backend = %q, want chromem", cfg.Memory.Backend)
	}
	if cfg.Memory.EmbeddingDimensions != 768 {
		t.Errorf("embedding_dimensions = %d, want 768", cfg.Memory.EmbeddingDimensions)
	}
}

func TestValidate_MissingDiscordToken(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
persona:
  name: Aid
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing discord token, got nil")
	}
	if !strings.Contains(err.Error(), "discord.token") {
		t.Errorf("error should mention discord.token, got: %v", err)
	}
}

func TestValidate_MissingLLMProvider(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: "bot-token"
persona:
  name: Aid
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing LLM provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.llm.name") {
		t.Errorf("error should mention providers.llm.name, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
discord:
  token: "bot-token"
providers:
  llm:
    name: openai
persona:
  name: Aid
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_PostgresBackendRequiresDSN(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: "bot-token"
providers:
  llm:
    name: openai
persona:
  name: Aid
memory:
  backend: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for postgres backend without DSN, got nil")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestValidate_InvalidBackend(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: "bot-token"
providers:
  llm:
    name: openai
persona:
  name: Aid
memory:
  backend: cassandra
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}
	if !strings.Contains(err.Error(), "memory.backend") {
		t.Errorf("error should mention memory.backend, got: %v", err)
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
memory:
  backend: postgres
budgets:
  memory_mode_score: 3.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation errors, got nil")
	}
	for _, want := range []string{"log_level", "discord.token", "postgres_dsn", "memory_mode_score"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: "bot-token"
  shard_count: 4
providers:
  llm:
    name: openai
persona:
  name: Aid
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field shard_count, got nil")
	}
}
