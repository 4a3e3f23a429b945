package llm

import (
	"context"
	"strings"
	"testing"
	"time"
)

type factoryTestProvider struct {
	name string
}

func (p *factoryTestProvider) Name() string { return p.name }

func (p *factoryTestProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	return &Response{Content: "ok"}, nil
}

func (p *factoryTestProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()

	if cfg.Timeout != 2*time.Minute {
		t.Errorf("expected 2 minute timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected 3 max retries, got %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 1*time.Second {
		t.Errorf("expected 1s retry delay, got %v", cfg.RetryDelay)
	}
}

func TestFactory_Create_EmptyProvider(t *testing.T) {
	factory := NewFactory()

	_, err := factory.Create(ProviderConfig{})
	if err == nil {
		t.Fatal("expected error for empty provider")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFactory_Create_UnknownProvider(t *testing.T) {
	factory := NewFactory()
	factory.Register("known", func(cfg ProviderConfig) (Provider, error) {
		return &factoryTestProvider{name: "known"}, nil
	})

	_, err := factory.Create(ProviderConfig{Provider: "nonexistent"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "unknown LLM provider") {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "known") {
		t.Errorf("error should list registered providers, got: %v", err)
	}
}

func TestFactory_Create_RegisteredProvider(t *testing.T) {
	factory := NewFactory()
	factory.Register("test", func(cfg ProviderConfig) (Provider, error) {
		return &factoryTestProvider{name: "test"}, nil
	})

	provider, err := factory.Create(ProviderConfig{Provider: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider == nil {
		t.Fatal("expected provider")
	}
	if provider.Name() != "test" {
		t.Errorf("expected 'test', got %s", provider.Name())
	}
}

func TestFactory_Create_WrapsWithRetry(t *testing.T) {
	factory := NewFactory()
	factory.Register("test", func(cfg ProviderConfig) (Provider, error) {
		return &factoryTestProvider{name: "test"}, nil
	})

	provider, err := factory.Create(ProviderConfig{
		Provider:   "test",
		MaxRetries: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := provider.(*RetryProvider); !ok {
		t.Errorf("expected RetryProvider wrapper, got %T", provider)
	}
}

func TestFactory_Create_WrapsWithRateLimit(t *testing.T) {
	factory := NewFactory()
	factory.Register("test", func(cfg ProviderConfig) (Provider, error) {
		return &factoryTestProvider{name: "test"}, nil
	})

	provider, err := factory.Create(ProviderConfig{
		Provider:          "test",
		RequestsPerMinute: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := provider.(*RateLimitProvider); !ok {
		t.Errorf("expected RateLimitProvider wrapper, got %T", provider)
	}
}

func TestKnownProviders(t *testing.T) {
	for _, name := range []string{"ollama", "openai", "anthropic", "groq", "together", "deepseek"} {
		if _, ok := KnownProviders[name]; !ok {
			t.Errorf("missing preset for %s", name)
		}
	}

	if KnownProviders["ollama"] != "http://localhost:11434/v1" {
		t.Errorf("unexpected ollama URL: %s", KnownProviders["ollama"])
	}
}
