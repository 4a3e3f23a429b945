package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/askpdf/askpdf/internal/chunker"
	"github.com/askpdf/askpdf/internal/config"
	"github.com/askpdf/askpdf/internal/extract"
	"github.com/askpdf/askpdf/internal/llm"
	"github.com/askpdf/askpdf/internal/llm/anthropic"
	"github.com/askpdf/askpdf/internal/llm/openai"
	"github.com/askpdf/askpdf/internal/observability"
	"github.com/askpdf/askpdf/internal/server"
	"github.com/askpdf/askpdf/internal/service"
	"github.com/askpdf/askpdf/internal/tui"
	"github.com/askpdf/askpdf/internal/vector"
)

const version = "0.1.0"

func main() {
	var (
		configPath string
		serverURL  string
	)

	rootCmd := &cobra.Command{
		Use:   "askpdf",
		Short: "Ask questions about your PDF documents",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "configs/askpdf.yaml", "Config file path")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat client against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(serverURL)
		},
	}
	chatCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8200", "askpdf server base URL")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-12s %s\n", name, url)
			}
			fmt.Println("  custom       (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in askpdf.yaml or via environment:")
			fmt.Println("  ASKPDF_LLM_PROVIDER=ollama")
			fmt.Println("  ASKPDF_LLM_MODEL=deepseek-r1:8b")
			fmt.Println("  ASKPDF_LLM_EMBED_MODEL=mxbai-embed-large:latest")
		},
	}

	rootCmd.AddCommand(serveCmd, chatCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	setupLogging(cfg.Log)

	ctx := context.Background()

	tracer, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "askpdf",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	slog.Info("using LLM provider", "provider", provider.Name(), "model", cfg.LLM.Model)

	repo, err := buildRepository(ctx, cfg.Vector)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	slog.Info("using vector store", "type", cfg.Vector.Type, "collection", cfg.Vector.Collection)

	svc := service.New(
		extract.NewPDF(),
		chunker.New(cfg.Chunk.Size, cfg.Chunk.Overlap),
		provider,
		repo,
		service.DuplicatePolicy(cfg.Vector.OnDuplicate),
		generationOptions(cfg.LLM),
		slog.Default(),
	)

	health := server.NewHealthServer(version)
	health.RegisterCheck("vector_store", server.VectorStoreHealthChecker(func(ctx context.Context) error {
		_, err := repo.List(ctx)
		return err
	}))
	health.RegisterCheck("llm", server.LLMHealthChecker(provider.Name(), nil))

	api := server.NewAPIServer(&server.APIConfig{
		ListenAddr:  cfg.Server.Addr,
		MaxUploadMB: cfg.Server.MaxUploadMB,
	}, svc, health)

	shutdown := server.NewShutdownHandler(nil)
	shutdown.RegisterShutdownHook(server.HTTPServerShutdownHook("api", api.Stop))
	shutdown.RegisterShutdownHook(server.TracingShutdownHook(tracer.Shutdown))
	shutdown.RegisterShutdownHook(server.VectorStoreShutdownHook(repo.Close))
	shutdown.RegisterHook("not-ready", 1, func(ctx context.Context) error {
		health.SetReady(false)
		return nil
	})
	shutdown.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Start()
	}()
	health.SetReady(true)

	select {
	case err := <-errCh:
		shutdown.Shutdown()
		shutdown.WaitWithTimeout(30 * time.Second)
		return err
	case <-shutdown.Done():
		return nil
	}
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// generationOptions maps the configured sampling knobs to per-request
// options. Zero values mean "use the provider default".
func generationOptions(cfg config.LLMConfig) *llm.RequestOptions {
	opts := &llm.RequestOptions{}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		opts.Temperature = &t
	}
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		opts.MaxTokens = &n
	}
	return opts
}

func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	factory := llm.NewFactory()
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New("openai", c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	// All OpenAI-compatible providers
	for _, p := range []struct{ name, url string }{
		{"ollama", llm.KnownProviders["ollama"]},
		{"groq", llm.KnownProviders["groq"]},
		{"together", llm.KnownProviders["together"]},
		{"deepseek", llm.KnownProviders["deepseek"]},
		{"custom", ""},
	} {
		p := p
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = p.url
			}
			return openai.New(p.name, c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}

	pc := llm.DefaultProviderConfig()
	pc.Provider = cfg.Provider
	pc.APIKey = cfg.APIKey
	pc.Model = cfg.Model
	pc.EmbedModel = cfg.EmbedModel
	pc.BaseURL = cfg.BaseURL
	if cfg.MaxRetries > 0 {
		pc.MaxRetries = cfg.MaxRetries
	}
	pc.RequestsPerMinute = cfg.RequestsPerMinute
	pc.TokensPerMinute = cfg.TokensPerMinute

	return factory.Create(pc)
}

func buildRepository(ctx context.Context, cfg config.VectorConfig) (vector.Repository, error) {
	switch cfg.Type {
	case "memory":
		return vector.NewMemory(), nil
	case "qdrant", "":
		return vector.NewQdrant(ctx, cfg.Host, cfg.Port, cfg.Collection)
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}
