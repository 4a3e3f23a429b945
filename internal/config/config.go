// Package config loads askpdf configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Vector  VectorConfig  `mapstructure:"vector"`
	Chunk   ChunkConfig   `mapstructure:"chunk"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	Model             string  `mapstructure:"model"`
	EmbedModel        string  `mapstructure:"embed_model"`
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
}

type VectorConfig struct {
	Type        string `mapstructure:"type"` // qdrant or memory
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Collection  string `mapstructure:"collection"`
	OnDuplicate string `mapstructure:"on_duplicate"` // replace, append, reject
}

type ChunkConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

// keylessProviders run locally or behind user-managed gateways and do not
// require an API key.
var keylessProviders = map[string]bool{
	"": true, "none": true, "ollama": true, "custom": true,
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if !keylessProviders[c.LLM.Provider] && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}

	// Check temperature range [0, 2.0]
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}

	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	if c.Chunk.Size > 0 && c.Chunk.Overlap >= c.Chunk.Size {
		warnings = append(warnings, fmt.Sprintf("chunk overlap %d is not smaller than chunk size %d", c.Chunk.Overlap, c.Chunk.Size))
	}

	switch c.Vector.OnDuplicate {
	case "", "replace", "append", "reject":
	default:
		warnings = append(warnings, fmt.Sprintf("vector on_duplicate '%s' is not one of replace, append, reject", c.Vector.OnDuplicate))
	}

	switch c.Vector.Type {
	case "", "qdrant", "memory":
	default:
		warnings = append(warnings, fmt.Sprintf("vector type '%s' is not one of qdrant, memory", c.Vector.Type))
	}

	return warnings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8200")
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "deepseek-r1:8b")
	v.SetDefault("llm.embed_model", "mxbai-embed-large:latest")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("vector.type", "qdrant")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "askpdf_docs")
	v.SetDefault("vector.on_duplicate", "replace")

	v.SetDefault("chunk.size", 1000)
	v.SetDefault("chunk.overlap", 200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
}

// Load reads configuration from file and environment. A missing config file
// is not an error; defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	// Pull a local .env into the process environment first so viper's
	// AutomaticEnv sees it. Absence is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ASKPDF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
