// Package config provides configuration loading for ragify.
//
// Configuration is read from an optional YAML file and the process
// environment (after .env files are merged into it). The recognised
// environment keys follow a SECTION_FIELD convention, so the keys the
// pipeline has always used map directly onto config sections:
//
//	CHROMA_PATH               -> chroma.path
//	GOOGLE_API_KEY            -> google.api_key
//	SUPABASE_URL              -> supabase.url
//	SUPABASE_SERVICE_ROLE_KEY -> supabase.service_role_key
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfigurationMissing indicates a credential or setting required by the
// requested operation is not configured.
var ErrConfigurationMissing = errors.New("configuration missing")

// Config holds the complete ragify configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Chroma        ChromaConfig        `koanf:"chroma"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Qdrant        QdrantConfig        `koanf:"qdrant"`
	Splitter      SplitterConfig      `koanf:"splitter"`
	Retrieval     RetrievalConfig     `koanf:"retrieval"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Google        GoogleConfig        `koanf:"google"`
	Supabase      SupabaseConfig      `koanf:"supabase"`
	Loader        LoaderConfig        `koanf:"loader"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	MaxUploadMB     int      `koanf:"max_upload_mb"`

	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// PDFRoot limits the local PDFs POST /index may read. Empty disables
	// pdf_path over HTTP; the CLI and MCP are not affected.
	PDFRoot string `koanf:"pdf_root"`
}

// ChromaConfig configures the embedded, on-disk vector index.
type ChromaConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (default, embedded) or "qdrant".
	Provider string `koanf:"provider"`
}

// QdrantConfig configures the optional Qdrant backend.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
	APIKey     Secret `koanf:"api_key"`
}

// SplitterConfig holds chunking parameters.
type SplitterConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// RetrievalConfig holds query-time parameters.
type RetrievalConfig struct {
	TopK int `koanf:"top_k"`
	// MinRelevance drops results scoring below it. Zero disables the floor.
	MinRelevance float64 `koanf:"min_relevance"`
}

// EmbeddingsConfig selects and configures the embedding function.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	CacheDir string `koanf:"cache_dir"`
}

// GoogleConfig holds Google Generative AI settings.
type GoogleConfig struct {
	APIKey Secret `koanf:"api_key"`
	Model  string `koanf:"model"`
}

// SupabaseConfig holds Supabase storage settings.
type SupabaseConfig struct {
	URL            string   `koanf:"url"`
	ServiceRoleKey Secret   `koanf:"service_role_key"`
	Bucket         string   `koanf:"bucket"`
	UploadPrefix   string   `koanf:"upload_prefix"`
	SignedURLTTL   Duration `koanf:"signed_url_ttl"`
}

// LoaderConfig holds document loading settings.
type LoaderConfig struct {
	// MarkdownPath is the document indexed when no PDF source is given.
	MarkdownPath string `koanf:"markdown_path"`

	// RedactSecrets replaces credentials found in chunks before they are
	// embedded. SecretAllowlist holds regexes that are never redacted.
	RedactSecrets   bool     `koanf:"redact_secrets"`
	SecretAllowlist []string `koanf:"secret_allowlist"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Credentials are not checked here; they are only required by the
// operations that use them (see RequireGoogle and RequireSupabase).
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("server rate_limit and rate_burst cannot be negative")
	}
	if c.Chroma.Path == "" {
		return errors.New("chroma path is required")
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vectorstore provider %q (want chromem or qdrant)", c.VectorStore.Provider)
	}

	if c.Splitter.ChunkSize <= 0 {
		return fmt.Errorf("splitter chunk_size must be positive, got %d", c.Splitter.ChunkSize)
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("splitter chunk_overlap must be in [0, chunk_size), got %d", c.Splitter.ChunkOverlap)
	}

	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinRelevance < 0 || c.Retrieval.MinRelevance > 1 {
		return fmt.Errorf("retrieval min_relevance must be between 0 and 1, got %f", c.Retrieval.MinRelevance)
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei", "google":
	default:
		return fmt.Errorf("unknown embeddings provider %q (want fastembed, tei or google)", c.Embeddings.Provider)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

// RequireGoogle reports ErrConfigurationMissing when GOOGLE_API_KEY is unset.
func (c *Config) RequireGoogle() error {
	if !c.Google.APIKey.IsSet() {
		return fmt.Errorf("%w: GOOGLE_API_KEY is not set", ErrConfigurationMissing)
	}
	return nil
}

// RequireSupabase reports ErrConfigurationMissing naming every unset
// Supabase credential.
func (c *Config) RequireSupabase() error {
	return c.Supabase.Require()
}

// Require reports ErrConfigurationMissing naming every unset credential.
func (s SupabaseConfig) Require() error {
	var missing []string
	if s.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if !s.ServiceRoleKey.IsSet() {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrConfigurationMissing, strings.Join(missing, " and "))
	}
	return nil
}
