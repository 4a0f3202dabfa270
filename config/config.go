// Package config provides configuration management for Azera.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Azera.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Redis is the cache backend configuration.
	Redis RedisConfig `mapstructure:"redis"`

	// Ollama is the language and embedding model configuration.
	Ollama OllamaConfig `mapstructure:"ollama"`

	// Qdrant is the semantic memory index configuration.
	Qdrant QdrantConfig `mapstructure:"qdrant"`

	// Meilisearch is the lexical memory index configuration.
	Meilisearch MeilisearchConfig `mapstructure:"meilisearch"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Agent is the background tick loop configuration.
	Agent AgentConfig `mapstructure:"agent"`

	// Memory is the recall tuning configuration.
	Memory MemoryConfig `mapstructure:"memory"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// ReadTimeout bounds how long reading a request may take.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout bounds how long writing a response may take. Streaming
	// responses need generous room here.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RequestTimeout is the per-request deadline applied by middleware.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// RateLimit is the request rate limiting configuration.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	// AllowedOrigins lists allowed origins; "*" allows all.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds request throttling settings.
type RateLimitConfig struct {
	// Enabled turns rate limiting on.
	Enabled bool `mapstructure:"enabled"`

	// RPS is the sustained requests per second allowed per client.
	RPS float64 `mapstructure:"rps" validate:"min=0"`

	// Burst is the short-term burst allowance.
	Burst int `mapstructure:"burst" validate:"min=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the log output format (json or text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is where logs go: stdout, stderr, or a file path.
	Output string `mapstructure:"output"`
}

// RedisConfig holds cache backend settings.
type RedisConfig struct {
	// Addr is the Redis server address.
	Addr string `mapstructure:"addr" validate:"required"`

	// Password is the Redis password, empty for none.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db" validate:"min=0"`

	// PoolSize is the connection pool size; zero uses the client default.
	PoolSize int `mapstructure:"pool_size" validate:"min=0"`
}

// OllamaConfig holds model settings.
type OllamaConfig struct {
	// BaseURL is the Ollama server URL.
	BaseURL string `mapstructure:"base_url" validate:"required"`

	// ChatModel is the conversation model name.
	ChatModel string `mapstructure:"chat_model" validate:"required"`

	// EmbeddingModel is the embedding model name.
	EmbeddingModel string `mapstructure:"embedding_model" validate:"required"`

	// EmbeddingDimension is the embedding vector width.
	EmbeddingDimension int `mapstructure:"embedding_dimension" validate:"min=1"`

	// Temperature is the chat sampling temperature.
	Temperature float64 `mapstructure:"temperature" validate:"min=0,max=2"`

	// Timeout bounds a single model call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// QdrantConfig holds semantic index settings.
type QdrantConfig struct {
	// URL is the Qdrant server URL.
	URL string `mapstructure:"url" validate:"required"`

	// APIKey authenticates against Qdrant, empty for none.
	APIKey string `mapstructure:"api_key"`

	// Timeout bounds a single Qdrant call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// MeilisearchConfig holds lexical index settings.
type MeilisearchConfig struct {
	// URL is the Meilisearch server URL.
	URL string `mapstructure:"url" validate:"required"`

	// APIKey authenticates against Meilisearch, empty for none.
	APIKey string `mapstructure:"api_key"`

	// Timeout bounds a single Meilisearch call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Backend selects the storage implementation.
	Backend string `mapstructure:"backend" validate:"oneof=badger memory"`

	// Path is the data directory for the badger backend.
	Path string `mapstructure:"path"`

	// SyncWrites makes badger fsync every write.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// AgentConfig holds background loop settings.
type AgentConfig struct {
	// Enabled turns the background tick loop on.
	Enabled bool `mapstructure:"enabled"`

	// TickInterval is the scheduler tick period.
	TickInterval time.Duration `mapstructure:"tick_interval"`

	// IdleAfter is how long after the last interaction idle decay starts.
	IdleAfter time.Duration `mapstructure:"idle_after"`

	// DreamIdleAfter is the silence required before dreaming.
	DreamIdleAfter time.Duration `mapstructure:"dream_idle_after"`

	// DreamCooldown is the minimum gap between dreams.
	DreamCooldown time.Duration `mapstructure:"dream_cooldown"`

	// ReflectionHour is the local hour of the daily reflection.
	ReflectionHour int `mapstructure:"reflection_hour" validate:"min=0,max=23"`

	// ArchiveDir enables markdown archiving of dreams and journal
	// entries when non-empty.
	ArchiveDir string `mapstructure:"archive_dir"`
}

// MemoryConfig holds recall tuning.
type MemoryConfig struct {
	// RecallLimit is the maximum merged results per recall.
	RecallLimit int `mapstructure:"recall_limit" validate:"min=1"`

	// HistoryLimit is how many recent chat messages feed the prompt.
	HistoryLimit int `mapstructure:"history_limit" validate:"min=1"`

	// CacheTTL is how long cached embeddings live.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled turns Prometheus metrics on.
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled turns OTLP tracing on.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Addr returns the server bind address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateWithDetails(c)
}

// String returns a human-readable summary of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s v%s (%s), Server: %s, Storage: %s}",
		c.App.Name, c.App.Version, c.App.Environment, c.Server.Addr(), c.Storage.Backend)
}
