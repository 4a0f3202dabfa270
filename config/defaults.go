package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "azera",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  2 * time.Minute,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Ollama: OllamaConfig{
			BaseURL:            "http://localhost:11434",
			ChatModel:          "llama3.1",
			EmbeddingModel:     "nomic-embed-text",
			EmbeddingDimension: 768,
			Temperature:        0.8,
			Timeout:            2 * time.Minute,
		},
		Qdrant: QdrantConfig{
			URL:     "http://localhost:6333",
			Timeout: 10 * time.Second,
		},
		Meilisearch: MeilisearchConfig{
			URL:     "http://localhost:7700",
			Timeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:    "badger",
			Path:       "./data/azera",
			SyncWrites: false,
		},
		Agent: AgentConfig{
			Enabled:        true,
			TickInterval:   time.Second,
			IdleAfter:      time.Minute,
			DreamIdleAfter: 30 * time.Minute,
			DreamCooldown:  7 * time.Hour,
			ReflectionHour: 3,
		},
		Memory: MemoryConfig{
			RecallLimit:  5,
			HistoryLimit: 20,
			CacheTTL:     7 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}
