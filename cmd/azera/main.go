package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/azera-ai/azera/config"
	"github.com/azera-ai/azera/pkg/agent"
	"github.com/azera-ai/azera/pkg/api"
	"github.com/azera-ai/azera/pkg/api/handlers"
	"github.com/azera-ai/azera/pkg/cache"
	"github.com/azera-ai/azera/pkg/embedding"
	"github.com/azera-ai/azera/pkg/lexical"
	"github.com/azera-ai/azera/pkg/llm"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/memory"
	"github.com/azera-ai/azera/pkg/mental"
	"github.com/azera-ai/azera/pkg/metrics"
	"github.com/azera-ai/azera/pkg/session"
	"github.com/azera-ai/azera/pkg/storage"
	"github.com/azera-ai/azera/pkg/storage/badger"
	memstore "github.com/azera-ai/azera/pkg/storage/memory"
	"github.com/azera-ai/azera/pkg/telemetry/tracing"
	"github.com/azera-ai/azera/pkg/vectorstore"
	"github.com/azera-ai/azera/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
	noAgent    = flag.Bool("no-agent", false, "Disable the background agent loop")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Azera",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Hot-reload the log level when the config file changes on disk.
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, config.NewLoader(), config.WithWatcherLogger(log))
		if err != nil {
			log.Warn("Config watcher unavailable", "error", err)
		} else {
			var hotMu sync.Mutex
			hot := config.ExtractHotReloadable(cfg)
			watcher.OnChange(func(next *config.Config) {
				nextHot := config.ExtractHotReloadable(next)
				hotMu.Lock()
				prev := hot
				hot = nextHot
				hotMu.Unlock()
				if !prev.Changed(nextHot) {
					return
				}
				if prev.LogLevel != nextHot.LogLevel {
					logger.SetLevel(logger.ParseLevel(nextHot.LogLevel))
					log.Info("Log level updated", "level", nextHot.LogLevel)
				}
				if prev.LogFormat != nextHot.LogFormat {
					log.Warn("Log format change requires a restart")
				}
				if prev.MetricsEnabled != nextHot.MetricsEnabled ||
					prev.MetricsPath != nextHot.MetricsPath ||
					prev.MetricsPort != nextHot.MetricsPort {
					log.Warn("Metrics server changes require a restart")
				}
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	// Cache: Redis when reachable, in-process fallback otherwise
	var cacheStore cache.Store
	redisStore, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		log.Warn("Redis unavailable, using in-memory cache", "addr", cfg.Redis.Addr, "error", err)
		cacheStore = cache.NewMemoryStore()
	} else {
		log.Info("Connected to Redis", "addr", cfg.Redis.Addr)
		cacheStore = redisStore
	}
	defer cacheStore.Close()

	// Persistent storage
	var store storage.Storage
	switch cfg.Storage.Backend {
	case "badger":
		store, err = badger.NewBadgerStorage(&badger.Config{
			Path:       cfg.Storage.Path,
			SyncWrites: cfg.Storage.SyncWrites,
		})
		if err != nil {
			log.Error("Failed to open Badger storage", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
		log.Info("Initialized Badger storage", "path", cfg.Storage.Path)
	case "memory":
		store = memstore.NewMemoryStorage()
		log.Info("Initialized memory storage")
	default:
		store = memstore.NewMemoryStorage()
		log.Warn("Unknown storage backend, using memory storage", "backend", cfg.Storage.Backend)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	// Metrics
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Index and model clients
	qdrant := vectorstore.NewClient(vectorstore.Config{
		BaseURL: cfg.Qdrant.URL,
		APIKey:  cfg.Qdrant.APIKey,
		Timeout: cfg.Qdrant.Timeout,
	}, log)
	meili := lexical.NewClient(lexical.Config{
		BaseURL: cfg.Meilisearch.URL,
		APIKey:  cfg.Meilisearch.APIKey,
		Timeout: cfg.Meilisearch.Timeout,
	}, log)
	chatClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.Ollama.BaseURL,
		Model:       cfg.Ollama.ChatModel,
		Temperature: cfg.Ollama.Temperature,
		Timeout:     cfg.Ollama.Timeout,
	}, log)

	// Embeddings, with a content-hash cache in front of Ollama
	embedder := embedding.NewCachedProvider(
		embedding.NewOllamaProvider(embedding.OllamaConfig{
			BaseURL:   cfg.Ollama.BaseURL,
			Model:     cfg.Ollama.EmbeddingModel,
			Dimension: cfg.Ollama.EmbeddingDimension,
			Timeout:   cfg.Ollama.Timeout,
		}, log),
		embedding.NewCache(cacheStore, cfg.Memory.CacheTTL),
		metricsManager,
		log,
	)

	// Memory write and recall paths
	writer := memory.NewWriter(qdrant, meili, embedder, log)
	if err := writer.Init(ctx); err != nil {
		log.Warn("Memory indexes unavailable at startup, continuing", "error", err)
	}
	retriever := memory.NewRetriever(qdrant, meili, embedder, log)

	mentalStore := mental.NewStore(cacheStore)
	sessionStore := session.NewStore(cacheStore)

	// Background agent loop
	scheduler := agent.New(agent.Config{
		TickInterval:   cfg.Agent.TickInterval,
		IdleAfter:      cfg.Agent.IdleAfter,
		DreamIdleAfter: cfg.Agent.DreamIdleAfter,
		DreamCooldown:  cfg.Agent.DreamCooldown,
		ReflectionHour: cfg.Agent.ReflectionHour,
		ArchiveDir:     cfg.Agent.ArchiveDir,
	}, agent.Deps{
		Mental:  mentalStore,
		Session: sessionStore,
		Storage: store,
		Writer:  writer,
		LLM:     chatClient,
		Cache:   cacheStore,
		Metrics: metricsManager,
		Logger:  log,
	})
	if cfg.Agent.Enabled && !*noAgent {
		scheduler.Start(ctx)
	} else {
		log.Info("Background agent loop disabled")
	}

	// HTTP API
	chatHandler := handlers.NewChatHandler(handlers.ChatConfig{
		HistoryLimit: cfg.Memory.HistoryLimit,
		RecallLimit:  cfg.Memory.RecallLimit,
	}, handlers.ChatDeps{
		Store:     store,
		Mental:    mentalStore,
		Session:   sessionStore,
		Retriever: retriever,
		Writer:    writer,
		LLM:       chatClient,
		Cache:     cacheStore,
		Agent:     scheduler,
		Metrics:   metricsManager,
		Logger:    log,
	})

	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"qdrant": func(ctx context.Context) error {
			if !qdrant.Healthy(ctx) {
				return errors.New("qdrant unreachable")
			}
			return nil
		},
		"meilisearch": func(ctx context.Context) error {
			if !meili.Healthy(ctx) {
				return errors.New("meilisearch unreachable")
			}
			return nil
		},
		"cache": func(ctx context.Context) error {
			_, _, err := cacheStore.Get(ctx, "healthcheck")
			return err
		},
	})

	apiHandlers := &api.Handlers{
		Health:  healthHandler,
		Persona: handlers.NewPersonaHandler(store, mentalStore, log),
		Chat:    chatHandler,
		Memory:  handlers.NewMemoryHandler(writer, retriever, log),
		State:   handlers.NewStateHandler(store, mentalStore, scheduler, log),
		Models:  handlers.NewModelsHandler(chatClient, log),
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Azera is running",
		"http_addr", cfg.Server.Addr(),
		"metrics_port", cfg.Metrics.Port,
	)
	log.Info("Press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	log.Info("Stopping agent scheduler")
	scheduler.Stop()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Azera stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Azera - AI Companion Backend\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Azera - AI companion backend with long-term memory and a living agent loop\n\n")
	fmt.Printf("Usage: azera [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  azera                                    # Run with default config\n")
	fmt.Printf("  azera -config config.yaml                # Use specific config file\n")
	fmt.Printf("  azera -port 9090 -log-level debug        # Override specific options\n")
	fmt.Printf("  azera -version                           # Print version info\n")
}
