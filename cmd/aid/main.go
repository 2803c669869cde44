// Command aid runs the AiD companion: a persona-driven Discord chat agent
// with tiered conversational memory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadonomaro197-cloud/AiD/internal/config"
	discordbot "github.com/kadonomaro197-cloud/AiD/internal/discord"
	"github.com/kadonomaro197-cloud/AiD/internal/engine"
	"github.com/kadonomaro197-cloud/AiD/internal/formation"
	"github.com/kadonomaro197-cloud/AiD/internal/health"
	"github.com/kadonomaro197-cloud/AiD/internal/manager"
	"github.com/kadonomaro197-cloud/AiD/internal/observe"
	"github.com/kadonomaro197-cloud/AiD/internal/persona"
	"github.com/kadonomaro197-cloud/AiD/internal/prompt"
	"github.com/kadonomaro197-cloud/AiD/internal/rag"
	"github.com/kadonomaro197-cloud/AiD/internal/resilience"
	"github.com/kadonomaro197-cloud/AiD/internal/retrieval"
	"github.com/kadonomaro197-cloud/AiD/internal/window"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory/chromem"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory/postgres"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory/stm"
	"github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings"
	ollamaembed "github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings/ollama"
	oaembed "github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings/openai"
	"github.com/kadonomaro197-cloud/AiD/pkg/provider/llm"
	"github.com/kadonomaro197-cloud/AiD/pkg/provider/llm/anyllm"
)

const (
	defaultDataDir       = "data"
	defaultEmbeddingDims = 1536
	shutdownTimeout      = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// The level var lets a config reload change verbosity without a restart.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		applyReload(level, old, updated)
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "aid: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "aid: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()

	cfg := watcher.Current()
	level.Set(slogLevel(cfg.Server.LogLevel))

	slog.Info("aid starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"backend", cfg.Memory.Backend,
		"persona", cfg.Persona.Name,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "aid"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, embedProvider, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	dataDir := cfg.Memory.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		slog.Error("failed to create data directory", "dir", dataDir, "err", err)
		return 1
	}

	// Long-term memory is only available with an embeddings provider; the
	// bot still chats without one, it just never remembers past the
	// short-term log.
	var (
		store           memory.VectorStore
		retrievalEngine *retrieval.Engine
		memoryFormation *formation.Formation
	)
	if embedProvider != nil {
		store, err = openStore(ctx, cfg, dataDir, embedProvider.Dimensions(), logger)
		if err != nil {
			slog.Error("failed to open long-term store", "backend", cfg.Memory.Backend, "err", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(sctx); err != nil {
				slog.Warn("store close error", "err", err)
			}
		}()

		retrievalEngine = retrieval.New(store, embedProvider, retrieval.Config{}, logger)
		memoryFormation = formation.New(store, embedProvider,
			filepath.Join(dataDir, "formation.json"), formation.Config{}, logger)
	}

	relationship := persona.OpenRelationship(filepath.Join(dataDir, "relationship.json"), logger)
	character := persona.Persona{
		Name:        cfg.Persona.Name,
		Description: cfg.Persona.Description,
		Traits:      cfg.Persona.Traits,
		Boundaries:  cfg.Persona.Boundaries,
	}

	mgr := manager.New(manager.Deps{
		Gate:         memory.NewGate(),
		Engine:       retrievalEngine,
		Formation:    memoryFormation,
		Relationship: relationship,
		Assembler: prompt.New(prompt.Config{
			TotalTokens:     cfg.Budgets.TotalTokens,
			MemoryModeScore: cfg.Budgets.MemoryModeScore,
		}, logger),
		Classifier: window.New(0, 0),
		Persona:    character,
	}, manager.Config{
		STMPath:   filepath.Join(dataDir, "stm.json"),
		BufferCap: cfg.Memory.BufferCap,
		STMLimit:  cfg.Memory.STMLimit,
		SaveTrigger: stm.SaveTrigger{
			Appends:  cfg.Memory.SaveAppends,
			Interval: cfg.Memory.SaveInterval,
		},
		RetrieveTopK: cfg.Memory.RetrieveTopK,
	}, logger)

	kb := rag.LoadKnowledgeBase(cfg.Persona.KnowledgeDir, logger)
	eng := engine.New(mgr, llmProvider, kb, engine.Config{
		RetrieveTopK: cfg.Memory.RetrieveTopK,
	}, logger)

	bot, err := discordbot.New(discordbot.Config{
		Token:       cfg.Discord.Token,
		Channels:    cfg.Discord.Channels,
		MentionOnly: cfg.Discord.MentionOnly,
	}, eng, logger)
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = startMetricsServer(cfg.Server.MetricsAddr, store, mgr)
	}

	botErr := make(chan error, 1)
	go func() {
		botErr <- bot.Run(ctx)
	}()

	slog.Info("ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
	case err := <-botErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("discord bot error", "err", err)
		}
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	exit := 0
	if err := bot.Close(); err != nil {
		slog.Warn("discord bot close error", "err", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	if err := mgr.Close(shutdownCtx); err != nil {
		slog.Error("memory manager close error", "err", err)
		exit = 1
	}
	slog.Info("goodbye")
	return exit
}

// applyReload applies the hot-reloadable parts of a config change. Anything
// else requires a restart and is only reported.
func applyReload(level *slog.LevelVar, old, updated *config.Config) {
	diff := config.Diff(old, updated)
	if !diff.Any() {
		return
	}
	if diff.LogLevelChanged {
		level.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level updated", "level", diff.NewLogLevel)
	}
	if diff.PersonaChanged {
		slog.Warn("persona changed in config; restart to apply")
	}
	if diff.BudgetsChanged {
		slog.Warn("prompt budgets changed in config; restart to apply")
	}
}

// openStore opens the configured long-term memory backend.
func openStore(ctx context.Context, cfg *config.Config, dataDir string, providerDims int, log *slog.Logger) (memory.VectorStore, error) {
	switch cfg.Memory.Backend {
	case config.BackendPostgres:
		dims := cfg.Memory.EmbeddingDimensions
		if dims <= 0 {
			dims = providerDims
		}
		if dims <= 0 {
			dims = defaultEmbeddingDims
		}
		return postgres.NewStore(ctx, cfg.Memory.PostgresDSN, dims)
	case config.BackendChromem, "":
		return chromem.Open(filepath.Join(dataDir, "ltm"), log)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

// registerBuiltinProviders wires the provider factories that ship with AiD
// into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// All cloud LLM providers share the same pattern: optional APIKey +
	// optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})
}

// buildProviders instantiates the configured providers. The LLM is required;
// embeddings are optional and returned nil when not configured. Both are
// wrapped in circuit breakers, and embeddings additionally in a result cache.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, embeddings.Provider, error) {
	base, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)
	llmProvider := resilience.NewLLMFallback(base, cfg.Providers.LLM.Name, resilience.FallbackConfig{})

	if cfg.Providers.Embeddings.Name == "" {
		return llmProvider, nil, nil
	}

	embedBase, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return nil, nil, fmt.Errorf("create embeddings provider %q: %w", cfg.Providers.Embeddings.Name, err)
	}
	cached, err := embeddings.NewCached(embedBase, embeddings.CacheConfig{})
	if err != nil {
		return nil, nil, fmt.Errorf("wrap embeddings cache: %w", err)
	}
	slog.Info("provider created", "kind", "embeddings", "name", cfg.Providers.Embeddings.Name, "model", cfg.Providers.Embeddings.Model)
	embedProvider := resilience.NewEmbeddingsFallback(cached, cfg.Providers.Embeddings.Name, resilience.FallbackConfig{})

	return llmProvider, embedProvider, nil
}

// startMetricsServer serves Prometheus metrics plus liveness and readiness
// probes on addr.
func startMetricsServer(addr string, store memory.VectorStore, mgr *manager.Manager) *http.Server {
	checkers := []health.Checker{health.MemoryCheck(mgr)}
	if store != nil {
		checkers = append(checkers, health.StoreCheck(store))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "err", err)
		}
	}()
	return srv
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
