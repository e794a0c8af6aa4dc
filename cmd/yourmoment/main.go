package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/fgrng/yourmoment/internal/api"
	"github.com/fgrng/yourmoment/internal/config"
	"github.com/fgrng/yourmoment/internal/control"
	yourmomentcrypto "github.com/fgrng/yourmoment/internal/crypto"
	"github.com/fgrng/yourmoment/internal/db"
	"github.com/fgrng/yourmoment/internal/llm"
	"github.com/fgrng/yourmoment/internal/pipeline"
	"github.com/fgrng/yourmoment/internal/repository"
	"github.com/fgrng/yourmoment/internal/scheduler"
	"github.com/fgrng/yourmoment/internal/scraper"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		serve()
		return
	}
	fmt.Println("yourmoment v0.1.0")
	fmt.Println("Usage: yourmoment serve")
}

func serve() {
	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	vault, err := yourmomentcrypto.NewVault([]byte(cfg.VaultKey))
	if err != nil {
		slog.Error("vault init failed", "err", err)
		os.Exit(1)
	}

	// Optional: connect to PostgreSQL if a database URL is configured;
	// otherwise every repository runs in-memory only.
	var database *db.DB
	if cfg.Database.URL != "" {
		d, err := db.New(context.Background(), cfg.Database.URL)
		if err != nil {
			slog.Warn("database unavailable, using in-memory storage", "err", err)
		} else {
			database = d
			defer database.Close()
			if err := database.Migrate(context.Background()); err != nil {
				slog.Error("database migration failed", "err", err)
				os.Exit(1)
			}
			slog.Info("database connected")
		}
	}

	memProcesses := repository.NewMemoryProcessRepository()
	var processes repository.ProcessRepository = memProcesses
	if database != nil {
		processes = repository.NewPersistentProcessRepository(memProcesses, database)
	}

	memItems := repository.NewMemoryWorkItemRepository()
	var items repository.WorkItemRepository = memItems
	if database != nil {
		items = repository.NewPersistentWorkItemRepository(memItems, database)
	}

	memLogins := repository.NewMemoryUpstreamLoginRepository()
	var logins repository.UpstreamLoginRepository = memLogins
	if database != nil {
		logins = repository.NewPersistentUpstreamLoginRepository(memLogins, database)
	}

	memProviderConfigs := repository.NewMemoryLLMProviderConfigRepository()
	var providerConfigs repository.LLMProviderConfigRepository = memProviderConfigs
	if database != nil {
		providerConfigs = repository.NewPersistentLLMProviderConfigRepository(memProviderConfigs, database)
	}

	memTemplates := repository.NewMemoryPromptTemplateRepository()
	var templates repository.PromptTemplateRepository = memTemplates
	if database != nil {
		templates = repository.NewPersistentPromptTemplateRepository(memTemplates, database)
	}

	rateLimiter := scraper.NewRateLimiter(cfg.Scraper.RequestsPerSecond)
	sessions, err := scraper.NewRegistry(cfg.Scraper.BaseURL, time.Duration(cfg.Scraper.RequestTimeoutSeconds)*time.Second, rateLimiter)
	if err != nil {
		slog.Error("scraper registry init failed", "err", err)
		os.Exit(1)
	}

	providers := llm.NewRegistry()
	providers.Register("openai", func(apiKey string) llm.Provider { return llm.NewOpenAIProvider(apiKey) })
	providers.Register("mistral", func(apiKey string) llm.Provider { return llm.NewMistralProvider(apiKey) })
	providers.Register("anthropic", func(apiKey string) llm.Provider { return llm.NewAnthropicProvider(apiKey) })

	discovery := pipeline.NewDiscoveryWorker(sessions, logins, items, vault)
	discovery.Limit = cfg.Scraper.DiscoveryLimit
	preparation := pipeline.NewPreparationWorker(sessions, logins, items, vault)
	generation := pipeline.NewGenerationWorker(items, templates, providerConfigs, providers, vault, cfg.Monitoring.AICommentPrefix)
	posting := pipeline.NewPostingWorker(sessions, logins, items, vault)

	sched := scheduler.NewScheduler(processes, discovery, preparation, generation, posting)
	sched.TickPeriod = time.Duration(cfg.Scheduler.TickPeriodSeconds) * time.Second
	sched.GenLimiter = scheduler.NewConcurrencyLimiter(cfg.Scheduler.MaxConcurrentGenerations)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	controlSvc := control.NewService(processes, logins, templates, providerConfigs)
	controlSvc.Discovery = discovery
	controlSvc.Posting = posting

	srv := api.NewServer(controlSvc, cfg.Scheduler.MaxProcessDurationCap)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting yourmoment server", "addr", addr, "tick_period", sched.TickPeriod)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
