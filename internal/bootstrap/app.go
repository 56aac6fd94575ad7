package bootstrap

import (
	"context"
	"database/sql"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"

	"review-backend/internal/llm"
	"review-backend/internal/llm/anthropic"
	"review-backend/internal/llm/gemini"
	"review-backend/internal/llm/openai"
	"review-backend/internal/llm/stub"
	"review-backend/internal/reviews"
	"review-backend/internal/services/health"
	"review-backend/internal/shared/config"
	"review-backend/internal/shared/server"
	"review-backend/internal/shared/storage/db"
	"review-backend/internal/shared/storage/object"
	localstore "review-backend/internal/shared/storage/object/local"
	s3store "review-backend/internal/shared/storage/object/s3"
	"review-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config        config.Config
	Router        *gin.Engine
	DB            *sql.DB
	Store         object.ObjectStore
	History       reviews.HistoryStore
	Usage         *reviews.Collector
	LLM           llm.Client
	ReviewService *reviews.Service
	ReviewHandler *reviews.Handler
	Health        *health.Service
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if cfg.ReviewCacheSize <= 0 {
		cfg.ReviewCacheSize = 128
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:  app.Config,
		Reviews: app.ReviewHandler,
		Health:  app.Health,
	})

	return app, nil
}

// buildDB connects to Postgres when DATABASE_URL is set. The database is
// optional; without it history falls back to the file or memory store.
func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; falling back to file history: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; falling back to file history: %v", err)
			sqlDB.Close()
			return nil, nil
		}
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "local":
		return localstore.New(cfg.LocalStoreDir), nil
	default:
		return nil, nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	cfg := app.Config
	ctx := context.Background()

	var history reviews.HistoryStore
	switch {
	case app.DB != nil:
		history = &reviews.PGStore{DB: app.DB}
	case strings.TrimSpace(cfg.HistoryFile) != "":
		history = reviews.NewFileStore(cfg.HistoryFile)
	default:
		history = reviews.NewMemoryStore()
	}

	usage := reviews.NewCollector()

	cache, err := lru.New[string, reviews.ReviewResult](cfg.ReviewCacheSize)
	if err != nil {
		return err
	}

	llmClient := newProviderClient(ctx, cfg, cfg.LLMProvider, "")
	factory := func(ctx context.Context, provider, apiKey string) llm.Client {
		return newProviderClient(ctx, cfg, provider, apiKey)
	}

	svc := &reviews.Service{
		LLM:     llmClient,
		Factory: factory,
		History: history,
		Store:   app.Store,
		Usage:   usage,
		Cache:   cache,
		Synthesis: reviews.SynthesisConfig{
			InnovationWeight: cfg.InnovationWeight,
			EthicsWeight:     cfg.EthicsWeight,
			SecurityWeight:   cfg.SecurityWeight,
			VetoCap:          cfg.VetoCap,
		},
	}

	healthSvc := health.NewService()
	if app.DB != nil {
		healthSvc.Register("database", func(ctx context.Context) error {
			return app.DB.PingContext(ctx)
		})
	}
	healthSvc.Register("history", func(ctx context.Context) error {
		_, err := history.Latest(ctx, 1)
		return err
	})

	app.History = history
	app.Usage = usage
	app.LLM = llmClient
	app.ReviewService = svc
	app.ReviewHandler = reviews.NewHandler(svc, history, usage)
	app.Health = healthSvc

	return nil
}

// newProviderClient builds a retry-wrapped client for the named provider.
// Unknown providers and missing or invalid credentials degrade to the stub
// so a bad session override never takes down a request.
func newProviderClient(ctx context.Context, cfg config.Config, provider, apiKey string) llm.Client {
	retry := llm.RetryConfig{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		BackoffBase:  cfg.BackoffBase,
	}

	var (
		client llm.Client
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		if apiKey == "" {
			apiKey = cfg.OpenAIAPIKey
		}
		client, err = openai.NewClient(apiKey, cfg.OpenAIModel, cfg.LLMTimeout)
	case "anthropic":
		if apiKey == "" {
			apiKey = cfg.AnthropicAPIKey
		}
		client, err = anthropic.NewClient(apiKey, cfg.AnthropicModel, cfg.LLMTimeout)
	case "gemini":
		if apiKey == "" {
			apiKey = cfg.GeminiAPIKey
		}
		client, err = gemini.NewClient(ctx, apiKey, cfg.GeminiModel)
	default:
		return llm.WithRetry(stub.NewClient(), retry)
	}
	if err != nil {
		telemetry.Warn("llm.provider_unavailable", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})
		return llm.WithRetry(stub.NewClient(), retry)
	}
	return llm.WithRetry(client, retry)
}
