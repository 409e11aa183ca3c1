package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/credence-ai/credence/internal/api/handlers"
	mw "github.com/credence-ai/credence/internal/api/middleware"
	"github.com/credence-ai/credence/internal/buildconfig"
	"github.com/credence-ai/credence/internal/config"
	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/embedding"
	"github.com/credence-ai/credence/internal/oracle"
	"github.com/credence-ai/credence/internal/service"
	"github.com/credence-ai/credence/internal/similarity"
	"github.com/credence-ai/credence/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and request metrics for lifecycle management.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	factStore := store.NewFactStore(db)
	revisionLogStore := store.NewRevisionLogStore(db)

	// Conflict detection: slot matching always; the semantic strategy
	// follows EMBEDDING_PROVIDER. OpenAI embeddings search the pgvector
	// index; the hash embedder scores statement pairs in memory, so its
	// smaller vectors never touch the index. Token overlap is the fallback
	// when the provider cannot be built. Either way the strategy stays
	// dormant until SEMANTIC_MATCHING=true.
	detector := service.NewConflictDetector(factStore, logger)

	var embeddingClient domain.EmbeddingClient
	embeddingProvider := config.EmbeddingProvider()
	client, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	switch {
	case err != nil:
		logger.Warn("embedding client initialization failed, using token overlap",
			zap.String("provider", embeddingProvider), zap.Error(err))
		detector.SetScorer(similarity.NewTokenScorer())
	case embeddingProvider == embedding.ProviderOpenAI:
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
		embeddingClient = client
		detector.SetEmbeddingClient(client)
	default:
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
		detector.SetScorer(similarity.NewEmbeddingScorer(client))
	}

	// Services
	factSvc := service.NewFactService(factStore, embeddingClient, logger)
	revisionSvc := service.NewRevisionService(factStore, revisionLogStore, detector, logger)

	oracleProvider := config.OracleProvider()
	decisionOracle, err := oracle.NewOracle(oracleProvider, config.OracleAPIKey())
	if err != nil {
		logger.Warn("oracle initialization failed, revision endpoints disabled",
			zap.String("provider", oracleProvider), zap.Error(err))
	} else {
		logger.Info("oracle initialized", zap.String("provider", oracleProvider))
		semantic := config.SemanticMatching()
		revisionSvc.Configure(decisionOracle, &service.RevisionConfig{
			SemanticMatching:  &semantic,
			SemanticThreshold: config.SemanticThreshold(),
			ResolverTimeout:   config.ResolverTimeout(),
		})
	}

	// Handlers
	factHandler := handlers.NewFactHandler(factSvc)
	revisionHandler := handlers.NewRevisionHandler(revisionSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Route("/spaces/{space}", func(r chi.Router) {
			r.Route("/facts", func(r chi.Router) {
				r.Post("/", factHandler.Create)
				r.Get("/", factHandler.List)
				r.Get("/count", factHandler.Count)
				r.Get("/search", factHandler.Search)
				r.Get("/export", factHandler.Export)
				r.Get("/subject/{subject}", factHandler.BySubject)
				r.Delete("/", factHandler.InvalidateSpace)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", factHandler.GetByID)
					r.Patch("/", factHandler.Update)
					r.Get("/history", revisionHandler.History)
					r.Get("/chain", revisionHandler.Chain)
				})
			})

			r.Route("/revisions", func(r chi.Router) {
				r.Post("/check", revisionHandler.CheckConflicts)
				r.Post("/", revisionHandler.Revise)
				r.Post("/supersede", revisionHandler.Supersede)
				r.Post("/ingest", revisionHandler.Ingest)
			})
		})
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that do their own lifecycle.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.FactStore        = (*store.FactStore)(nil)
	_ domain.RevisionLogStore = (*store.RevisionLogStore)(nil)
	_ domain.EmbeddingClient  = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient  = (*embedding.HashEmbedder)(nil)
	_ domain.Oracle           = (*oracle.OpenAIOracle)(nil)
	_ domain.Oracle           = (*oracle.AnthropicOracle)(nil)
	_ domain.Oracle           = (*oracle.RulesOracle)(nil)
	_ domain.Oracle           = (*oracle.MockOracle)(nil)
	_ domain.SimilarityScorer = (*similarity.TokenScorer)(nil)
	_ domain.SimilarityScorer = (*similarity.EmbeddingScorer)(nil)
)
