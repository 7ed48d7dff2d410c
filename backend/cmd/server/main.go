package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atlas-of-us/backend/internal/adapter"
	"atlas-of-us/backend/internal/agent"
	"atlas-of-us/backend/internal/constants"
	"atlas-of-us/backend/internal/graph"
	"atlas-of-us/backend/internal/media"
	"atlas-of-us/backend/internal/metrics"
	"atlas-of-us/backend/internal/telemetry"
	"atlas-of-us/backend/pkg/config"
	"atlas-of-us/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "atlas-of-us"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Env,
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	}, log)
	if err != nil {
		log.Warn("Tracing unavailable", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	// Initialize Neo4j driver
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer driver.Close(context.Background())

	embedder, closeCache := buildEmbedder(ctx, cfg, log)
	defer closeCache()

	graphRepo := graph.NewRepository(driver, embedder)
	if err := graphRepo.EnsureSchema(ctx, constants.EmbeddingDimensions, "cosine"); err != nil {
		log.Warn("Failed to ensure graph schema, similarity search may fail", zap.Error(err))
	}

	policy, err := config.LoadSimilarityPolicy(cfg.SimilarityPolicyFile)
	if err != nil {
		log.Fatal("Failed to load similarity policy", zap.Error(err))
	}

	collector := metrics.NewCollector("atlas")

	deps := agent.Dependencies{
		LLM:     adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelID, cfg.LLMTimeout),
		Store:   graphRepo,
		Policy:  policy,
		Metrics: collector,
		Logger:  log,
	}

	// Avatars stay off unless both the image endpoint and bucket are configured
	if cfg.AvatarEnabled() {
		uploader, err := media.NewS3Uploader(ctx, cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			log.Warn("Failed to configure S3, avatars disabled", zap.Error(err))
		} else {
			deps.Avatars = media.NewAvatarService(media.NewImageClient(cfg.ImageGenEndpoint), uploader)
			log.Info("Domain avatars enabled", zap.String("bucket", cfg.S3Bucket))
		}
	}

	orchestrator := agent.NewOrchestrator(deps, agent.Options{
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
		RunTimeout:        cfg.RunTimeout,
	})

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(orchestrator, collector, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Server exited")
}

// buildEmbedder picks the embedding provider and puts the Redis cache in
// front of it when REDIS_URL is set
func buildEmbedder(ctx context.Context, cfg *config.Config, log *zap.Logger) (adapter.Embedder, func()) {
	var embedder adapter.Embedder
	switch cfg.EmbeddingProvider {
	case "openai":
		embedder = adapter.NewOpenAIEmbedder(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.LLMTimeout)
	default:
		embedder = adapter.NewHTTPEmbedder(cfg.EmbeddingEndpoint, 30*time.Second)
	}

	if cfg.RedisURL == "" {
		return embedder, func() {}
	}

	rdb, err := adapter.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		return embedder, func() {}
	}

	log.Info("Embedding cache enabled", zap.Duration("ttl", cfg.EmbeddingCacheTTL))
	return adapter.NewCachedEmbedder(embedder, rdb, cfg.EmbeddingModel, cfg.EmbeddingCacheTTL), func() {
		_ = rdb.Close()
	}
}
