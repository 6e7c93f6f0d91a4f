package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/author31/tinysignal/db"
	"github.com/author31/tinysignal/internal/cache"
	"github.com/author31/tinysignal/internal/cluster"
	"github.com/author31/tinysignal/internal/config"
	"github.com/author31/tinysignal/internal/handler"
	"github.com/author31/tinysignal/internal/repository"
	"github.com/author31/tinysignal/pkg/llm"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	cfg.SetupLogger()

	ctx := context.Background()

	pg, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer pg.Close()

	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatalf("error applying schema: %v", err)
	}

	rdb, err := db.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer rdb.Close()

	generator, err := llm.NewGenerator(llm.ProviderConfig{
		Provider:        cfg.LLMProvider,
		OpenAIAPIKey:    cfg.OpenRouterAPIKey,
		OpenAIBaseURL:   cfg.LLMBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		log.Fatalf("error creating LLM client: %v", err)
	}

	repo := repository.NewClusterRepository(pg)
	pipeline := cluster.NewPipeline(repo, generator, cache.NewRedisCache(rdb, "tinysignal:"), cluster.Config{
		NumClusters: cfg.NumClusters,
		Seed:        cfg.ClusterSeed,
		Model:       cfg.LLMModel,
		CacheTTL:    cfg.CacheTTL,
	})
	clusterHandler := handler.NewClusterHandler(pipeline, repo)

	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}

	if cfg.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.FrontendURL)
	}

	slog.Info("AllowOrigins URL:", "urls", allowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	clusterHandler.Register(r)

	err = r.Run(fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
