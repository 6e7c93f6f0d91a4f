package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/author31/tinysignal/db"
	"github.com/author31/tinysignal/internal/cache"
	"github.com/author31/tinysignal/internal/cluster"
	"github.com/author31/tinysignal/internal/config"
	"github.com/author31/tinysignal/internal/repository"
	"github.com/author31/tinysignal/pkg/llm"
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

	var displayCache cache.Cache
	if cfg.RedisURL != "" {
		rdb, err := db.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("error connecting to Redis: %v", err)
		}
		defer rdb.Close()
		displayCache = cache.NewRedisCache(rdb, "tinysignal:")
	}

	generator, err := llm.NewGenerator(llm.ProviderConfig{
		Provider:        cfg.LLMProvider,
		OpenAIAPIKey:    cfg.OpenRouterAPIKey,
		OpenAIBaseURL:   cfg.LLMBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		log.Fatalf("error creating LLM client: %v", err)
	}

	pipeline := cluster.NewPipeline(repository.NewClusterRepository(pg), generator, displayCache, cluster.Config{
		NumClusters: cfg.NumClusters,
		Seed:        cfg.ClusterSeed,
		Model:       cfg.LLMModel,
		CacheTTL:    cfg.CacheTTL,
	})

	if cfg.Recluster {
		slog.Info("reclustering from scratch", "clusters", cfg.NumClusters)
		err = pipeline.Recluster(ctx)
	} else {
		err = pipeline.EnsureClustered(ctx)
	}
	if err != nil {
		log.Fatalf("error clustering: %v", err)
	}

	slog.Info("clusters ready")
}
