package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/author31/tinysignal/db"
	"github.com/author31/tinysignal/internal/config"
	"github.com/author31/tinysignal/internal/ingest"
	"github.com/author31/tinysignal/internal/repository"
	"github.com/author31/tinysignal/pkg/embedding"
	"github.com/author31/tinysignal/pkg/hn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	cfg.SetupLogger()

	ctx := context.Background()

	rdb, err := db.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer rdb.Close()

	pg, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer pg.Close()

	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatalf("error applying schema: %v", err)
	}

	ingester := ingest.NewIngester(
		hn.NewClient(cfg.HNURL),
		embedding.NewHFClient(cfg.HFURL, cfg.HFAPIKey),
		repository.NewClusterRepository(pg),
	)

	queue := db.NewQueue(rdb, db.IngestQueueKey)
	if pending, err := queue.Len(ctx); err != nil {
		slog.Warn("error reading queue length", "error", err)
	} else {
		slog.Info("starting embedder", "pending", pending)
	}

	stats, err := ingester.Run(ctx, queue, 5*time.Second)
	if err != nil {
		slog.Error("embedder stopped", "error", err)
	}

	slog.Info("embed complete", "inserted", stats.Inserted, "duplicated", stats.Duplicated, "skipped", stats.Skipped, "failed", stats.Failed)
}
