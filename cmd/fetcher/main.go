package main

import (
	"context"
	"log"
	"log/slog"
	"strconv"

	"github.com/author31/tinysignal/db"
	"github.com/author31/tinysignal/internal/config"
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

	queue := db.NewQueue(rdb, db.IngestQueueKey)
	client := hn.NewClient(cfg.HNURL)

	ids, err := client.TopStories(ctx, cfg.HNTopLimit)
	if err != nil {
		log.Fatalf("error fetching top stories: %v", err)
	}

	var queued, errors int
	for _, id := range ids {
		err = queue.Push(ctx, strconv.FormatInt(id, 10))
		if err != nil {
			slog.Error("error pushing to Redis queue", "source", client.Name(), "error", err, "hn_post_id", id)
			errors++
			continue
		}
		queued++
	}

	slog.Info("fetch complete", "source", client.Name(), "queued", queued, "errors", errors)
}
