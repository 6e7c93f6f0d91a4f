// Package ingest turns queued Hacker News ids into embedded records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/author31/tinysignal/internal/model"
	"github.com/author31/tinysignal/pkg/hn"

	"github.com/redis/go-redis/v9"
)

const DefaultMaxRetries = 3

type ItemSource interface {
	Item(ctx context.Context, id int64) (*hn.Item, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type RecordStore interface {
	HasRecord(ctx context.Context, hnPostID int64) (bool, error)
	InsertRecord(ctx context.Context, record *model.EmbeddedRecord) (bool, error)
}

type Queue interface {
	Push(ctx context.Context, data string) error
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	IncrAttempts(ctx context.Context, data string) (int64, error)
	ResetAttempts(ctx context.Context, data string) error
	DeadLetter(ctx context.Context, data string) error
}

type Outcome int

const (
	Inserted Outcome = iota
	Duplicate
	Skipped
)

type Ingester struct {
	source     ItemSource
	embedder   Embedder
	store      RecordStore
	maxRetries int64
	now        func() time.Time
}

func NewIngester(source ItemSource, embedder Embedder, store RecordStore) *Ingester {
	return &Ingester{
		source:     source,
		embedder:   embedder,
		store:      store,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
}

// Process fetches one story, embeds its title and stores it. Stories already
// stored are not embedded again.
func (i *Ingester) Process(ctx context.Context, id int64) (Outcome, error) {
	exists, err := i.store.HasRecord(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("checking record: %w", err)
	}
	if exists {
		return Duplicate, nil
	}

	item, err := i.source.Item(ctx, id)
	if err != nil {
		return 0, err
	}
	if !item.IsLinkStory() {
		return Skipped, nil
	}

	vec, err := i.embedder.Embed(ctx, item.Title)
	if err != nil {
		return 0, fmt.Errorf("embedding %d: %w", id, err)
	}

	record := model.EmbeddedRecord{
		Title:        item.Title,
		URL:          item.URL,
		Embedding:    vec,
		SourcePostID: item.ID,
		CreatedAt:    i.now(),
	}

	inserted, err := i.store.InsertRecord(ctx, &record)
	if err != nil {
		return 0, fmt.Errorf("saving record: %w", err)
	}
	if !inserted {
		return Duplicate, nil
	}
	return Inserted, nil
}

type Stats struct {
	Inserted   int
	Duplicated int
	Skipped    int
	Failed     int
}

// Run drains the queue until it stays empty for idle. Failed ids are pushed
// back until they reach the retry limit, then moved to the dead letter list.
func (i *Ingester) Run(ctx context.Context, queue Queue, idle time.Duration) (Stats, error) {
	var stats Stats

	for {
		data, err := queue.Pop(ctx, idle)
		if errors.Is(err, redis.Nil) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("popping from queue: %w", err)
		}

		id, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			slog.Error("invalid hn id in queue", "id", data, "error", err)
			continue
		}

		outcome, err := i.Process(ctx, id)
		if err != nil {
			slog.Error("error ingesting story", "error", err, "hn_post_id", id)
			stats.Failed++
			i.retry(ctx, queue, data)
			continue
		}

		if err := queue.ResetAttempts(ctx, data); err != nil {
			slog.Warn("error resetting attempts", "error", err, "hn_post_id", id)
		}

		switch outcome {
		case Inserted:
			stats.Inserted++
			slog.Info("story embedded", "hn_post_id", id)
		case Duplicate:
			stats.Duplicated++
		case Skipped:
			stats.Skipped++
			slog.Info("story without title or url skipped", "hn_post_id", id)
		}
	}
}

func (i *Ingester) retry(ctx context.Context, queue Queue, data string) {
	attempts, err := queue.IncrAttempts(ctx, data)
	if err != nil {
		slog.Error("error counting attempts", "error", err, "hn_post_id", data)
		return
	}

	if attempts >= i.maxRetries {
		slog.Warn("story exceeded max retries, moving to dead letter", "hn_post_id", data, "attempts", attempts)
		if err := queue.DeadLetter(ctx, data); err != nil {
			slog.Error("error pushing to dead letter", "error", err, "hn_post_id", data)
		}
		return
	}

	if err := queue.Push(ctx, data); err != nil {
		slog.Error("error re-queueing story", "error", err, "hn_post_id", data)
	}
}
