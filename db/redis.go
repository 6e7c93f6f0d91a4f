package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	IngestQueueKey   = "tinysignal:queue:ingest"
	DeadLetterKey    = "tinysignal:queue:failed"
	attemptKeyPrefix = "tinysignal:attempts:"
)

func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("REDIS_URL is not set")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Queue is a redis list used as a FIFO between the fetcher and the embedder.
type Queue struct {
	rdb *redis.Client
	key string
}

func NewQueue(rdb *redis.Client, key string) *Queue {
	return &Queue{rdb: rdb, key: key}
}

func (q *Queue) Push(ctx context.Context, data string) error {
	return q.rdb.LPush(ctx, q.key, data).Err()
}

// Pop blocks for up to timeout. It returns redis.Nil when the queue stayed empty.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		return "", err
	}
	return result[1], nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

func (q *Queue) DeadLetter(ctx context.Context, data string) error {
	return q.rdb.LPush(ctx, DeadLetterKey, data).Err()
}

// IncrAttempts bumps the failure counter for an item and returns the new value.
func (q *Queue) IncrAttempts(ctx context.Context, data string) (int64, error) {
	key := attemptKeyPrefix + data
	n, err := q.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if err := q.rdb.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
		slog.Warn("error setting attempt counter expiry", "key", key, "error", err)
	}
	return n, nil
}

func (q *Queue) ResetAttempts(ctx context.Context, data string) error {
	return q.rdb.Del(ctx, attemptKeyPrefix+data).Err()
}
