// Package cluster groups embedded posts into K clusters and names each one
// with a language model.
//
// Reclustering is all-or-nothing: a run computes every assignment and title
// first and commits them together, so a failed run writes nothing.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/author31/tinysignal/internal/cache"
	"github.com/author31/tinysignal/internal/model"
	"github.com/author31/tinysignal/pkg/kmeans"
	"github.com/author31/tinysignal/pkg/llm"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultPostsPerCluster = 5
	displayCacheKey        = "clusters:display"
)

type Store interface {
	GetRecords(ctx context.Context) ([]model.EmbeddedRecord, error)
	HasClusters(ctx context.Context) (bool, error)
	GetClusters(ctx context.Context) ([]model.ClusterAssignment, error)
	GetClusterTitles(ctx context.Context) ([]model.ClusterTitle, error)
	// ReplaceClusters atomically swaps the stored assignments and titles. When
	// overwrite is false and clusters already exist it writes nothing and
	// reports false.
	ReplaceClusters(ctx context.Context, assignments []model.ClusterAssignment, titles []model.ClusterTitle, overwrite bool) (bool, error)
	GetPostsByCluster(ctx context.Context, clusterIdx int32, limit int) ([]model.Post, error)
}

type Config struct {
	// NumClusters is K. Zero means unset.
	NumClusters     int
	Seed            int64
	Model           string
	PostsPerCluster int
	CacheTTL        time.Duration
}

type Pipeline struct {
	store     Store
	generator llm.Generator
	cache     cache.Cache
	cfg       Config

	// mu serializes runs within the process and keeps readers off a run in
	// progress. Other processes are excluded by the store's transaction.
	mu    sync.RWMutex
	group singleflight.Group
}

// NewPipeline builds a pipeline. c may be nil to disable display caching.
func NewPipeline(store Store, generator llm.Generator, c cache.Cache, cfg Config) *Pipeline {
	if cfg.PostsPerCluster <= 0 {
		cfg.PostsPerCluster = DefaultPostsPerCluster
	}
	return &Pipeline{
		store:     store,
		generator: generator,
		cache:     c,
		cfg:       cfg,
	}
}

func (p *Pipeline) HasClusters(ctx context.Context) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store.HasClusters(ctx)
}

// EnsureClustered runs Execute when no clusters exist. Concurrent callers
// share a single run and all receive its result. The run is not cancelled
// when the caller that started it goes away.
func (p *Pipeline) EnsureClustered(ctx context.Context) error {
	ok, err := p.HasClusters(ctx)
	if err != nil {
		return fmt.Errorf("checking clusters: %w", err)
	}
	if ok {
		return nil
	}

	_, err, shared := p.group.Do("execute", func() (any, error) {
		return nil, p.Execute(context.WithoutCancel(ctx))
	})
	if shared {
		slog.Debug("joined in-flight clustering run")
	}
	return err
}

// Execute clusters every record and titles each cluster. It is a no-op when
// assignments already exist; use Recluster to replace them.
func (p *Pipeline) Execute(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.execute(ctx, false)
}

// Recluster computes a fresh clustering and swaps it in for the current one.
// On failure the current clusters and titles are kept.
func (p *Pipeline) Recluster(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.execute(ctx, true)
}

func (p *Pipeline) execute(ctx context.Context, overwrite bool) error {
	if !overwrite {
		exists, err := p.store.HasClusters(ctx)
		if err != nil {
			return fmt.Errorf("checking clusters: %w", err)
		}
		if exists {
			return nil
		}
	}

	if p.cfg.NumClusters <= 0 {
		return fmt.Errorf("%w: N_CLUSTERS is not set", ErrConfiguration)
	}

	records, err := p.store.GetRecords(ctx)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	if len(records) == 0 {
		return ErrInsufficientData
	}

	start := time.Now()
	assignments, titles, err := p.run(ctx, records)
	if err != nil {
		slog.Error("clustering run failed", "error", err)
		return err
	}

	committed, err := p.store.ReplaceClusters(ctx, assignments, titles, overwrite)
	if err != nil {
		return fmt.Errorf("saving clusters: %w", err)
	}
	if !committed {
		slog.Info("clusters were saved by another run, discarding this one")
		return nil
	}

	p.invalidate(ctx)
	slog.Info("clustering complete", "records", len(records), "clusters", p.cfg.NumClusters, "duration", time.Since(start))
	return nil
}

// run partitions records and titles every cluster without writing anything.
func (p *Pipeline) run(ctx context.Context, records []model.EmbeddedRecord) ([]model.ClusterAssignment, []model.ClusterTitle, error) {
	vectors := make([][]float32, len(records))
	for i, r := range records {
		vectors[i] = r.Embedding
	}

	res, err := kmeans.Fit(vectors, kmeans.Config{K: p.cfg.NumClusters, Seed: p.cfg.Seed})
	if errors.Is(err, kmeans.ErrTooFewPoints) || errors.Is(err, kmeans.ErrInvalidK) {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("partitioning: %w", err)
	}

	assignments := make([]model.ClusterAssignment, len(records))
	titlesByCluster := make(map[int32][]string)
	for i, r := range records {
		idx := int32(res.Labels[i])
		assignments[i] = model.ClusterAssignment{EmbeddingID: r.ID, ClusterIdx: idx}
		titlesByCluster[idx] = append(titlesByCluster[idx], r.Title)
	}

	slog.Info("generating cluster titles", "clusters", len(titlesByCluster))

	titles := make([]model.ClusterTitle, 0, len(titlesByCluster))
	for _, idx := range sortedKeys(titlesByCluster) {
		title, err := p.label(ctx, idx, titlesByCluster[idx])
		if err != nil {
			return nil, nil, err
		}
		slog.Info("generated cluster title", "cluster_idx", idx, "title", title)
		titles = append(titles, model.ClusterTitle{ClusterIdx: idx, Title: title})
	}

	return assignments, titles, nil
}

func (p *Pipeline) label(ctx context.Context, idx int32, titles []string) (string, error) {
	raw, err := p.generator.Generate(ctx, llm.LabelPrompt(titles), p.cfg.Model)
	if err != nil {
		return "", fmt.Errorf("%w: cluster %d: %w", ErrLabelGeneration, idx, err)
	}

	label, err := llm.NormalizeLabel(raw)
	if err != nil {
		return "", fmt.Errorf("%w: cluster %d: %w", ErrLabelGeneration, idx, err)
	}
	return label.Title, nil
}

func (p *Pipeline) invalidate(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Delete(ctx, displayCacheKey); err != nil {
		slog.Warn("error invalidating display cache", "error", err)
	}
}

func sortedKeys(m map[int32][]string) []int32 {
	keys := make([]int32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
