package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/author31/tinysignal/internal/model"
)

// DisplayData returns every cluster in ascending index order with its title
// and a few sample posts, clustering first if nothing has been clustered yet.
func (p *Pipeline) DisplayData(ctx context.Context) ([]model.ClusterDisplay, error) {
	if p.cache != nil {
		var cached []model.ClusterDisplay
		ok, err := p.cache.Get(ctx, displayCacheKey, &cached)
		if err != nil {
			slog.Warn("error reading display cache", "error", err)
		}
		if ok {
			return cached, nil
		}
	}

	if err := p.EnsureClustered(ctx); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	assignments, err := p.store.GetClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading clusters: %w", err)
	}

	rows, err := p.store.GetClusterTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cluster titles: %w", err)
	}

	titles := make(map[int32]string, len(rows))
	for _, t := range rows {
		titles[t.ClusterIdx] = t.Title
	}

	sizes := make(map[int32]int)
	for _, a := range assignments {
		sizes[a.ClusterIdx]++
	}

	idxs := make([]int32, 0, len(sizes))
	for idx := range sizes {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	data := make([]model.ClusterDisplay, 0, len(idxs))
	for _, idx := range idxs {
		title, ok := titles[idx]
		if !ok {
			title = fmt.Sprintf("Cluster %d", idx)
		}

		posts, err := p.store.GetPostsByCluster(ctx, idx, p.cfg.PostsPerCluster)
		if err != nil {
			return nil, fmt.Errorf("loading posts for cluster %d: %w", idx, err)
		}

		data = append(data, model.ClusterDisplay{
			ClusterIdx: idx,
			Title:      title,
			Size:       sizes[idx],
			Posts:      posts,
		})
	}

	if p.cache != nil && len(data) > 0 {
		if err := p.cache.Set(ctx, displayCacheKey, data, p.cfg.CacheTTL); err != nil {
			slog.Warn("error writing display cache", "error", err)
		}
	}

	return data, nil
}

// ClusterPosts lists up to limit posts of one cluster.
func (p *Pipeline) ClusterPosts(ctx context.Context, clusterIdx int32, limit int) ([]model.Post, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store.GetPostsByCluster(ctx, clusterIdx, limit)
}
