package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/author31/tinysignal/internal/model"
	"github.com/author31/tinysignal/pkg/llm"
)

type fakeStore struct {
	mu          sync.Mutex
	records     []model.EmbeddedRecord
	assignments []model.ClusterAssignment
	titles      map[int32]string

	getRecordsCalls  int
	getClustersCalls int
	replaceCalls     int
	replaceErr       error
}

func newFakeStore(records []model.EmbeddedRecord) *fakeStore {
	return &fakeStore{records: records, titles: map[int32]string{}}
}

func (f *fakeStore) GetRecords(ctx context.Context) ([]model.EmbeddedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getRecordsCalls++
	return append([]model.EmbeddedRecord(nil), f.records...), nil
}

func (f *fakeStore) HasClusters(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assignments) > 0, nil
}

func (f *fakeStore) GetClusters(ctx context.Context) ([]model.ClusterAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getClustersCalls++
	return append([]model.ClusterAssignment(nil), f.assignments...), nil
}

func (f *fakeStore) GetClusterTitles(ctx context.Context) ([]model.ClusterTitle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []model.ClusterTitle
	for idx, t := range f.titles {
		titles = append(titles, model.ClusterTitle{ClusterIdx: idx, Title: t})
	}
	sort.Slice(titles, func(i, j int) bool { return titles[i].ClusterIdx < titles[j].ClusterIdx })
	return titles, nil
}

// ReplaceClusters applies the whole swap under the store lock, or nothing.
func (f *fakeStore) ReplaceClusters(ctx context.Context, assignments []model.ClusterAssignment, titles []model.ClusterTitle, overwrite bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls++
	if f.replaceErr != nil {
		return false, f.replaceErr
	}
	if !overwrite && len(f.assignments) > 0 {
		return false, nil
	}

	seen := map[int64]bool{}
	for _, a := range assignments {
		if seen[a.EmbeddingID] {
			return false, fmt.Errorf("duplicate assignment for embedding %d", a.EmbeddingID)
		}
		seen[a.EmbeddingID] = true
	}

	f.assignments = append([]model.ClusterAssignment(nil), assignments...)
	f.titles = map[int32]string{}
	for _, t := range titles {
		f.titles[t.ClusterIdx] = t.Title
	}
	return true, nil
}

// counts reads the table sizes under the store lock.
func (f *fakeStore) counts() (assignments, titles int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assignments), len(f.titles)
}

func (f *fakeStore) GetPostsByCluster(ctx context.Context, clusterIdx int32, limit int) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	members := map[int64]bool{}
	for _, a := range f.assignments {
		if a.ClusterIdx == clusterIdx {
			members[a.EmbeddingID] = true
		}
	}

	var posts []model.Post
	for _, r := range f.records {
		if len(posts) == limit {
			break
		}
		if members[r.ID] {
			posts = append(posts, model.Post{Title: r.Title, URL: r.URL, HNPostID: r.SourcePostID})
		}
	}
	return posts, nil
}

func (f *fakeStore) partition() map[int32][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	groups := map[int32][]int64{}
	for _, a := range f.assignments {
		groups[a.ClusterIdx] = append(groups[a.ClusterIdx], a.EmbeddingID)
	}
	return groups
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	models  []string
	delay   time.Duration
	respond func(call int, messages []llm.Message) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, messages []llm.Message, model string) (string, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.models = append(g.models, model)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	if g.respond != nil {
		return g.respond(call, messages)
	}
	return fmt.Sprintf("```json\n{\"title\": \"Topic %d\"}\n```", call), nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]model.ClusterDisplay
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]model.ClusterDisplay{}}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*dest.(*[]model.ClusterDisplay) = v
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value.([]model.ClusterDisplay)
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deletes++
	return nil
}

// blobRecords builds groups*perGroup records whose embeddings sit in groups
// tight, well separated blobs. Record ids are 1-based and grouped in order.
func blobRecords(groups, perGroup int) []model.EmbeddedRecord {
	var records []model.EmbeddedRecord
	id := int64(1)
	for g := 0; g < groups; g++ {
		for j := 0; j < perGroup; j++ {
			vec := make([]float32, groups+1)
			vec[g] = 10
			vec[groups] = 0.01 * float32(j)
			records = append(records, model.EmbeddedRecord{
				ID:           id,
				Title:        fmt.Sprintf("post %d-%d", g, j),
				URL:          fmt.Sprintf("https://example.com/%d", id),
				Embedding:    vec,
				SourcePostID: 1000 + id,
				CreatedAt:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			})
			id++
		}
	}
	return records
}
