package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/author31/tinysignal/internal/model"
	"github.com/author31/tinysignal/pkg/hn"

	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	items map[int64]*hn.Item
	err   error
}

func (f *fakeSource) Item(ctx context.Context, id int64) (*hn.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[id], nil
}

type fakeEmbedder struct {
	calls []string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeStore struct {
	records map[int64]model.EmbeddedRecord
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[int64]model.EmbeddedRecord{}}
}

func (f *fakeStore) HasRecord(ctx context.Context, hnPostID int64) (bool, error) {
	_, ok := f.records[hnPostID]
	return ok, nil
}

func (f *fakeStore) InsertRecord(ctx context.Context, record *model.EmbeddedRecord) (bool, error) {
	if _, ok := f.records[record.SourcePostID]; ok {
		return false, nil
	}
	f.nextID++
	record.ID = f.nextID
	f.records[record.SourcePostID] = *record
	return true, nil
}

type fakeQueue struct {
	items    []string
	attempts map[string]int64
	dead     []string
	resetErr error
}

func newFakeQueue(items ...string) *fakeQueue {
	return &fakeQueue{items: items, attempts: map[string]int64{}}
}

func (q *fakeQueue) Push(ctx context.Context, data string) error {
	q.items = append(q.items, data)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	if len(q.items) == 0 {
		return "", redis.Nil
	}
	data := q.items[0]
	q.items = q.items[1:]
	return data, nil
}

func (q *fakeQueue) IncrAttempts(ctx context.Context, data string) (int64, error) {
	q.attempts[data]++
	return q.attempts[data], nil
}

func (q *fakeQueue) ResetAttempts(ctx context.Context, data string) error {
	if q.resetErr != nil {
		return q.resetErr
	}
	delete(q.attempts, data)
	return nil
}

func (q *fakeQueue) DeadLetter(ctx context.Context, data string) error {
	q.dead = append(q.dead, data)
	return nil
}

func story(id int64, title string) *hn.Item {
	return &hn.Item{ID: id, Type: "story", Title: title, URL: "https://example.com/" + title}
}

func TestProcess_InsertsStory(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{}
	ing := NewIngester(&fakeSource{items: map[int64]*hn.Item{1: story(1, "rust")}}, emb, store)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	ing.now = func() time.Time { return now }

	outcome, err := ing.Process(context.Background(), 1)
	assert.Equal(t, nil, err)
	assert.Equal(t, Inserted, outcome)
	assert.Equal(t, []string{"rust"}, emb.calls)

	rec := store.records[1]
	assert.Equal(t, "rust", rec.Title)
	assert.Equal(t, "https://example.com/rust", rec.URL)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, 3, len(rec.Embedding))
}

func TestProcess_DuplicateSkipsEmbedding(t *testing.T) {
	store := newFakeStore()
	store.records[1] = model.EmbeddedRecord{ID: 9, SourcePostID: 1}
	emb := &fakeEmbedder{}
	ing := NewIngester(&fakeSource{items: map[int64]*hn.Item{1: story(1, "rust")}}, emb, store)

	outcome, err := ing.Process(context.Background(), 1)
	assert.Equal(t, nil, err)
	assert.Equal(t, Duplicate, outcome)
	assert.Equal(t, 0, len(emb.calls))
}

func TestProcess_SkipsItemsWithoutURL(t *testing.T) {
	ask := &hn.Item{ID: 2, Type: "story", Title: "Ask HN: what are you working on?"}
	ing := NewIngester(&fakeSource{items: map[int64]*hn.Item{2: ask}}, &fakeEmbedder{}, newFakeStore())

	outcome, err := ing.Process(context.Background(), 2)
	assert.Equal(t, nil, err)
	assert.Equal(t, Skipped, outcome)

	outcome, err = ing.Process(context.Background(), 404)
	assert.Equal(t, nil, err)
	assert.Equal(t, Skipped, outcome)
}

func TestRun_DrainsQueue(t *testing.T) {
	source := &fakeSource{items: map[int64]*hn.Item{
		1: story(1, "go"),
		2: story(2, "zig"),
		3: {ID: 3, Title: "Ask HN"},
	}}
	store := newFakeStore()
	queue := newFakeQueue("1", "2", "3", "1", "junk")

	stats, err := NewIngester(source, &fakeEmbedder{}, store).Run(context.Background(), queue, time.Millisecond)

	assert.Equal(t, nil, err)
	assert.Equal(t, Stats{Inserted: 2, Duplicated: 1, Skipped: 1}, stats)
	assert.Equal(t, 2, len(store.records))
}

func TestRun_RetriesThenDeadLetters(t *testing.T) {
	source := &fakeSource{items: map[int64]*hn.Item{1: story(1, "go")}}
	emb := &fakeEmbedder{err: errors.New("model loading")}
	queue := newFakeQueue("1")

	stats, err := NewIngester(source, emb, newFakeStore()).Run(context.Background(), queue, time.Millisecond)

	assert.Equal(t, nil, err)
	assert.Equal(t, DefaultMaxRetries, stats.Failed)
	assert.Equal(t, DefaultMaxRetries, len(emb.calls))
	assert.Equal(t, []string{"1"}, queue.dead)
}

func TestRun_ResetFailureDoesNotFailStory(t *testing.T) {
	source := &fakeSource{items: map[int64]*hn.Item{1: story(1, "go"), 2: story(2, "zig")}}
	store := newFakeStore()
	queue := newFakeQueue("1", "2")
	queue.resetErr = errors.New("connection reset")

	stats, err := NewIngester(source, &fakeEmbedder{}, store).Run(context.Background(), queue, time.Millisecond)

	assert.Equal(t, nil, err)
	assert.Equal(t, Stats{Inserted: 2}, stats)
	assert.Equal(t, 0, len(queue.dead))
	assert.Equal(t, 2, len(store.records))
}
