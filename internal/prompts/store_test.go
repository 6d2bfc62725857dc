package prompts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/storage/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns base, base+1s, base+2s, ...
func stepClock(base time.Time) func() time.Time {
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := base.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *kv.Store) {
	t.Helper()
	repo, err := kv.Open(context.Background(), kv.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	opts = append([]Option{WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))}, opts...)
	return NewStore(repo, logging.Nop(), opts...), repo
}

type failingRepo struct {
	getErr error
	setErr error
	value  []byte
}

func (f *failingRepo) Get(context.Context, string) ([]byte, error) { return f.value, f.getErr }
func (f *failingRepo) Set(context.Context, string, []byte) error   { return f.setErr }
func (f *failingRepo) Delete(context.Context, string) error        { return f.setErr }
func (f *failingRepo) List(context.Context) (map[string][]byte, error) {
	return nil, f.getErr
}
func (f *failingRepo) Clear(context.Context) error { return f.setErr }

type countingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (c *countingObserver) PromptMutation(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, op)
}

func TestGetAll_EmptyWhenNothingStored(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.GetAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAdd_ThenGetAllContainsExactlyOne(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	before := time.Now()
	s.now = time.Now

	d := models.Draft{Text: "Summarize this", Tags: []string{"work", "ai"}, IsFavorite: true}
	added, err := s.Add(ctx, d)
	require.NoError(t, err)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, added.ID, got.ID)
	assert.Equal(t, d.Text, got.Text)
	assert.Equal(t, d.Tags, got.Tags)
	assert.True(t, got.IsFavorite)
	assert.False(t, got.UpdatedAt.Before(before.Truncate(time.Second)))
	assert.False(t, got.UpdatedAt.After(time.Now()))
}

func TestAdd_IdsAreUnique(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		p, err := s.Add(ctx, models.Draft{Text: "p"})
		require.NoError(t, err)
		require.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestAdd_ConcurrentCallsAreNotLost(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(ctx, models.Draft{Text: "concurrent"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestUpdate_ChangesTextAndAdvancesUpdatedAt(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Add(ctx, models.Draft{Text: "old", Tags: []string{"x"}})
	require.NoError(t, err)

	edited := p
	edited.Text = "new"
	ok, err := s.Update(ctx, edited)
	require.NoError(t, err)
	require.True(t, ok)

	got, found, err := s.Find(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "new", got.Text)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt))
}

func TestUpdate_UnknownIDReturnsFalseWithoutWrite(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, models.Draft{Text: "a"})
	require.NoError(t, err)
	before, err := repo.Get(ctx, common.PromptsKey)
	require.NoError(t, err)

	ok, err := s.Update(ctx, models.Prompt{ID: "missing", Text: "b"})
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := repo.Get(ctx, common.PromptsKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDelete_RemovesRecord(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Add(ctx, models.Draft{Text: "a"})
	require.NoError(t, err)
	b, err := s.Add(ctx, models.Draft{Text: "b"})
	require.NoError(t, err)

	ok, err := s.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}

func TestDelete_MissingIDReturnsTrueAndLeavesCollection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, models.Draft{Text: "a"})
	require.NoError(t, err)
	before, err := s.GetAll(ctx)
	require.NoError(t, err)

	ok, err := s.Delete(ctx, "nope")
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestToggleFavorite_TwiceRestores(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Add(ctx, models.Draft{Text: "a"})
	require.NoError(t, err)

	v, found, err := s.ToggleFavorite(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, v)

	v, found, err = s.ToggleFavorite(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, v)

	got, _, err := s.Find(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsFavorite)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt))
}

func TestToggleFavorite_MissingID(t *testing.T) {
	s, _ := newTestStore(t)

	v, found, err := s.ToggleFavorite(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, v)
}

func TestFilter(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, d := range []models.Draft{
		{Text: "Write a Go test", Tags: []string{"go", "test"}},
		{Text: "Explain GOROUTINES", Tags: []string{"go"}},
		{Text: "Polish this email", Tags: []string{"work"}},
		{Text: "No tags here"},
	} {
		_, err := s.Add(ctx, d)
		require.NoError(t, err)
	}

	all, err := s.GetAll(ctx)
	require.NoError(t, err)

	tests := []struct {
		name  string
		q     string
		tags  []string
		texts []string
	}{
		{name: "vacuous", texts: []string{"Write a Go test", "Explain GOROUTINES", "Polish this email", "No tags here"}},
		{name: "case-insensitive text", q: "go", texts: []string{"Write a Go test", "Explain GOROUTINES"}},
		{name: "tag superset", tags: []string{"go", "test"}, texts: []string{"Write a Go test"}},
		{name: "text and tags", q: "explain", tags: []string{"go"}, texts: []string{"Explain GOROUTINES"}},
		{name: "no match", q: "zzz", texts: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Filter(ctx, tt.q, tt.tags)
			require.NoError(t, err)

			texts := make([]string, 0, len(got))
			for _, p := range got {
				texts = append(texts, p.Text)
				assert.Contains(t, all, p, "filter result must be a subset of GetAll")
			}
			assert.Equal(t, tt.texts, texts)
		})
	}
}

func TestSaveAll_ReplacesAndIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, models.Draft{Text: "local"})
	require.NoError(t, err)

	remote := []models.Prompt{
		{ID: "r1", Text: "remote", Tags: []string{}, UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, s.SaveAll(ctx, remote))
	require.NoError(t, s.SaveAll(ctx, remote))

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, remote, got)
}

func TestStore_ObserverSeesMutations(t *testing.T) {
	obs := &countingObserver{}
	s, _ := newTestStore(t, WithObserver(obs))
	ctx := context.Background()

	p, err := s.Add(ctx, models.Draft{Text: "a"})
	require.NoError(t, err)
	_, _, err = s.ToggleFavorite(ctx, p.ID)
	require.NoError(t, err)
	_, err = s.Delete(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"add", "toggle_favorite", "delete"}, obs.ops)
}

func TestStore_BackendFailuresAreStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk gone")

	t.Run("read", func(t *testing.T) {
		s := NewStore(&failingRepo{getErr: boom}, logging.Nop())
		_, err := s.GetAll(ctx)
		require.ErrorIs(t, err, common.ErrStorageUnavailable)
		require.ErrorIs(t, err, boom)

		_, err = s.Add(ctx, models.Draft{Text: "a"})
		require.ErrorIs(t, err, common.ErrStorageUnavailable)
	})

	t.Run("write", func(t *testing.T) {
		s := NewStore(&failingRepo{setErr: boom}, logging.Nop())
		_, err := s.Add(ctx, models.Draft{Text: "a"})
		require.ErrorIs(t, err, common.ErrStorageUnavailable)

		_, err = s.Delete(ctx, "x")
		require.ErrorIs(t, err, common.ErrStorageUnavailable)
	})

	t.Run("undecodable value", func(t *testing.T) {
		s := NewStore(&failingRepo{value: []byte(`{"not":"an array"}`)}, logging.Nop())
		_, err := s.GetAll(ctx)
		require.ErrorIs(t, err, common.ErrStorageUnavailable)
	})
}

func TestMatch_EmptyInput(t *testing.T) {
	got := Match(nil, "", nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}
