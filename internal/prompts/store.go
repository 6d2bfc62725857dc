package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/storage/kv"
	"github.com/google/uuid"
)

// Observer is notified after every successful mutation.
type Observer interface {
	PromptMutation(op string)
}

// Store is the local prompt collection.
type Store struct {
	repo kv.Repository
	log  logging.Logger
	obs  Observer

	mu sync.Mutex

	now   func() time.Time
	newID func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithObserver registers o to be told about mutations.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.obs = o }
}

// WithClock replaces the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store persisting into repo.
func NewStore(repo kv.Repository, log logging.Logger, opts ...Option) *Store {
	s := &Store{
		repo:  repo,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetAll returns the whole collection, or an empty slice if nothing is
// stored yet.
func (s *Store) GetAll(ctx context.Context) ([]models.Prompt, error) {
	return s.load(ctx)
}

// SaveAll replaces the persisted collection with prompts.
func (s *Store) SaveAll(ctx context.Context, prompts []models.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, prompts); err != nil {
		return err
	}
	s.observe("save_all")
	return nil
}

// Add creates a prompt from d with a fresh id and timestamp, appends it and
// returns the stored record.
func (s *Store) Add(ctx context.Context, d models.Draft) (models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return models.Prompt{}, err
	}

	p := s.newPrompt(d)
	list = append(list, p)

	if err := s.save(ctx, list); err != nil {
		return models.Prompt{}, err
	}

	s.log.Debug(ctx, "prompt added", "id", p.ID)
	s.observe("add")
	return p, nil
}

// Update replaces the record with p.ID by p, stamping UpdatedAt. It
// reports false, without writing, when no such record exists.
func (s *Store) Update(ctx context.Context, p models.Prompt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOf(list, p.ID)
	if idx < 0 {
		return false, nil
	}

	p.UpdatedAt = s.stamp()
	list[idx] = p

	if err := s.save(ctx, list); err != nil {
		return false, err
	}

	s.log.Debug(ctx, "prompt updated", "id", p.ID)
	s.observe("update")
	return true, nil
}

// Delete removes the record with id if present and persists the result.
// It reports true whether or not the record existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	kept := list[:0]
	for _, p := range list {
		if p.ID != id {
			kept = append(kept, p)
		}
	}

	if err := s.save(ctx, kept); err != nil {
		return false, err
	}

	s.log.Debug(ctx, "prompt deleted", "id", id)
	s.observe("delete")
	return true, nil
}

// ToggleFavorite flips IsFavorite of the record with id and returns the new
// value. found is false, and nothing is written, when no such record exists.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (value bool, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return false, false, err
	}

	idx := indexOf(list, id)
	if idx < 0 {
		return false, false, nil
	}

	list[idx].IsFavorite = !list[idx].IsFavorite
	list[idx].UpdatedAt = s.stamp()

	if err := s.save(ctx, list); err != nil {
		return false, false, err
	}

	s.observe("toggle_favorite")
	return list[idx].IsFavorite, true, nil
}

// Find returns the record with id.
func (s *Store) Find(ctx context.Context, id string) (models.Prompt, bool, error) {
	list, err := s.load(ctx)
	if err != nil {
		return models.Prompt{}, false, err
	}
	if idx := indexOf(list, id); idx >= 0 {
		return list[idx], true, nil
	}
	return models.Prompt{}, false, nil
}

// Filter returns the prompts whose text contains searchText
// (case-insensitively) and which carry every tag in tags. An empty
// searchText or tags list matches everything.
func (s *Store) Filter(ctx context.Context, searchText string, tags []string) ([]models.Prompt, error) {
	list, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return Match(list, searchText, tags), nil
}

// Match is the pure form of Filter.
func Match(list []models.Prompt, searchText string, tags []string) []models.Prompt {
	needle := strings.ToLower(searchText)

	out := make([]models.Prompt, 0, len(list))
	for _, p := range list {
		if needle != "" && !strings.Contains(strings.ToLower(p.Text), needle) {
			continue
		}
		if !p.HasTags(tags) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Store) newPrompt(d models.Draft) models.Prompt {
	return models.Prompt{
		ID:         s.newID(),
		Text:       d.Text,
		Tags:       d.Tags,
		IsFavorite: d.IsFavorite,
		UpdatedAt:  s.stamp(),
	}
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

func (s *Store) observe(op string) {
	if s.obs != nil {
		s.obs.PromptMutation(op)
	}
}

// load reads and decodes the collection. An absent key yields an empty,
// non-nil slice.
func (s *Store) load(ctx context.Context) ([]models.Prompt, error) {
	raw, err := s.repo.Get(ctx, common.PromptsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if raw == nil {
		return []models.Prompt{}, nil
	}

	var list []models.Prompt
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", common.ErrStorageUnavailable, common.PromptsKey, err)
	}
	if list == nil {
		list = []models.Prompt{}
	}
	return list, nil
}

func (s *Store) save(ctx context.Context, list []models.Prompt) error {
	if list == nil {
		list = []models.Prompt{}
	}

	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", common.ErrStorageUnavailable, common.PromptsKey, err)
	}

	if err := s.repo.Set(ctx, common.PromptsKey, raw); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	return nil
}

func indexOf(list []models.Prompt, id string) int {
	for i, p := range list {
		if p.ID == id {
			return i
		}
	}
	return -1
}
