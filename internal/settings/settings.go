// Package settings persists the sync preferences under
// common.SettingsKey.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/storage/kv"
)

// Store reads and writes the settings record.
type Store struct {
	repo kv.Repository
	mu   sync.Mutex
}

func NewStore(repo kv.Repository) *Store {
	return &Store{repo: repo}
}

// Get returns the stored settings, or models.DefaultSettings when none are
// stored. Fields missing from the stored record keep their defaults.
func (s *Store) Get(ctx context.Context) (models.Settings, error) {
	raw, err := s.repo.Get(ctx, common.SettingsKey)
	if err != nil {
		return models.Settings{}, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	st := models.DefaultSettings()
	if raw == nil {
		return st, nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return models.Settings{}, fmt.Errorf("%w: decode %s: %w", common.ErrStorageUnavailable, common.SettingsKey, err)
	}
	return st, nil
}

// Save replaces the stored settings.
func (s *Store) Save(ctx context.Context, st models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, st)
}

// SetDriveSync updates EnableDriveSync and returns the resulting settings.
func (s *Store) SetDriveSync(ctx context.Context, enabled bool) (models.Settings, error) {
	return s.update(ctx, func(st *models.Settings) { st.EnableDriveSync = enabled })
}

// SetAutoSync updates AutoSync and returns the resulting settings.
func (s *Store) SetAutoSync(ctx context.Context, enabled bool) (models.Settings, error) {
	return s.update(ctx, func(st *models.Settings) { st.AutoSync = enabled })
}

func (s *Store) update(ctx context.Context, fn func(*models.Settings)) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.Get(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	fn(&st)
	if err := s.save(ctx, st); err != nil {
		return models.Settings{}, err
	}
	return st, nil
}

func (s *Store) save(ctx context.Context, st models.Settings) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", common.ErrStorageUnavailable, common.SettingsKey, err)
	}
	if err := s.repo.Set(ctx, common.SettingsKey, raw); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	return nil
}
