package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/storage/kv"
)

var (
	ErrNothingToExport = errors.New("no prompts to export")
	ErrInvalidImport   = errors.New("invalid import file format")
	ErrNoValidPrompts  = errors.New("no valid prompts found in import file")
	ErrAllDuplicates   = errors.New("all prompts from import file already exist")
)

// Stats summarizes the collection.
func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	list, err := s.load(ctx)
	if err != nil {
		return models.Stats{}, err
	}

	st := models.Stats{Total: len(list)}
	tags := make(map[string]struct{})
	for _, p := range list {
		if p.IsFavorite {
			st.Favorites++
		}
		for _, t := range p.Tags {
			tags[t] = struct{}{}
		}
	}
	st.UniqueTags = len(tags)
	return st, nil
}

// txRunner is implemented by repositories that can group writes.
type txRunner interface {
	Tx(ctx context.Context, fn func(ctx context.Context, repo kv.Repository) error) error
}

// Clear deletes every key of the local namespace, prompts and settings
// alike, in one transaction when the backend supports it.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if tx, ok := s.repo.(txRunner); ok {
		err = tx.Tx(ctx, func(ctx context.Context, repo kv.Repository) error {
			return repo.Clear(ctx)
		})
	} else {
		err = s.repo.Clear(ctx)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	s.log.Info(ctx, "local data cleared")
	s.observe("clear")
	return nil
}

// Export wraps the collection into an export envelope.
func (s *Store) Export(ctx context.Context) (models.ExportEnvelope, error) {
	list, err := s.load(ctx)
	if err != nil {
		return models.ExportEnvelope{}, err
	}
	if len(list) == 0 {
		return models.ExportEnvelope{}, ErrNothingToExport
	}

	return models.ExportEnvelope{
		Version:    models.ExportVersion,
		ExportDate: s.stamp(),
		Prompts:    list,
	}, nil
}

// ImportResult reports what Import did.
type ImportResult struct {
	Imported   int
	Duplicates int
	Invalid    int
}

// importEntry keeps raw fields so their JSON types can be checked.
type importEntry struct {
	Text       json.RawMessage `json:"text"`
	Tags       json.RawMessage `json:"tags"`
	IsFavorite json.RawMessage `json:"isFavorite"`
}

// Import adds the valid prompts of an export envelope whose text is not
// already present locally. An entry is valid when it has a non-empty text
// string, a tags array and a boolean isFavorite. Imported entries get
// fresh ids and timestamps.
func (s *Store) Import(ctx context.Context, data []byte) (ImportResult, error) {
	var env struct {
		Prompts json.RawMessage `json:"prompts"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}

	var entries []json.RawMessage
	if len(env.Prompts) == 0 || json.Unmarshal(env.Prompts, &entries) != nil || entries == nil {
		return ImportResult{}, ErrInvalidImport
	}

	var res ImportResult
	valid := make([]models.Draft, 0, len(entries))
	for _, raw := range entries {
		d, ok := decodeImportEntry(raw)
		if !ok {
			res.Invalid++
			continue
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return res, ErrNoValidPrompts
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return res, err
	}

	existing := make(map[string]struct{}, len(list))
	for _, p := range list {
		existing[p.Text] = struct{}{}
	}

	for _, d := range valid {
		if _, dup := existing[d.Text]; dup {
			res.Duplicates++
			continue
		}
		list = append(list, s.newPrompt(d))
		res.Imported++
	}
	if res.Imported == 0 {
		return res, ErrAllDuplicates
	}

	if err := s.save(ctx, list); err != nil {
		return ImportResult{}, err
	}

	s.log.Info(ctx, "prompts imported", "imported", res.Imported, "duplicates", res.Duplicates, "invalid", res.Invalid)
	s.observe("import")
	return res, nil
}

func decodeImportEntry(raw json.RawMessage) (models.Draft, bool) {
	var e importEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.Draft{}, false
	}

	var d models.Draft
	if json.Unmarshal(e.Text, &d.Text) != nil || d.Text == "" {
		return models.Draft{}, false
	}
	if json.Unmarshal(e.Tags, &d.Tags) != nil || d.Tags == nil {
		return models.Draft{}, false
	}
	if json.Unmarshal(e.IsFavorite, &d.IsFavorite) != nil || !isJSONBool(e.IsFavorite) {
		return models.Draft{}, false
	}
	return d, true
}

func isJSONBool(raw json.RawMessage) bool {
	s := string(raw)
	return s == "true" || s == "false"
}
