package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/jetprompt/internal/cloudsync"
	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/prompts"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies, imports included.
const maxBodyBytes = 8 << 20

// PromptStore is the part of prompts.Store the API serves.
type PromptStore interface {
	Filter(ctx context.Context, searchText string, tags []string) ([]models.Prompt, error)
	Add(ctx context.Context, d models.Draft) (models.Prompt, error)
	Update(ctx context.Context, p models.Prompt) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	ToggleFavorite(ctx context.Context, id string) (bool, bool, error)
	Find(ctx context.Context, id string) (models.Prompt, bool, error)
	Stats(ctx context.Context) (models.Stats, error)
	Export(ctx context.Context) (models.ExportEnvelope, error)
	Import(ctx context.Context, data []byte) (prompts.ImportResult, error)
}

// updateRequest carries the fields to change; omitted fields are kept.
type updateRequest struct {
	Text       *string  `json:"text"`
	Tags       []string `json:"tags"`
	IsFavorite *bool    `json:"isFavorite"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type mutationResponse struct {
	Success bool              `json:"success"`
	Prompt  *models.Prompt    `json:"prompt,omitempty"`
	Sync    *cloudsync.Result `json:"sync,omitempty"`
}

type favoriteResponse struct {
	Success    bool              `json:"success"`
	IsFavorite bool              `json:"isFavorite"`
	Sync       *cloudsync.Result `json:"sync,omitempty"`
}

type importResponse struct {
	Imported   int               `json:"imported"`
	Duplicates int               `json:"duplicates"`
	Invalid    int               `json:"invalid"`
	Sync       *cloudsync.Result `json:"sync,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.store.Filter(r.Context(), q.Get("q"), splitTags(q["tag"]))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if q.Get("favorites") == "true" {
		favs := list[:0:0]
		for _, p := range list {
			if p.IsFavorite {
				favs = append(favs, p)
			}
		}
		list = favs
	}
	s.writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) addPrompt(w http.ResponseWriter, r *http.Request) {
	var d models.Draft
	if !s.decode(w, r, &d) {
		return
	}
	if strings.TrimSpace(d.Text) == "" {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}

	p, err := s.store.Add(r.Context(), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, mutationResponse{Success: true, Prompt: &p, Sync: s.autoPush(r.Context())})
}

func (s *Server) updatePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text != nil && strings.TrimSpace(*req.Text) == "" {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "text must not be empty"})
		return
	}

	current, found, err := s.store.Find(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		s.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "prompt not found"})
		return
	}

	if req.Text != nil {
		current.Text = *req.Text
	}
	if req.Tags != nil {
		current.Tags = req.Tags
	}
	if req.IsFavorite != nil {
		current.IsFavorite = *req.IsFavorite
	}

	ok, err := s.store.Update(r.Context(), current)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "prompt not found"})
		return
	}

	updated, _, err := s.store.Find(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, mutationResponse{Success: true, Prompt: &updated, Sync: s.autoPush(r.Context())})
}

func (s *Server) deletePrompt(w http.ResponseWriter, r *http.Request) {
	ok, err := s.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, mutationResponse{Success: ok, Sync: s.autoPush(r.Context())})
}

func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	value, found, err := s.store.ToggleFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		s.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "prompt not found"})
		return
	}
	s.writeJSON(w, r, http.StatusOK, favoriteResponse{Success: true, IsFavorite: value, Sync: s.autoPush(r.Context())})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) exportPrompts(w http.ResponseWriter, r *http.Request) {
	env, err := s.store.Export(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="jetprompt-export.json"`)
	s.writeJSON(w, r, http.StatusOK, env)
}

func (s *Server) importPrompts(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.store.Import(r.Context(), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, importResponse{
		Imported:   res.Imported,
		Duplicates: res.Duplicates,
		Invalid:    res.Invalid,
		Sync:       s.autoPush(r.Context()),
	})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Get(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Get(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// decoding over the current value keeps omitted fields
	if !s.decode(w, r, &st) {
		return
	}
	if err := s.settings.Save(r.Context(), st); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.sync.Status(r.Context()))
}

// syncAction adapts a coordinator call. Sync failures are reported in the
// body with status 200, as the Result carries them.
func (s *Server) syncAction(fn func(context.Context) cloudsync.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusOK, fn(r.Context()))
	}
}

// autoPush pushes after a mutation when sync settings allow it.
func (s *Server) autoPush(ctx context.Context) *cloudsync.Result {
	res, pushed := s.sync.AutoPush(ctx)
	if !pushed {
		return nil
	}
	if !res.Success {
		s.log.Warn(ctx, "auto-push failed", "message", res.Message)
	}
	return &res
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, prompts.ErrNothingToExport):
		status = http.StatusNotFound
	case errors.Is(err, prompts.ErrInvalidImport),
		errors.Is(err, prompts.ErrNoValidPrompts):
		status = http.StatusBadRequest
	case errors.Is(err, prompts.ErrAllDuplicates):
		status = http.StatusConflict
	case errors.Is(err, common.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn(r.Context(), "failed to write response", "error", err)
	}
}

// splitTags accepts both ?tag=a&tag=b and ?tag=a,b.
func splitTags(raw []string) []string {
	var tags []string
	for _, v := range raw {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}
