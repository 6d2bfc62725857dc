package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/dmitrijs2005/jetprompt/internal/cloudsync"
	"github.com/dmitrijs2005/jetprompt/internal/filex"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/prompts"
)

// ErrNotConfirmed is returned when a destructive command is not confirmed.
var ErrNotConfirmed = errors.New("operation not confirmed")

// previewWidth bounds the text column of list output.
const previewWidth = 60

func (a *App) syncEnabled(ctx context.Context) bool {
	st, err := a.settings.Get(ctx)
	return err == nil && st.EnableDriveSync
}

func (a *App) getStatus() string {
	if a.syncEnabled(context.Background()) {
		return "(sync on)"
	}
	return ""
}

// afterMutation pushes when auto-sync applies and reports the outcome.
func (a *App) afterMutation(ctx context.Context) {
	if r, pushed := a.sync.AutoPush(ctx); pushed {
		fmt.Fprintln(a.out, r.Message)
	}
}

func (a *App) addPrompt(ctx context.Context, text string, tags []string, favorite bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("prompt text is empty")
	}
	if tags == nil {
		tags = []string{}
	}

	p, err := a.store.Add(ctx, models.Draft{Text: text, Tags: tags, IsFavorite: favorite})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added prompt %s\n", p.ID)
	a.afterMutation(ctx)
	return nil
}

func (a *App) listPrompts(ctx context.Context, query string, tags []string, favoritesOnly bool) error {
	list, err := a.store.Filter(ctx, query, tags)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFAV\tTAGS\tTEXT")
	n := 0
	for _, p := range list {
		if favoritesOnly && !p.IsFavorite {
			continue
		}
		fav := ""
		if p.IsFavorite {
			fav = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, fav, strings.Join(p.Tags, ","), preview(p.Text))
		n++
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d prompt(s)\n", n)
	return nil
}

func (a *App) showPrompt(ctx context.Context, id string) error {
	p, found, err := a.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("prompt %s not found", id)
	}

	fmt.Fprintf(a.out, "ID:       %s\n", p.ID)
	fmt.Fprintf(a.out, "Tags:     %s\n", strings.Join(p.Tags, ", "))
	fmt.Fprintf(a.out, "Favorite: %t\n", p.IsFavorite)
	fmt.Fprintf(a.out, "Updated:  %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(a.out, p.Text)
	return nil
}

// editPrompt changes the text and, when tags is non-nil, the tags.
func (a *App) editPrompt(ctx context.Context, id, text string, tags []string) error {
	p, found, err := a.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("prompt %s not found", id)
	}

	if text = strings.TrimSpace(text); text != "" {
		p.Text = text
	}
	if tags != nil {
		p.Tags = tags
	}

	ok, err := a.store.Update(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("prompt %s not found", id)
	}
	fmt.Fprintf(a.out, "Updated prompt %s\n", id)
	a.afterMutation(ctx)
	return nil
}

func (a *App) deletePrompt(ctx context.Context, id string) error {
	if _, err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted prompt %s\n", id)
	a.afterMutation(ctx)
	return nil
}

func (a *App) toggleFavorite(ctx context.Context, id string) error {
	value, found, err := a.store.ToggleFavorite(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("prompt %s not found", id)
	}
	if value {
		fmt.Fprintf(a.out, "Prompt %s added to favorites\n", id)
	} else {
		fmt.Fprintf(a.out, "Prompt %s removed from favorites\n", id)
	}
	a.afterMutation(ctx)
	return nil
}

func (a *App) showStats(ctx context.Context) error {
	st, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Total prompts: %d\nFavorites:     %d\nUnique tags:   %d\n", st.Total, st.Favorites, st.UniqueTags)
	return nil
}

// ErrSyncFailed marks a sync action whose Result was unsuccessful. The
// Result message has already been printed.
var ErrSyncFailed = errors.New("sync failed")

// runSync performs one of pull, push, now, enable or status.
func (a *App) runSync(ctx context.Context, action string) error {
	var fn func(context.Context) cloudsync.Result
	switch action {
	case "pull":
		fn = a.sync.SyncFromRemote
	case "push":
		fn = a.sync.SyncToRemote
	case "now":
		fn = a.sync.SyncNow
	case "enable":
		fn = a.sync.Enable
	case "status":
		st := a.sync.Status(ctx)
		fmt.Fprintf(a.out, "Sync enabled: %t\nAuto-sync:    %t\nConnected:    %t\n%s\n", st.Enabled, st.AutoSync, st.Connected, st.Message)
		return nil
	default:
		return fmt.Errorf("unknown sync action %q (want pull, push, now, enable or status)", action)
	}

	r := fn(ctx)
	fmt.Fprintln(a.out, r.Message)
	if !r.Success {
		return ErrSyncFailed
	}
	return nil
}

func (a *App) disconnect(ctx context.Context) error {
	r := a.sync.Disconnect(ctx)
	fmt.Fprintln(a.out, r.Message)
	if !r.Success {
		return ErrSyncFailed
	}
	return nil
}

func (a *App) exportTo(ctx context.Context, path string) error {
	env, err := a.store.Export(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if path == "" || path == "-" {
		_, err = fmt.Fprintln(a.out, string(data))
		return err
	}

	if path, err = filex.ExpandHome(path); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d prompt(s) to %s\n", len(env.Prompts), path)
	return nil
}

func (a *App) importFrom(ctx context.Context, path string) error {
	path, err := filex.ExpandHome(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	res, err := a.store.Import(ctx, data)
	if err != nil {
		if errors.Is(err, prompts.ErrAllDuplicates) {
			fmt.Fprintf(a.out, "All %d prompt(s) already exist\n", res.Duplicates)
		}
		return err
	}

	fmt.Fprintf(a.out, "Imported %d prompt(s)", res.Imported)
	if res.Duplicates > 0 {
		fmt.Fprintf(a.out, ", skipped %d duplicate(s)", res.Duplicates)
	}
	if res.Invalid > 0 {
		fmt.Fprintf(a.out, ", ignored %d invalid entr(ies)", res.Invalid)
	}
	fmt.Fprintln(a.out)
	a.afterMutation(ctx)
	return nil
}

func (a *App) clearAll(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All local data cleared")
	return nil
}

func (a *App) showSettings(ctx context.Context) error {
	st, err := a.settings.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Remote sync: %s\nAuto-sync:   %s\nBackend:     %s\nData dir:    %s\n",
		onOff(st.EnableDriveSync), onOff(st.AutoSync), a.cfg.Remote, a.cfg.DataDir)
	return nil
}

func (a *App) setAutoSync(ctx context.Context, value string) error {
	on, err := parseOnOff(value)
	if err != nil {
		return err
	}
	if _, err := a.settings.SetAutoSync(ctx, on); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Auto-sync %s\n", onOff(on))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// preview returns the first line of text cut to previewWidth runes.
func preview(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + " ..."
	}
	if utf8.RuneCountInString(text) <= previewWidth {
		return text
	}
	r := []rune(text)
	return string(r[:previewWidth-3]) + "..."
}

// parseTags splits a comma separated tag list, dropping blanks.
func parseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
