package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/credentials"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/remote"
	"golang.org/x/sync/singleflight"
)

// Result is the outcome of a sync action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// User-facing messages.
const (
	MsgInitialSync   = "Initial sync to remote complete."
	MsgNothingToSync = "No prompts to sync yet."
	MsgPulled        = "Synced from remote."
	MsgUpToDate      = "Local version is up to date."
	MsgPushed        = "Synced to remote."
	MsgSyncNowOK     = "Sync completed successfully."
	MsgSyncDisabled  = "Remote sync is disabled."
	MsgDisconnected  = "Disconnected from remote storage."
	MsgEnabled       = "Remote sync enabled successfully!"
)

// ErrNoRemote is reported when no remote backend is configured.
var ErrNoRemote = errors.New("no remote backend configured")

// PromptStore is the part of prompts.Store the coordinator needs.
type PromptStore interface {
	GetAll(ctx context.Context) ([]models.Prompt, error)
	SaveAll(ctx context.Context, prompts []models.Prompt) error
}

// SettingsStore is the part of settings.Store the coordinator needs.
type SettingsStore interface {
	Get(ctx context.Context) (models.Settings, error)
	SetDriveSync(ctx context.Context, enabled bool) (models.Settings, error)
}

// Recorder receives the outcome of every sync action.
type Recorder interface {
	SyncFinished(action string, success bool, elapsed time.Duration)
}

// Coordinator drives pull and push between a PromptStore and a remote
// FileClient.
type Coordinator struct {
	store    PromptStore
	client   remote.FileClient
	settings SettingsStore
	creds    credentials.Provider
	log      logging.Logger
	rec      Recorder

	// pull and sync-now callers share one in-flight run
	group singleflight.Group
	// pushes run one at a time, each reading the collection afresh
	pushSem chan struct{}
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRecorder reports sync outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.rec = r }
}

// New builds a Coordinator. client may be nil when no remote backend is
// configured; creds may be nil when the backend needs no token.
func New(store PromptStore, client remote.FileClient, settings SettingsStore, creds credentials.Provider, log logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		client:   client,
		settings: settings,
		creds:    creds,
		log:      log.With("component", "cloudsync"),
		pushSem:  make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SyncFromRemote pulls the remote collection if it is newer than the local
// one, or seeds the remote file when it does not exist yet.
func (c *Coordinator) SyncFromRemote(ctx context.Context) Result {
	return c.run(ctx, "pull", c.shared, c.pull)
}

// SyncToRemote overwrites the remote file with the local collection.
// Concurrent pushes are serialized, never merged, so every caller's
// changes reach the remote.
func (c *Coordinator) SyncToRemote(ctx context.Context) Result {
	return c.run(ctx, "push", c.serial, c.push)
}

// SyncNow pulls and then pushes. It succeeds only if both steps do; the
// message of the first failing step is reported otherwise.
func (c *Coordinator) SyncNow(ctx context.Context) Result {
	return c.run(ctx, "now", c.shared, func(ctx context.Context) Result {
		st, err := c.settings.Get(ctx)
		if err != nil {
			return Result{Success: false, Message: fmt.Sprintf("Sync failed: %v.", err)}
		}
		if !st.EnableDriveSync {
			return Result{Success: false, Message: MsgSyncDisabled}
		}

		if r := c.SyncFromRemote(ctx); !r.Success {
			return r
		}
		if r := c.SyncToRemote(ctx); !r.Success {
			return r
		}
		return Result{Success: true, Message: MsgSyncNowOK}
	})
}

// AutoPush pushes when both remote sync and auto-sync are enabled. The
// boolean is false when the push was skipped.
func (c *Coordinator) AutoPush(ctx context.Context) (Result, bool) {
	st, err := c.settings.Get(ctx)
	if err != nil {
		c.log.Warn(ctx, "auto-push skipped: settings unavailable", "error", err)
		return Result{}, false
	}
	if !st.EnableDriveSync || !st.AutoSync {
		return Result{}, false
	}
	return c.SyncToRemote(ctx), true
}

// Enable turns remote sync on and performs a first pull. When that pull
// fails, sync is turned back off.
func (c *Coordinator) Enable(ctx context.Context) Result {
	if _, err := c.settings.SetDriveSync(ctx, true); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Failed to enable remote sync: %v.", err)}
	}

	r := c.SyncFromRemote(ctx)
	if r.Success {
		return Result{Success: true, Message: MsgEnabled}
	}

	if _, err := c.settings.SetDriveSync(ctx, false); err != nil {
		c.log.Error(ctx, "failed to roll back remote sync setting", "error", err)
	}
	return r
}

// Disconnect revokes the cached credential and turns remote sync off.
// Local prompts are kept.
func (c *Coordinator) Disconnect(ctx context.Context) Result {
	if c.creds != nil {
		if err := c.creds.Revoke(ctx); err != nil {
			c.log.Warn(ctx, "credential revoke failed", "error", err)
		}
	}

	if _, err := c.settings.SetDriveSync(ctx, false); err != nil {
		c.log.Error(ctx, "disconnect failed", "error", err)
		return Result{Success: false, Message: fmt.Sprintf("Disconnect failed: %v.", err)}
	}

	c.log.Info(ctx, "remote sync disconnected")
	return Result{Success: true, Message: MsgDisconnected}
}

// Status describes the remote sync state for display.
type Status struct {
	Enabled   bool   `json:"enabled"`
	AutoSync  bool   `json:"autoSync"`
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

// Status reports whether sync is enabled and a token is available without
// asking the user.
func (c *Coordinator) Status(ctx context.Context) Status {
	st, err := c.settings.Get(ctx)
	if err != nil {
		return Status{Message: fmt.Sprintf("Settings unavailable: %v.", err)}
	}

	s := Status{Enabled: st.EnableDriveSync, AutoSync: st.AutoSync}
	switch {
	case !st.EnableDriveSync:
		s.Message = MsgSyncDisabled
	case c.client == nil:
		s.Message = "No remote backend configured."
	case c.creds == nil:
		s.Connected = true
	default:
		_, err := c.creds.Token(ctx, false)
		s.Connected = err == nil
	}
	if s.Message == "" {
		if s.Connected {
			s.Message = "Connected to remote storage. Sync is active."
		} else {
			s.Message = "Not connected to remote storage."
		}
	}
	return s
}

func (c *Coordinator) pull(ctx context.Context) Result {
	msg, err := c.reconcile(ctx)
	if err != nil {
		c.log.Error(ctx, "pull failed", "error", err)
		return Result{Success: false, Message: fmt.Sprintf("Remote sync failed: %v. Using local version.", err)}
	}
	return Result{Success: true, Message: msg}
}

// reconcile performs the pull decision and returns the success message.
func (c *Coordinator) reconcile(ctx context.Context) (string, error) {
	if c.client == nil {
		return "", ErrNoRemote
	}

	desc, err := c.client.LocateFile(ctx)
	if err != nil {
		return "", err
	}

	local, err := c.store.GetAll(ctx)
	if err != nil {
		return "", err
	}

	if desc == nil {
		if len(local) == 0 {
			return MsgNothingToSync, nil
		}
		if err := c.client.WriteFile(ctx, local); err != nil {
			return "", err
		}
		c.log.Info(ctx, "seeded remote file", "count", len(local))
		return MsgInitialSync, nil
	}

	remotePrompts, err := c.client.ReadFile(ctx, desc.FileID)
	if err != nil {
		return "", err
	}

	localFreshness := models.LatestUpdate(local)
	if !desc.ModifiedTime.After(localFreshness) {
		c.log.Debug(ctx, "local collection is current", "remote", desc.ModifiedTime, "local", localFreshness)
		return MsgUpToDate, nil
	}

	if err := c.store.SaveAll(ctx, remotePrompts); err != nil {
		return "", err
	}
	c.log.Info(ctx, "pulled remote prompts", "count", len(remotePrompts))
	return MsgPulled, nil
}

func (c *Coordinator) push(ctx context.Context) Result {
	if c.client == nil {
		return Result{Success: false, Message: fmt.Sprintf("Remote write failed: %v.", ErrNoRemote)}
	}

	local, err := c.store.GetAll(ctx)
	if err == nil {
		err = c.client.WriteFile(ctx, local)
	}
	if err != nil {
		c.log.Error(ctx, "push failed", "error", err)
		return Result{Success: false, Message: fmt.Sprintf("Remote write failed: %v.", err)}
	}

	c.log.Info(ctx, "pushed local prompts", "count", len(local))
	return Result{Success: true, Message: MsgPushed}
}

// runner decides how concurrent calls of one action are scheduled.
type runner func(ctx context.Context, action string, fn func(context.Context) Result) Result

// run schedules fn with how and reports the outcome.
func (c *Coordinator) run(ctx context.Context, action string, how runner, fn func(context.Context) Result) Result {
	start := time.Now()
	r := how(ctx, action, fn)
	if c.rec != nil {
		c.rec.SyncFinished(action, r.Success, time.Since(start))
	}
	return r
}

// shared lets concurrent callers of action join one in-flight run. The run
// is detached from the cancellation of whichever caller started it; each
// caller stops waiting when its own context ends.
func (c *Coordinator) shared(ctx context.Context, action string, fn func(context.Context) Result) Result {
	runCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(action, func() (any, error) {
		return c.guard(runCtx, action, fn), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Result)
	case <-ctx.Done():
		return canceled(ctx)
	}
}

// serial runs fn once for this caller, after any run of the same kind has
// finished.
func (c *Coordinator) serial(ctx context.Context, action string, fn func(context.Context) Result) Result {
	select {
	case c.pushSem <- struct{}{}:
	case <-ctx.Done():
		return canceled(ctx)
	}
	defer func() { <-c.pushSem }()

	return c.guard(ctx, action, fn)
}

// guard converts a panic in fn into a failure result.
func (c *Coordinator) guard(ctx context.Context, action string, fn func(context.Context) Result) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			c.log.Error(ctx, "sync panicked", "action", action, "panic", p)
			res = Result{Success: false, Message: fmt.Sprintf("Sync failed: internal error: %v.", p)}
		}
	}()
	return fn(ctx)
}

func canceled(ctx context.Context) Result {
	return Result{Success: false, Message: fmt.Sprintf("Sync failed: %v.", context.Cause(ctx))}
}
