package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/jetprompt/internal/api"
	"github.com/dmitrijs2005/jetprompt/internal/cloudsync"
	"github.com/dmitrijs2005/jetprompt/internal/config"
	"github.com/dmitrijs2005/jetprompt/internal/credentials"
	"github.com/dmitrijs2005/jetprompt/internal/filex"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/metrics"
	"github.com/dmitrijs2005/jetprompt/internal/netx"
	"github.com/dmitrijs2005/jetprompt/internal/prompts"
	"github.com/dmitrijs2005/jetprompt/internal/remote"
	"github.com/dmitrijs2005/jetprompt/internal/remote/drive"
	"github.com/dmitrijs2005/jetprompt/internal/remote/s3store"
	"github.com/dmitrijs2005/jetprompt/internal/settings"
	"github.com/dmitrijs2005/jetprompt/internal/storage/kv"
	"golang.org/x/sync/errgroup"
)

// App owns every long-lived component of one jetprompt process.
type App struct {
	cfg      *config.Config
	db       *kv.Store
	store    *prompts.Store
	settings *settings.Store
	sync     *cloudsync.Coordinator
	metrics  *metrics.Registry
	log      logging.Logger

	reader *bufio.Reader
	out    io.Writer

	closers []io.Closer
}

// NewApp opens local storage and builds the remote client described by
// cfg. in and out carry user interaction, consent dialogs included.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	if cfg.StorageDriver == kv.DriverSQLite {
		if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
			return nil, err
		}
	}

	log, logCloser, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, err
	}

	db, err := kv.Open(ctx, cfg.StorageDriver, cfg.DSN, kv.WithLogger(log))
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	reg := metrics.New()
	store := prompts.NewStore(db, log, prompts.WithObserver(reg))
	st := settings.NewStore(db)

	reader := bufio.NewReader(in)
	creds, client, err := newRemote(ctx, cfg, netx.NewClient(cfg.HTTPTimeout), reader, out, log)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		db:       db,
		store:    store,
		settings: st,
		sync:     cloudsync.New(store, client, st, creds, log, cloudsync.WithRecorder(reg)),
		metrics:  reg,
		log:      log,
		reader:   reader,
		out:      out,
		closers:  []io.Closer{db, logCloser},
	}
	log.Debug(ctx, "app initialized", "storage", cfg.StorageDriver, "remote", cfg.Remote)
	return a, nil
}

// newRemote builds the credential provider and file client for the
// configured backend. Both are nil for RemoteNone.
func newRemote(ctx context.Context, cfg *config.Config, hc *http.Client, in *bufio.Reader, out io.Writer, log logging.Logger) (credentials.Provider, remote.FileClient, error) {
	switch cfg.Remote {
	case config.RemoteNone:
		return nil, nil, nil

	case config.RemoteS3:
		c, err := s3store.New(ctx, s3store.Config{
			Bucket:     cfg.S3.Bucket,
			Region:     cfg.S3.Region,
			Endpoint:   cfg.S3.Endpoint,
			AccessKey:  cfg.S3.AccessKey,
			SecretKey:  cfg.S3.SecretKey,
			PathStyle:  cfg.S3.PathStyle,
			FolderName: cfg.FolderName,
			FileName:   cfg.FileName,
		}, hc, log)
		if err != nil {
			return nil, nil, err
		}
		return nil, c, nil

	case config.RemoteDrive:
		var creds credentials.Provider
		if cfg.Drive.AccessToken != "" {
			creds = credentials.NewStaticProvider(cfg.Drive.AccessToken)
		} else {
			creds = credentials.NewOAuthProvider(credentials.OAuthConfig{
				ClientID:     cfg.Drive.ClientID,
				ClientSecret: cfg.Drive.ClientSecret,
				AuthURL:      cfg.Drive.AuthURL,
				TokenURL:     cfg.Drive.TokenURL,
				RevokeURL:    cfg.Drive.RevokeURL,
				Scopes:       cfg.Drive.Scopes,
				TokenFile:    cfg.Drive.TokenFile,
			}, hc, in, out, log)
		}
		c := drive.New(drive.Config{
			APIBase:     cfg.Drive.APIBase,
			UploadBase:  cfg.Drive.UploadBase,
			FolderName:  cfg.FolderName,
			FileName:    cfg.FileName,
			Interactive: true,
		}, hc, creds, log)
		return creds, c, nil
	}
	return nil, nil, fmt.Errorf("unsupported remote backend %q", cfg.Remote)
}

// Close releases storage and the log file.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Serve runs the HTTP API and the auto-sync watcher until ctx is done or
// one of them fails.
func (a *App) Serve(ctx context.Context) error {
	srv := api.New(a.store, a.settings, a.sync, a.metrics.Handler(), a.log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, a.cfg.ListenAddr)
	})
	g.Go(func() error {
		return a.sync.Watch(ctx, a.cfg.AutoSyncInterval)
	})
	return g.Wait()
}

// RunREPL runs the interactive shell, with the watcher in the background,
// until the user exits or input ends.
func (a *App) RunREPL(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.sync.Watch(ctx, a.cfg.AutoSyncInterval)
	})

	fmt.Fprintln(a.out, "Welcome to JetPrompt (type 'help' for commands)")
	if a.syncEnabled(ctx) {
		fmt.Fprintln(a.out, a.sync.SyncFromRemote(ctx).Message)
	}

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
	cancel()
	return g.Wait()
}
