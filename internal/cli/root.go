package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/jetprompt/internal/buildinfo"
	"github.com/dmitrijs2005/jetprompt/internal/config"
	"github.com/spf13/cobra"
)

// Test seams.
var (
	loadConfig = config.FromProcessArgs
	newApp     = NewApp
)

// builder carries the streams every command's App is built with.
type builder struct {
	in  io.Reader
	out io.Writer
}

// withApp loads the configuration, builds an App for the duration of fn
// and closes it afterwards.
func (b builder) withApp(fn func(ctx context.Context, a *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, b.in, b.out)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); err == nil {
				err = cerr
			}
		}()
		return fn(ctx, a, args)
	}
}

// NewRootCmd builds the jetprompt command tree. Configuration flags are
// declared here so cobra accepts them; their values are read by
// config.Load from the raw arguments.
func NewRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	b := builder{in: in, out: out}
	root := &cobra.Command{
		Use:   "jetprompt",
		Short: "JetPrompt - a local prompt library with cloud sync",
		Long: `JetPrompt stores reusable text prompts locally and keeps them in sync
with a single JSON file in a cloud folder (Google Drive or S3).

Run without a subcommand to start the interactive shell.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: b.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.RunREPL(ctx)
		}),
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (JSON or YAML)")
	pf.StringP("data-dir", "d", "", "data directory")
	pf.StringP("storage", "s", "", "storage driver: sqlite or postgres")
	pf.StringP("dsn", "n", "", "storage DSN")
	pf.StringP("remote", "r", "", "remote backend: drive, s3 or none")
	pf.StringP("listen", "l", "", "HTTP API listen address")
	pf.IntP("sync-interval", "i", 0, "auto-sync interval in seconds (0 disables)")
	pf.IntP("timeout", "t", 0, "HTTP timeout in seconds")
	pf.StringP("log-level", "v", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newAddCmd(b),
		newListCmd(b),
		newShowCmd(b),
		newEditCmd(b),
		newDeleteCmd(b),
		newFavCmd(b),
		newStatsCmd(b),
		newSyncCmd(b),
		newDisconnectCmd(b),
		newExportCmd(b),
		newImportCmd(b),
		newClearCmd(b),
		newSettingsCmd(b),
		newServeCmd(b),
		newVersionCmd(out),
	)
	return root
}

// Execute runs the command tree over the process streams.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx)
}

func newAddCmd(b builder) *cobra.Command {
	var (
		tags     []string
		favorite bool
	)
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: b.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.addPrompt(ctx, strings.Join(args, " "), tags, favorite)
		}),
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "g", nil, "tag to attach (repeatable or comma separated)")
	cmd.Flags().BoolVarP(&favorite, "favorite", "f", false, "mark as favorite")
	return cmd
}

func newListCmd(b builder) *cobra.Command {
	var (
		tags      []string
		query     string
		favorites bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List prompts",
		Args:    cobra.NoArgs,
		RunE: b.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.listPrompts(ctx, query, tags, favorites)
		}),
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "g", nil, "only prompts carrying every tag")
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive text search")
	cmd.Flags().BoolVarP(&favorites, "favorites", "f", false, "only favorites")
	return cmd
}

func newShowCmd(b builder) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: b.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.showPrompt(ctx, args[0])
		}),
	}
}

func newEditCmd(b builder) *cobra.Command {
	var (
		text string
		tags []string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the text or tags of a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: b.withApp(func(ctx context.Context, a *App, args []string) error {
			var newTags []string
			if tags != nil {
				newTags = parseTags(strings.Join(tags, ","))
			}
			return a.editPrompt(ctx, args[0], text, newTags)
		}),
	}
	cmd.Flags().StringVar(&text, "text", "", "new text")
	cmd.Flags().StringSliceVarP(&tags, "tag", "g", nil, "replace tags")
	return cmd
}

func newDeleteCmd(b builder) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a prompt",
		Args:    cobra.ExactArgs(1),
		RunE: b.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.deletePrompt(ctx, args[0])
		}),
	}
}

func newFavCmd(b builder) *cobra.Command {
	return &cobra.Command{
		Use:   "fav <id>",
		Short: "Toggle the favorite flag of a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: b.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.toggleFavorite(ctx, args[0])
		}),
	}
}

func newStatsCmd(b builder) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: b.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.showStats(ctx)
		}),
	}
}

func newSyncCmd(b builder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize with the remote file",
	}
	for _, sc := range []struct{ name, short string }{
		{"pull", "Replace local prompts when the remote file is newer"},
		{"push", "Overwrite the remote file with local prompts"},
		{"now", "Pull, then push"},
		{"enable", "Turn remote sync on and run a first pull"},
		{"status", "Show the remote sync state"},
	} {
		action := sc.name
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: sc.short,
			Args:  cobra.NoArgs,
			RunE: b.withApp(func(ctx context.Context, a *App, _ []string) error {
				return a.runSync(ctx, action)
			}),
		})
	}
	return cmd
}

func newDisconnectCmd(b builder) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the remote credential and turn sync off",
		Args:  cobra.NoArgs,
		RunE: b.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.disconnect(ctx)
		}),
	}
}

func newExportCmd(b builder) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export prompts to a file, or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: b.withApp(func(ctx context.Context, a *App, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return a.exportTo(ctx, path)
		}),
	}
}

func newImportCmd(b builder) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import prompts from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: b.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.importFrom(ctx, args[0])
		}),
	}
}

func newClearCmd(b builder) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all local prompts and settings",
		Args:  cobra.NoArgs,
		RunE: b.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.clearAll(ctx, yes)
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func newSettingsCmd(b builder) *cobra.Command {
	var autoSync string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change sync settings",
		Args:  cobra.NoArgs,
		RunE: b.withApp(func(ctx context.Context, a *App, _ []string) error {
			if autoSync != "" {
				return a.setAutoSync(ctx, autoSync)
			}
			return a.showSettings(ctx)
		}),
	}
	cmd.Flags().StringVar(&autoSync, "auto-sync", "", "turn auto-sync on or off")
	return cmd
}

func newServeCmd(b builder) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API and run the auto-sync watcher",
		Args:  cobra.NoArgs,
		RunE: b.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.Serve(ctx)
		}),
	}
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			buildinfo.PrintBuildData(out)
			return nil
		},
	}
}
