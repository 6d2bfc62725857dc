package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/flagx"
)

// Flags lists the names parseFlags understands, in both forms.
var Flags = []string{
	"-d", "--data-dir",
	"-s", "--storage",
	"-n", "--dsn",
	"-r", "--remote",
	"-l", "--listen",
	"-i", "--sync-interval",
	"-t", "--timeout",
	"-v", "--log-level",
}

// parseFlags populates selected Config fields from command-line flags.
//
// args are filtered with flagx.FilterArgs first, so subcommands and their
// own flags do not interfere.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, Flags)

	fs := flag.NewFlagSet("jetprompt", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	bindString := func(p *string, short, long, usage string) {
		fs.StringVar(p, short, *p, usage)
		fs.StringVar(p, long, *p, usage)
	}
	bindString(&cfg.DataDir, "d", "data-dir", "data directory")
	bindString(&cfg.StorageDriver, "s", "storage", "storage driver")
	bindString(&cfg.DSN, "n", "dsn", "storage DSN")
	bindString(&cfg.Remote, "r", "remote", "remote backend")
	bindString(&cfg.ListenAddr, "l", "listen", "HTTP API address")
	bindString(&cfg.LogLevel, "v", "log-level", "log level")

	interval := int(cfg.AutoSyncInterval.Seconds())
	fs.IntVar(&interval, "i", interval, "auto-sync interval (in seconds)")
	fs.IntVar(&interval, "sync-interval", interval, "auto-sync interval (in seconds)")

	timeout := int(cfg.HTTPTimeout.Seconds())
	fs.IntVar(&timeout, "t", timeout, "HTTP timeout (in seconds)")
	fs.IntVar(&timeout, "timeout", timeout, "HTTP timeout (in seconds)")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i", "sync-interval":
			cfg.AutoSyncInterval = time.Duration(interval) * time.Second
		case "t", "timeout":
			cfg.HTTPTimeout = time.Duration(timeout) * time.Second
		}
	})

	return nil
}
