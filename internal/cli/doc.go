// Package cli provides the jetprompt command-line interface.
//
// It wires configuration, the local key/value store, the remote backend
// and the sync coordinator into one App, and exposes it through cobra
// subcommands, an interactive REPL (the default when no subcommand is
// given) and the local HTTP API started by "serve".
//
// The REPL and "serve" run the auto-sync watcher in the background; see
// App.RunREPL and App.Serve.
package cli
