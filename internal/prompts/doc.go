// Package prompts implements the local prompt store: CRUD, filtering and
// whole-collection replacement over a single JSON array persisted under
// common.PromptsKey in a kv.Repository.
//
// Every mutating call does exactly one full read and one full write of the
// collection while holding the store's mutex, so concurrent callers inside
// one process (HTTP API, REPL, auto-sync watcher) cannot lose each other's
// updates. Callers in other processes sharing the same database can; the
// last write wins.
//
// "Not found" is never an error: Update reports false, ToggleFavorite
// reports found=false, Delete always reports true. Backend failures and
// undecodable stored values are returned wrapped in
// common.ErrStorageUnavailable.
package prompts
