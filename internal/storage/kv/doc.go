// Package kv provides the local key/value namespace the prompt store and
// the settings store persist into.
//
// # Overview
//
// Repository is a flat byte-valued map addressed by string keys. Values are
// opaque to this package; callers store whole JSON documents under fixed
// keys (see internal/common for the key names).
//
// Two SQL backends share one implementation (SQLRepository) and differ only
// in bind parameter style:
//
//   - SQLite via modernc.org/sqlite (driver "sqlite"), the default;
//   - PostgreSQL via github.com/jackc/pgx/v5/stdlib (driver "pgx").
//
// Open connects, applies the embedded goose migrations and returns a Store
// that owns the *sql.DB.
//
// # Contract
//
// Get returns (nil, nil) when the key is absent, so "not found" and "empty"
// are indistinguishable to callers. Driver failures are returned wrapped
// with context.
//
// Typical Usage
//
//	st, _ := kv.Open(ctx, kv.DriverSQLite, "jetprompt.db")
//	defer st.Close()
//	_ = st.Set(ctx, "k", []byte(`[]`))
//	v, _ := st.Get(ctx, "k")
package kv
