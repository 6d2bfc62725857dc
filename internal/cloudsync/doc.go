// Package cloudsync reconciles the local prompt collection with the remote
// file using last-writer-wins at whole-collection granularity.
//
// Pull compares the remote file's modification time with the newest local
// UpdatedAt: a strictly newer remote replaces the local collection
// wholesale, otherwise nothing changes. When the remote file does not
// exist yet, a non-empty local collection is pushed to create it. Push
// always overwrites the remote file with the local collection.
//
// Coordinator methods never return errors. Every outcome, including a
// recovered panic, is a Result whose Message is shown to the user as is.
// A failed sync never modifies local data.
package cloudsync
