// Package common defines shared constants and sentinel errors used across
// the JetPrompt store, remote clients and sync coordinator. Callers should
// use errors.Is to match these values; producers wrap them with context
// via fmt.Errorf("%w: ...").
package common

import "errors"

var (
	// Local persistence errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")

	// Remote sync errors.
	ErrRemoteAuthFailure   = errors.New("remote authentication failed")
	ErrMalformedRemoteData = errors.New("malformed remote data")
	ErrRemoteSyncFailure   = errors.New("remote sync failed")
)
