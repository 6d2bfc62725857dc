// Package credentials issues and revokes the bearer tokens the remote
// file clients attach to their requests. The rest of jetprompt sees only
// the Provider interface.
package credentials

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNoCredential means no token is configured or cached.
	ErrNoCredential = errors.New("no credential available")
	// ErrConsentRequired means a token can only be obtained interactively.
	ErrConsentRequired = errors.New("user consent required")
)

// Provider hands out access tokens.
type Provider interface {
	// Token returns a valid access token. With interactive set, the
	// provider may block to ask the user for consent.
	Token(ctx context.Context, interactive bool) (string, error)

	// Revoke forgets the cached credential and, where supported, revokes
	// it at the issuer.
	Revoke(ctx context.Context) error
}

// StaticProvider serves a fixed token, e.g. one taken from configuration.
type StaticProvider struct {
	mu    sync.Mutex
	token string
}

func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

func (p *StaticProvider) Token(context.Context, bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" {
		return "", ErrNoCredential
	}
	return p.token, nil
}

// Revoke drops the token for the lifetime of the process.
func (p *StaticProvider) Revoke(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	return nil
}
