package credentials

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type issuer struct {
	*httptest.Server

	mu       sync.Mutex
	grants   []string
	codes    []string
	revoked  []string
	tokenSeq int
}

func newIssuer(t *testing.T) *issuer {
	t.Helper()
	is := &issuer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		is.mu.Lock()
		is.grants = append(is.grants, r.PostForm.Get("grant_type"))
		is.codes = append(is.codes, r.PostForm.Get("code"))
		is.tokenSeq++
		n := is.tokenSeq
		is.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + string(rune('0'+n)),
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		is.mu.Lock()
		is.revoked = append(is.revoked, r.PostForm.Get("token"))
		is.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	is.Server = httptest.NewServer(mux)
	t.Cleanup(is.Close)
	return is
}

func newProvider(t *testing.T, is *issuer, tokenFile, input string) (*OAuthProvider, *strings.Builder) {
	t.Helper()
	out := &strings.Builder{}
	p := NewOAuthProvider(OAuthConfig{
		ClientID:  "cid",
		AuthURL:   is.URL + "/auth",
		TokenURL:  is.URL + "/token",
		RevokeURL: is.URL + "/revoke",
		Scopes:    []string{"drive.file"},
		TokenFile: tokenFile,
	}, is.Client(), strings.NewReader(input), out, logging.Nop())
	return p, out
}

func withTerminal(t *testing.T, v bool) {
	t.Helper()
	orig := isTerminal
	isTerminal = func() bool { return v }
	t.Cleanup(func() { isTerminal = orig })
}

func writeToken(t *testing.T, path string, tok *oauth2.Token) {
	t.Helper()
	b, err := json.Marshal(tok)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}

func TestOAuth_NoTokenNonInteractive(t *testing.T) {
	is := newIssuer(t)
	p, _ := newProvider(t, is, filepath.Join(t.TempDir(), "token.json"), "")

	_, err := p.Token(context.Background(), false)
	require.ErrorIs(t, err, ErrConsentRequired)
}

func TestOAuth_NoTerminal(t *testing.T) {
	withTerminal(t, false)
	is := newIssuer(t)
	p, _ := newProvider(t, is, filepath.Join(t.TempDir(), "token.json"), "code\n")

	_, err := p.Token(context.Background(), true)
	require.ErrorIs(t, err, ErrConsentRequired)
}

func TestOAuth_ConsentReadsFromSharedReader(t *testing.T) {
	withTerminal(t, true)
	is := newIssuer(t)

	shared := bufio.NewReader(strings.NewReader("the-code\nlist\n"))
	p := NewOAuthProvider(OAuthConfig{
		ClientID: "cid",
		AuthURL:  is.URL + "/auth",
		TokenURL: is.URL + "/token",
	}, is.Client(), shared, &strings.Builder{}, logging.Nop())

	_, err := p.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"the-code"}, is.codes)

	// input after the code stays available to the caller's reader
	line, err := shared.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "list\n", line)
}

func TestOAuth_InteractiveConsentCachesToken(t *testing.T) {
	withTerminal(t, true)
	is := newIssuer(t)
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	p, out := newProvider(t, is, tokenFile, "the-code\n")
	ctx := context.Background()

	tok, err := p.Token(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Contains(t, out.String(), is.URL+"/auth?")
	assert.Equal(t, []string{"the-code"}, is.codes)

	// cached: no second exchange
	tok, err = p.Token(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Len(t, is.grants, 1)

	b, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "access-1")
}

func TestOAuth_ExpiredTokenIsRefreshed(t *testing.T) {
	is := newIssuer(t)
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	writeToken(t, tokenFile, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	})
	p, _ := newProvider(t, is, tokenFile, "")

	tok, err := p.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Equal(t, []string{"refresh_token"}, is.grants)

	b, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "access-1")
}

func TestOAuth_RevokeRemovesFileAndCallsIssuer(t *testing.T) {
	is := newIssuer(t)
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	writeToken(t, tokenFile, &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"})
	p, _ := newProvider(t, is, tokenFile, "")

	require.NoError(t, p.Revoke(context.Background()))

	_, err := os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{"r"}, is.revoked)

	_, err = p.Token(context.Background(), false)
	require.ErrorIs(t, err, ErrConsentRequired)
}

func TestOAuth_RevokeWithoutToken(t *testing.T) {
	is := newIssuer(t)
	p, _ := newProvider(t, is, filepath.Join(t.TempDir(), "token.json"), "")

	require.NoError(t, p.Revoke(context.Background()))
	assert.Empty(t, is.revoked)
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		state   string
		want    string
		wantErr bool
	}{
		{name: "bare code", input: "4/abc", want: "4/abc"},
		{name: "redirect url", input: "http://127.0.0.1/?state=s1&code=xyz", state: "s1", want: "xyz"},
		{name: "state mismatch", input: "http://127.0.0.1/?state=other&code=xyz", state: "s1", wantErr: true},
		{name: "denied", input: "http://127.0.0.1/?error=access_denied", wantErr: true},
		{name: "no code", input: "http://127.0.0.1/?state=s1", state: "s1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractCode(tt.input, tt.state)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
