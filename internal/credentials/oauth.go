package credentials

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/jetprompt/internal/filex"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/netx"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

// OAuthConfig configures an OAuthProvider.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RevokeURL    string
	RedirectURL  string
	Scopes       []string

	// TokenFile caches the token between runs.
	TokenFile string
}

// OAuthProvider obtains tokens with the OAuth2 authorization code flow.
// The token is cached in a file and refreshed transparently.
type OAuthProvider struct {
	cfg       *oauth2.Config
	tokenFile string
	revokeURL string
	client    *http.Client
	log       logging.Logger

	in  *bufio.Reader
	out io.Writer

	mu  sync.Mutex
	tok *oauth2.Token
}

// isTerminal is a seam for term.IsTerminal on stdin.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// NewOAuthProvider builds a provider. client is used for token and revoke
// calls; in and out carry the interactive consent dialog. Pass the
// *bufio.Reader other prompts already read from so no buffered input is
// lost.
func NewOAuthProvider(c OAuthConfig, client *http.Client, in io.Reader, out io.Writer, log logging.Logger) *OAuthProvider {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	redirect := c.RedirectURL
	if redirect == "" {
		redirect = "http://127.0.0.1"
	}
	return &OAuthProvider{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  redirect,
			Scopes:       c.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  c.AuthURL,
				TokenURL: c.TokenURL,
			},
		},
		tokenFile: c.TokenFile,
		revokeURL: c.RevokeURL,
		client:    client,
		log:       log,
		in:        br,
		out:       out,
	}
}

// Token returns a valid access token, refreshing the cached one when
// needed. Without a usable token it asks for consent on the terminal when
// interactive is set, and fails with ErrConsentRequired otherwise.
func (p *OAuthProvider) Token(ctx context.Context, interactive bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	if p.tok == nil {
		tok, err := p.loadToken()
		if err != nil {
			return "", err
		}
		p.tok = tok
	}

	if p.tok != nil {
		fresh, err := p.cfg.TokenSource(ctx, p.tok).Token()
		if err == nil {
			if fresh.AccessToken != p.tok.AccessToken {
				p.persist(ctx, fresh)
			}
			p.tok = fresh
			return fresh.AccessToken, nil
		}
		// a dead refresh token falls through to consent
		p.log.Warn(ctx, "cached token refresh failed", "error", err)
		p.tok = nil
	}

	if !interactive || !isTerminal() {
		return "", ErrConsentRequired
	}

	tok, err := p.consent(ctx)
	if err != nil {
		return "", err
	}
	p.tok = tok
	p.persist(ctx, tok)
	return tok.AccessToken, nil
}

// consent walks the user through the authorization code flow on the
// terminal.
func (p *OAuthProvider) consent(ctx context.Context) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	authURL := p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(p.out, "Open this URL in a browser and authorize JetPrompt:\n\n  %s\n\nPaste the code (or the full redirect URL): ", authURL)

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}

	code, err := extractCode(strings.TrimSpace(line), state)
	if err != nil {
		return nil, err
	}

	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return tok, nil
}

// extractCode accepts either a bare code or the redirect URL carrying it.
func extractCode(input, state string) (string, error) {
	if input == "" {
		return "", ErrConsentRequired
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	if got := q.Get("state"); got != "" && got != state {
		return "", errors.New("authorization state mismatch")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code")
	}
	return code, nil
}

// Revoke deletes the cached token and asks the issuer to revoke it. A
// failed remote revocation is logged, not returned.
func (p *OAuthProvider) Revoke(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok := p.tok
	if tok == nil {
		loaded, err := p.loadToken()
		if err != nil {
			p.log.Warn(ctx, "cached token unreadable", "error", err)
		}
		tok = loaded
	}
	p.tok = nil

	if p.tokenFile != "" {
		if err := os.Remove(p.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove token file: %w", err)
		}
	}

	if tok == nil || p.revokeURL == "" {
		return nil
	}

	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	if err := p.revokeRemote(ctx, value); err != nil {
		p.log.Warn(ctx, "token revocation failed", "error", err)
	}
	return nil
}

func (p *OAuthProvider) revokeRemote(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	if err := netx.CheckResponse(resp); err != nil {
		return err
	}
	return resp.Body.Close()
}

func (p *OAuthProvider) loadToken() (*oauth2.Token, error) {
	if p.tokenFile == "" {
		return nil, nil
	}
	b, err := os.ReadFile(p.tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &tok, nil
}

// persist saves tok to the token file; failure only costs a re-consent on
// the next run.
func (p *OAuthProvider) persist(ctx context.Context, tok *oauth2.Token) {
	if p.tokenFile == "" {
		return
	}
	b, err := json.Marshal(tok)
	if err == nil {
		err = filex.WriteFileAtomic(p.tokenFile, b, 0o600)
	}
	if err != nil {
		p.log.Warn(ctx, "failed to cache token", "error", err)
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
