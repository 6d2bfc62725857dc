// Package drive implements remote.FileClient on the Google Drive v3 REST
// API.
//
// The sync folder is found by exact name among non-trashed folders and
// created when absent; the sync file is found by exact name inside that
// folder. Concurrent first syncs from two devices can create two folders
// with the same name; the first one listed is used afterwards.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/credentials"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/netx"
	"github.com/dmitrijs2005/jetprompt/internal/remote"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Config configures a Client.
type Config struct {
	// APIBase is e.g. https://www.googleapis.com/drive/v3.
	APIBase string
	// UploadBase is e.g. https://www.googleapis.com/upload/drive/v3.
	UploadBase string

	FolderName string
	FileName   string

	// Interactive lets the credential provider ask the user for consent.
	Interactive bool
}

// Client talks to Drive with bearer tokens from a credentials.Provider.
type Client struct {
	cfg   Config
	http  *http.Client
	creds credentials.Provider
	log   logging.Logger
}

var _ remote.FileClient = (*Client)(nil)

// New builds a Client. Tokens are requested from creds interactively when
// cfg.Interactive is set.
func New(cfg Config, httpClient *http.Client, creds credentials.Provider, log logging.Logger) *Client {
	if cfg.FolderName == "" {
		cfg.FolderName = common.DefaultFolderName
	}
	if cfg.FileName == "" {
		cfg.FileName = common.DefaultFileName
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.UploadBase = strings.TrimRight(cfg.UploadBase, "/")
	return &Client{cfg: cfg, http: httpClient, creds: creds, log: log.With("remote", "drive")}
}

type fileEntry struct {
	ID           string    `json:"id"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

type fileList struct {
	Files []fileEntry `json:"files"`
}

// LocateOrCreateFolder returns the id of the sync folder, creating it when
// no matching folder exists.
func (c *Client) LocateOrCreateFolder(ctx context.Context) (string, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(c.cfg.FolderName), folderMimeType)

	var list fileList
	if err := c.list(ctx, q, "files(id)", &list); err != nil {
		return "", err
	}
	if len(list.Files) > 0 {
		return list.Files[0].ID, nil
	}

	body, err := json.Marshal(map[string]string{"name": c.cfg.FolderName, "mimeType": folderMimeType})
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrRemoteSyncFailure, err)
	}

	var created fileEntry
	err = c.doJSON(ctx, http.MethodPost, c.cfg.APIBase+"/files", common.MimeTypeJSON, bytes.NewReader(body), &created)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: folder create returned no id", common.ErrRemoteSyncFailure)
	}

	c.log.Info(ctx, "created remote folder", "folder", c.cfg.FolderName, "id", created.ID)
	return created.ID, nil
}

// LocateFile returns the sync file's id and modifiedTime, or nil when the
// file does not exist.
func (c *Client) LocateFile(ctx context.Context) (*remote.FileDescriptor, error) {
	folderID, err := c.LocateOrCreateFolder(ctx)
	if err != nil {
		return nil, err
	}
	return c.locateIn(ctx, folderID)
}

func (c *Client) locateIn(ctx context.Context, folderID string) (*remote.FileDescriptor, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", escapeQuery(c.cfg.FileName), escapeQuery(folderID))

	var list fileList
	if err := c.list(ctx, q, "files(id,modifiedTime)", &list); err != nil {
		return nil, err
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	f := list.Files[0]
	return &remote.FileDescriptor{FileID: f.ID, ModifiedTime: f.ModifiedTime}, nil
}

// ReadFile downloads the file content with alt=media and decodes it.
func (c *Client) ReadFile(ctx context.Context, fileID string) ([]models.Prompt, error) {
	u := c.cfg.APIBase + "/files/" + url.PathEscape(fileID) + "?alt=media"

	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read file: %w", common.ErrRemoteSyncFailure, err)
	}
	return remote.DecodePrompts(body)
}

// WriteFile uploads prompts as a multipart/related body. An existing file
// is updated in place; otherwise a new file is created in the folder.
func (c *Client) WriteFile(ctx context.Context, prompts []models.Prompt) error {
	folderID, err := c.LocateOrCreateFolder(ctx)
	if err != nil {
		return err
	}
	existing, err := c.locateIn(ctx, folderID)
	if err != nil {
		return err
	}

	content, err := remote.EncodePrompts(prompts)
	if err != nil {
		return err
	}

	meta := map[string]any{"name": c.cfg.FileName, "mimeType": common.MimeTypeJSON}
	method, u := http.MethodPost, c.cfg.UploadBase+"/files?uploadType=multipart"
	if existing != nil {
		// parents cannot be set on update
		method, u = http.MethodPatch, c.cfg.UploadBase+"/files/"+url.PathEscape(existing.FileID)+"?uploadType=multipart"
	} else {
		meta["parents"] = []string{folderID}
	}

	body, contentType, err := multipartRelated(meta, content)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrRemoteSyncFailure, err)
	}

	if err := c.doJSON(ctx, method, u, contentType, body, nil); err != nil {
		return err
	}

	c.log.Debug(ctx, "remote file written", "prompts", len(prompts), "update", existing != nil)
	return nil
}

func (c *Client) list(ctx context.Context, q, fields string, out *fileList) error {
	v := url.Values{}
	v.Set("q", q)
	v.Set("fields", fields)
	v.Set("spaces", "drive")
	return c.doJSON(ctx, http.MethodGet, c.cfg.APIBase+"/files?"+v.Encode(), "", nil, out)
}

// doJSON performs the request and decodes a JSON response into out, if
// out is not nil.
func (c *Client) doJSON(ctx context.Context, method, u, contentType string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, u, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", common.ErrRemoteSyncFailure, method, err)
	}
	return nil
}

// do sends an authorized request and maps failures onto the remote error
// taxonomy. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, u, contentType string, body io.Reader) (*http.Response, error) {
	token, err := c.creds.Token(ctx, c.cfg.Interactive)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRemoteAuthFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRemoteSyncFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRemoteSyncFailure, err)
	}

	if err := netx.CheckResponse(resp); err != nil {
		var se *netx.StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", common.ErrRemoteAuthFailure, err)
		}
		return nil, fmt.Errorf("%w: %s %s: %w", common.ErrRemoteSyncFailure, method, redactQuery(u), err)
	}
	return resp, nil
}

// multipartRelated builds a multipart/related body with a JSON metadata
// part followed by the JSON content part.
func multipartRelated(meta map[string]any, content []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}

	for _, part := range [][]byte{metaJSON, content} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", common.MimeTypeJSON+"; charset=UTF-8")
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(part); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, "multipart/related; boundary=" + w.Boundary(), nil
}

// escapeQuery escapes a value for a single-quoted Drive query literal.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
