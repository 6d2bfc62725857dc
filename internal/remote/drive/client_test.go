package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/credentials"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type driveFile struct {
	name     string
	mimeType string
	parents  []string
	body     []byte
	modified time.Time
}

// fakeDrive is a tiny in-memory Drive v3 good enough for the client.
type fakeDrive struct {
	mu       sync.Mutex
	files    map[string]*driveFile
	seq      int
	requests []string
	auth     []string
	status   int // forced status for every request when non-zero
	now      time.Time
}

func newFakeDrive(t *testing.T) (*fakeDrive, *httptest.Server) {
	t.Helper()
	fd := &fakeDrive{files: map[string]*driveFile{}, now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /files", fd.list)
	mux.HandleFunc("POST /files", fd.createFolder)
	mux.HandleFunc("GET /files/{id}", fd.download)
	mux.HandleFunc("POST /upload/files", fd.upload)
	mux.HandleFunc("PATCH /upload/files/{id}", fd.upload)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fd.mu.Lock()
		fd.requests = append(fd.requests, r.Method+" "+r.URL.Path)
		fd.auth = append(fd.auth, r.Header.Get("Authorization"))
		status := fd.status
		fd.mu.Unlock()
		if status != 0 {
			http.Error(w, `{"error":"forced"}`, status)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return fd, ts
}

func (fd *fakeDrive) nextID(prefix string) string {
	fd.seq++
	return fmt.Sprintf("%s-%d", prefix, fd.seq)
}

func (fd *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	q := r.URL.Query().Get("q")
	type entry struct {
		ID           string `json:"id"`
		ModifiedTime string `json:"modifiedTime,omitempty"`
	}
	out := struct {
		Files []entry `json:"files"`
	}{Files: []entry{}}

	for id, f := range fd.files {
		if !strings.Contains(q, "name='"+f.name+"'") {
			continue
		}
		isFolderQuery := strings.Contains(q, folderMimeType)
		if isFolderQuery != (f.mimeType == folderMimeType) {
			continue
		}
		if !isFolderQuery && (len(f.parents) == 0 || !strings.Contains(q, "'"+f.parents[0]+"' in parents")) {
			continue
		}
		e := entry{ID: id}
		if strings.Contains(r.URL.Query().Get("fields"), "modifiedTime") {
			e.ModifiedTime = f.modified.Format(time.RFC3339Nano)
		}
		out.Files = append(out.Files, e)
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (fd *fakeDrive) createFolder(w http.ResponseWriter, r *http.Request) {
	var meta struct {
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()
	id := fd.nextID("folder")
	fd.files[id] = &driveFile{name: meta.Name, mimeType: meta.MimeType, modified: fd.now}
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (fd *fakeDrive) download(w http.ResponseWriter, r *http.Request) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	f, ok := fd.files[r.PathValue("id")]
	if !ok || r.URL.Query().Get("alt") != "media" {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(f.body)
}

func (fd *fakeDrive) upload(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("uploadType") != "multipart" {
		http.Error(w, "uploadType", http.StatusBadRequest)
		return
	}
	mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/related" {
		http.Error(w, "content type", http.StatusBadRequest)
		return
	}

	mr := multipart.NewReader(r.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var meta struct {
		Name     string   `json:"name"`
		MimeType string   `json:"mimeType"`
		Parents  []string `json:"parents"`
	}
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contentPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content, _ := io.ReadAll(contentPart)

	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.now = fd.now.Add(time.Minute)

	if id := r.PathValue("id"); id != "" {
		f, ok := fd.files[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if len(meta.Parents) > 0 {
			http.Error(w, "parents not writable on update", http.StatusBadRequest)
			return
		}
		f.body = content
		f.modified = fd.now
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
		return
	}

	id := fd.nextID("file")
	fd.files[id] = &driveFile{name: meta.Name, mimeType: meta.MimeType, parents: meta.Parents, body: content, modified: fd.now}
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (fd *fakeDrive) put(f *driveFile) string {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	id := fd.nextID("seed")
	fd.files[id] = f
	return id
}

func (fd *fakeDrive) failWith(status int) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.status = status
}

func (fd *fakeDrive) count(mimeType string) int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	n := 0
	for _, f := range fd.files {
		if f.mimeType == mimeType {
			n++
		}
	}
	return n
}

func newClient(ts *httptest.Server, creds credentials.Provider) *Client {
	return New(Config{APIBase: ts.URL, UploadBase: ts.URL + "/upload/"}, ts.Client(), creds, logging.Nop())
}

func samplePrompts() []models.Prompt {
	return []models.Prompt{
		{ID: "1", Text: "hello", Tags: []string{"a"}, UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "2", Text: "world", Tags: []string{}, IsFavorite: true, UpdatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
}

func TestLocateOrCreateFolder_CreatesOnceThenReuses(t *testing.T) {
	fd, ts := newFakeDrive(t)
	c := newClient(ts, credentials.NewStaticProvider("tok"))
	ctx := context.Background()

	id1, err := c.LocateOrCreateFolder(ctx)
	require.NoError(t, err)
	id2, err := c.LocateOrCreateFolder(ctx)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, fd.count(folderMimeType))
	assert.Equal(t, "Bearer tok", fd.auth[0])
}

func TestLocateFile_AbsentReturnsNil(t *testing.T) {
	_, ts := newFakeDrive(t)
	c := newClient(ts, credentials.NewStaticProvider("tok"))

	fdsc, err := c.LocateFile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, fdsc)
}

func TestWriteFile_CreatesThenUpdatesInPlace(t *testing.T) {
	fd, ts := newFakeDrive(t)
	c := newClient(ts, credentials.NewStaticProvider("tok"))
	ctx := context.Background()

	require.NoError(t, c.WriteFile(ctx, samplePrompts()[:1]))
	first, err := c.LocateFile(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, c.WriteFile(ctx, samplePrompts()))
	second, err := c.LocateFile(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.FileID, second.FileID, "update must preserve the file id")
	assert.True(t, second.ModifiedTime.After(first.ModifiedTime))
	assert.Equal(t, 1, fd.count(common.MimeTypeJSON))
	assert.Contains(t, fd.requests, "PATCH /upload/files/"+first.FileID)

	got, err := c.ReadFile(ctx, second.FileID)
	require.NoError(t, err)
	assert.Equal(t, samplePrompts(), got)
}

func TestWriteFile_EmptyCollectionWritesEmptyArray(t *testing.T) {
	_, ts := newFakeDrive(t)
	c := newClient(ts, credentials.NewStaticProvider("tok"))
	ctx := context.Background()

	require.NoError(t, c.WriteFile(ctx, nil))
	desc, err := c.LocateFile(ctx)
	require.NoError(t, err)
	require.NotNil(t, desc)

	got, err := c.ReadFile(ctx, desc.FileID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFile_Malformed(t *testing.T) {
	fd, ts := newFakeDrive(t)
	c := newClient(ts, credentials.NewStaticProvider("tok"))

	id := fd.put(&driveFile{name: "x", mimeType: common.MimeTypeJSON, body: []byte("{not json")})

	_, err := c.ReadFile(context.Background(), id)
	require.ErrorIs(t, err, common.ErrMalformedRemoteData)
}

func TestLocateFile_UsesFolderAndName(t *testing.T) {
	fd, ts := newFakeDrive(t)
	c := newClient(ts, credentials.NewStaticProvider("tok"))
	ctx := context.Background()

	folderID, err := c.LocateOrCreateFolder(ctx)
	require.NoError(t, err)

	modified := time.Date(2024, 3, 3, 3, 3, 3, 0, time.UTC)
	fd.put(&driveFile{name: "jetprompt_data.json", mimeType: common.MimeTypeJSON, parents: []string{"elsewhere"}, modified: modified})
	want := fd.put(&driveFile{name: "jetprompt_data.json", mimeType: common.MimeTypeJSON, parents: []string{folderID}, modified: modified})

	desc, err := c.LocateFile(ctx)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, want, desc.FileID)
	assert.True(t, desc.ModifiedTime.Equal(modified))
}

func TestErrors_Mapping(t *testing.T) {
	ctx := context.Background()

	t.Run("credential failure", func(t *testing.T) {
		_, ts := newFakeDrive(t)
		c := newClient(ts, credentials.NewStaticProvider(""))
		_, err := c.LocateFile(ctx)
		require.ErrorIs(t, err, common.ErrRemoteAuthFailure)
		require.ErrorIs(t, err, credentials.ErrNoCredential)
	})

	t.Run("401", func(t *testing.T) {
		fd, ts := newFakeDrive(t)
		fd.failWith(http.StatusUnauthorized)
		c := newClient(ts, credentials.NewStaticProvider("expired"))
		_, err := c.LocateOrCreateFolder(ctx)
		require.ErrorIs(t, err, common.ErrRemoteAuthFailure)
	})

	t.Run("403 quota", func(t *testing.T) {
		fd, ts := newFakeDrive(t)
		fd.failWith(http.StatusForbidden)
		c := newClient(ts, credentials.NewStaticProvider("tok"))
		err := c.WriteFile(ctx, samplePrompts())
		require.ErrorIs(t, err, common.ErrRemoteSyncFailure)
		assert.False(t, errors.Is(err, common.ErrRemoteAuthFailure))
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("transport", func(t *testing.T) {
		_, ts := newFakeDrive(t)
		c := newClient(ts, credentials.NewStaticProvider("tok"))
		ts.Close()
		_, err := c.LocateFile(ctx)
		require.ErrorIs(t, err, common.ErrRemoteSyncFailure)
	})
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `it\'s`, escapeQuery("it's"))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
}

func TestMultipartRelated_PartsOrder(t *testing.T) {
	body, ct, err := multipartRelated(map[string]any{"name": "f"}, []byte(`[]`))
	require.NoError(t, err)

	mt, params, err := mime.ParseMediaType(ct)
	require.NoError(t, err)
	assert.Equal(t, "multipart/related", mt)

	mr := multipart.NewReader(body, params["boundary"])
	p1, err := mr.NextPart()
	require.NoError(t, err)
	b1, _ := io.ReadAll(p1)
	assert.JSONEq(t, `{"name":"f"}`, string(b1))

	p2, err := mr.NextPart()
	require.NoError(t, err)
	b2, _ := io.ReadAll(p2)
	assert.Equal(t, `[]`, string(b2))
	assert.Equal(t, "application/json; charset=UTF-8", p2.Header.Get("Content-Type"))
}
