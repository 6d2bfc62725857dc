// Package remote defines the contract of a remote file client: a backend
// that stores the whole prompt collection as one JSON file inside one
// named folder.
//
// Implementations live in subpackages (drive, s3store). Their errors wrap
// the sentinels of internal/common:
//
//   - common.ErrRemoteAuthFailure when no token can be obtained or the
//     backend rejects it;
//   - common.ErrMalformedRemoteData when the file is not a JSON prompt
//     array;
//   - common.ErrRemoteSyncFailure for any other transport or API failure.
//
// Nothing is retried and nothing is cached between calls: every operation
// resolves the folder and file again.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/models"
)

// FileDescriptor identifies the remote file and its last modification.
type FileDescriptor struct {
	FileID       string
	ModifiedTime time.Time
}

// FileClient maps "one JSON blob" onto a remote storage backend.
type FileClient interface {
	// LocateOrCreateFolder returns the id of the sync folder, creating it
	// when absent.
	LocateOrCreateFolder(ctx context.Context) (string, error)

	// LocateFile returns the descriptor of the sync file, or nil when it
	// does not exist yet.
	LocateFile(ctx context.Context) (*FileDescriptor, error)

	// ReadFile downloads and decodes the file with the given id.
	ReadFile(ctx context.Context, fileID string) ([]models.Prompt, error)

	// WriteFile replaces the file contents with prompts, creating the file
	// when absent.
	WriteFile(ctx context.Context, prompts []models.Prompt) error
}

// DecodePrompts decodes a remote file body. Anything other than a JSON
// array of prompts is malformed.
func DecodePrompts(body []byte) ([]models.Prompt, error) {
	var prompts []models.Prompt
	if err := json.Unmarshal(body, &prompts); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedRemoteData, err)
	}
	if prompts == nil {
		return nil, fmt.Errorf("%w: not a JSON array", common.ErrMalformedRemoteData)
	}
	return prompts, nil
}

// EncodePrompts encodes prompts as the remote file body.
func EncodePrompts(prompts []models.Prompt) ([]byte, error) {
	if prompts == nil {
		prompts = []models.Prompt{}
	}
	b, err := json.Marshal(prompts)
	if err != nil {
		return nil, fmt.Errorf("%w: encode prompts: %w", common.ErrRemoteSyncFailure, err)
	}
	return b, nil
}
