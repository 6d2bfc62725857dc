// Package models defines the data records shared by the JetPrompt store,
// the remote file clients and the sync coordinator.
package models

import (
	"encoding/json"
	"time"
)

// Prompt is a stored reusable text snippet. The JSON field names are the
// wire contract of both the local key/value record and the remote file.
type Prompt struct {
	// ID is assigned at creation and never changes.
	ID string `json:"id"`

	// Text is the snippet inserted into editable fields.
	Text string `json:"text"`

	// Tags may be empty; duplicates are tolerated by storage.
	Tags []string `json:"tags"`

	IsFavorite bool `json:"isFavorite"`

	// UpdatedAt is stamped on every create/update and serves as the sync
	// freshness signal.
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON keeps tags encoded as [] rather than null so the array shape
// matches what other clients of the same file expect.
func (p Prompt) MarshalJSON() ([]byte, error) {
	type alias Prompt
	a := alias(p)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return json.Marshal(a)
}

// HasTags reports whether p carries every tag in want.
func (p Prompt) HasTags(want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range p.Tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Draft is the input of the add operation.
type Draft struct {
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
	IsFavorite bool     `json:"isFavorite"`
}

// LatestUpdate returns the maximum UpdatedAt over prompts, or the Unix epoch
// when prompts is empty.
func LatestUpdate(prompts []Prompt) time.Time {
	latest := time.Unix(0, 0).UTC()
	for _, p := range prompts {
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}
	return latest
}
