package models

import "time"

// ExportVersion is written into every export envelope.
const ExportVersion = "1.0"

// ExportEnvelope wraps prompts for file export/import. It is not used by
// sync, which transfers the bare array.
type ExportEnvelope struct {
	Version    string    `json:"version"`
	ExportDate time.Time `json:"exportDate"`
	Prompts    []Prompt  `json:"prompts"`
}

// Stats summarizes a prompt collection.
type Stats struct {
	Total      int `json:"total"`
	Favorites  int `json:"favorites"`
	UniqueTags int `json:"uniqueTags"`
}
