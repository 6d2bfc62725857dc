package models

// Settings are the user preferences persisted next to the prompts.
type Settings struct {
	EnableDriveSync bool `json:"enableDriveSync"`
	AutoSync        bool `json:"autoSync"`
}

// DefaultSettings returns the settings used when nothing is stored yet.
func DefaultSettings() Settings {
	return Settings{EnableDriveSync: false, AutoSync: true}
}
