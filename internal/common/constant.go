package common

// Keys of the local key/value namespace.
const (
	PromptsKey  = "jetprompt_prompts"
	SettingsKey = "jetprompt_settings"
)

// Default names of the remote sync target.
const (
	DefaultFolderName = "JetPrompt"
	DefaultFileName   = "jetprompt_data.json"
	MimeTypeJSON      = "application/json"
)
