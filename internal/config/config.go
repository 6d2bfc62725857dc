package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/filex"
)

// Remote backends.
const (
	RemoteDrive = "drive"
	RemoteS3    = "s3"
	RemoteNone  = "none"
)

// Config holds runtime settings for the jetprompt binary.
type Config struct {
	DataDir string

	StorageDriver string
	DSN           string

	Remote     string
	FolderName string
	FileName   string

	Drive DriveConfig
	S3    S3Config

	HTTPTimeout      time.Duration
	AutoSyncInterval time.Duration

	ListenAddr string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// DriveConfig configures the Google Drive backend and its OAuth client.
type DriveConfig struct {
	APIBase    string
	UploadBase string

	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RevokeURL    string
	Scopes       []string
	TokenFile    string

	// AccessToken, when set, is used as-is instead of the OAuth flow.
	AccessToken string
}

// S3Config configures the S3-compatible backend.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "~/.jetprompt"
	c.StorageDriver = "sqlite"
	c.Remote = RemoteDrive
	c.FolderName = common.DefaultFolderName
	c.FileName = common.DefaultFileName
	c.Drive = DriveConfig{
		APIBase:    "https://www.googleapis.com/drive/v3",
		UploadBase: "https://www.googleapis.com/upload/drive/v3",
		AuthURL:    "https://accounts.google.com/o/oauth2/auth",
		TokenURL:   "https://oauth2.googleapis.com/token",
		RevokeURL:  "https://oauth2.googleapis.com/revoke",
		Scopes:     []string{"https://www.googleapis.com/auth/drive.file"},
	}
	c.S3 = S3Config{Region: "us-east-1"}
	c.HTTPTimeout = 30 * time.Second
	c.AutoSyncInterval = 5 * time.Minute
	c.ListenAddr = "127.0.0.1:7878"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Load builds a Config from defaults, the config file, the environment and
// the flags found in args (usually os.Args[1:]).
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromProcessArgs is Load over os.Args[1:].
func FromProcessArgs() (*Config, error) {
	return Load(os.Args[1:])
}

// fillDerived computes values that default relative to DataDir.
func (c *Config) fillDerived() {
	if dir, err := filex.ExpandHome(c.DataDir); err == nil {
		c.DataDir = dir
	}
	if c.DSN == "" && c.StorageDriver == "sqlite" {
		c.DSN = filepath.Join(c.DataDir, "jetprompt.db")
	}
	if c.Drive.TokenFile == "" {
		c.Drive.TokenFile = filepath.Join(c.DataDir, "token.json")
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.StorageDriver == "postgres" && c.DSN == "" {
		return fmt.Errorf("postgres storage requires a DSN")
	}

	switch c.Remote {
	case RemoteDrive, RemoteNone:
	case RemoteS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 remote requires a bucket")
		}
	default:
		return fmt.Errorf("unsupported remote backend %q", c.Remote)
	}

	if c.FolderName == "" || c.FileName == "" {
		return fmt.Errorf("remote folder and file names must not be empty")
	}
	if c.HTTPTimeout < 0 || c.AutoSyncInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}
