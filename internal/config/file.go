package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/jetprompt/internal/flagx"
	"github.com/dmitrijs2005/jetprompt/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is a DTO used exclusively for decoding config files. Zero
// values leave the corresponding Config field untouched.
type fileConfig struct {
	DataDir          string          `json:"data_dir" yaml:"data_dir"`
	Storage          string          `json:"storage" yaml:"storage"`
	DSN              string          `json:"dsn" yaml:"dsn"`
	Remote           string          `json:"remote" yaml:"remote"`
	FolderName       string          `json:"folder_name" yaml:"folder_name"`
	FileName         string          `json:"file_name" yaml:"file_name"`
	HTTPTimeout      timex.Duration  `json:"http_timeout" yaml:"http_timeout"`
	AutoSyncInterval *timex.Duration `json:"auto_sync_interval" yaml:"auto_sync_interval"`
	ListenAddr       string          `json:"listen_addr" yaml:"listen_addr"`
	LogLevel         string          `json:"log_level" yaml:"log_level"`
	LogFormat        string          `json:"log_format" yaml:"log_format"`
	LogFile          string          `json:"log_file" yaml:"log_file"`

	Drive struct {
		APIBase      string   `json:"api_base" yaml:"api_base"`
		UploadBase   string   `json:"upload_base" yaml:"upload_base"`
		ClientID     string   `json:"client_id" yaml:"client_id"`
		ClientSecret string   `json:"client_secret" yaml:"client_secret"`
		AuthURL      string   `json:"auth_url" yaml:"auth_url"`
		TokenURL     string   `json:"token_url" yaml:"token_url"`
		RevokeURL    string   `json:"revoke_url" yaml:"revoke_url"`
		Scopes       []string `json:"scopes" yaml:"scopes"`
		TokenFile    string   `json:"token_file" yaml:"token_file"`
		AccessToken  string   `json:"access_token" yaml:"access_token"`
	} `json:"drive" yaml:"drive"`

	S3 struct {
		Bucket    string `json:"bucket" yaml:"bucket"`
		Region    string `json:"region" yaml:"region"`
		Endpoint  string `json:"endpoint" yaml:"endpoint"`
		AccessKey string `json:"access_key" yaml:"access_key"`
		SecretKey string `json:"secret_key" yaml:"secret_key"`
		PathStyle bool   `json:"path_style" yaml:"path_style"`
	} `json:"s3" yaml:"s3"`
}

// parseFile overlays cfg with the config file named by -c/--config in
// args, if any.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.StorageDriver, fc.Storage)
	setString(&cfg.DSN, fc.DSN)
	setString(&cfg.Remote, fc.Remote)
	setString(&cfg.FolderName, fc.FolderName)
	setString(&cfg.FileName, fc.FileName)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.LogFile, fc.LogFile)

	if fc.HTTPTimeout.Duration != 0 {
		cfg.HTTPTimeout = fc.HTTPTimeout.Duration
	}
	// 0 is meaningful here: it turns the watcher off
	if fc.AutoSyncInterval != nil {
		cfg.AutoSyncInterval = fc.AutoSyncInterval.Duration
	}

	setString(&cfg.Drive.APIBase, fc.Drive.APIBase)
	setString(&cfg.Drive.UploadBase, fc.Drive.UploadBase)
	setString(&cfg.Drive.ClientID, fc.Drive.ClientID)
	setString(&cfg.Drive.ClientSecret, fc.Drive.ClientSecret)
	setString(&cfg.Drive.AuthURL, fc.Drive.AuthURL)
	setString(&cfg.Drive.TokenURL, fc.Drive.TokenURL)
	setString(&cfg.Drive.RevokeURL, fc.Drive.RevokeURL)
	setString(&cfg.Drive.TokenFile, fc.Drive.TokenFile)
	setString(&cfg.Drive.AccessToken, fc.Drive.AccessToken)
	if len(fc.Drive.Scopes) > 0 {
		cfg.Drive.Scopes = fc.Drive.Scopes
	}

	setString(&cfg.S3.Bucket, fc.S3.Bucket)
	setString(&cfg.S3.Region, fc.S3.Region)
	setString(&cfg.S3.Endpoint, fc.S3.Endpoint)
	setString(&cfg.S3.AccessKey, fc.S3.AccessKey)
	setString(&cfg.S3.SecretKey, fc.S3.SecretKey)
	if fc.S3.PathStyle {
		cfg.S3.PathStyle = true
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
