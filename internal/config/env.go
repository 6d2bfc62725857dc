package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envFile is loaded before reading the environment when it exists.
var envFile = ".env"

// envKeys maps flat viper keys (JETPROMPT_<KEY> in the environment) onto
// string fields of Config.
func envKeys(cfg *Config) map[string]*string {
	return map[string]*string{
		"data_dir":            &cfg.DataDir,
		"storage":             &cfg.StorageDriver,
		"dsn":                 &cfg.DSN,
		"remote":              &cfg.Remote,
		"folder_name":         &cfg.FolderName,
		"file_name":           &cfg.FileName,
		"listen_addr":         &cfg.ListenAddr,
		"log_level":           &cfg.LogLevel,
		"log_format":          &cfg.LogFormat,
		"log_file":            &cfg.LogFile,
		"drive_api_base":      &cfg.Drive.APIBase,
		"drive_upload_base":   &cfg.Drive.UploadBase,
		"drive_client_id":     &cfg.Drive.ClientID,
		"drive_client_secret": &cfg.Drive.ClientSecret,
		"drive_token_file":    &cfg.Drive.TokenFile,
		"drive_access_token":  &cfg.Drive.AccessToken,
		"s3_bucket":           &cfg.S3.Bucket,
		"s3_region":           &cfg.S3.Region,
		"s3_endpoint":         &cfg.S3.Endpoint,
		"s3_access_key":       &cfg.S3.AccessKey,
		"s3_secret_key":       &cfg.S3.SecretKey,
	}
}

// parseEnv overlays cfg with JETPROMPT_* environment variables.
func parseEnv(cfg *Config) error {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("JETPROMPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, dst := range envKeys(cfg) {
		setString(dst, v.GetString(key))
	}

	if v.GetString("http_timeout") != "" {
		cfg.HTTPTimeout = v.GetDuration("http_timeout")
	}
	if v.GetString("auto_sync_interval") != "" {
		cfg.AutoSyncInterval = v.GetDuration("auto_sync_interval")
	}
	if v.GetString("s3_path_style") != "" {
		cfg.S3.PathStyle = v.GetBool("s3_path_style")
	}

	return nil
}
