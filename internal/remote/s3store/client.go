// Package s3store implements remote.FileClient on an S3-compatible bucket
// (AWS S3, MinIO, ...).
//
// The sync folder is a key prefix marked by an empty "<folder>/" object,
// the sync file is the object "<folder>/<file>" and its LastModified is
// the remote modification time. Writes replace the object under the same
// key, so the file id never changes.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/jetprompt/internal/common"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/dmitrijs2005/jetprompt/internal/remote"
)

// Config configures a Client.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool

	FolderName string
	FileName   string
}

// objectAPI is the subset of *s3.Client used here.
type objectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client stores the prompt file in a bucket.
type Client struct {
	api    objectAPI
	bucket string
	folder string
	key    string
	log    logging.Logger
}

var _ remote.FileClient = (*Client)(nil)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// New builds a Client from cfg. Static keys are used when AccessKey is
// set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config, httpClient *http.Client, log logging.Logger) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if httpClient != nil {
		opts = append(opts, config.WithHTTPClient(httpClient))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newWithAPI(api, cfg, log), nil
}

func newWithAPI(api objectAPI, cfg Config, log logging.Logger) *Client {
	folder := cfg.FolderName
	if folder == "" {
		folder = common.DefaultFolderName
	}
	file := cfg.FileName
	if file == "" {
		file = common.DefaultFileName
	}
	folder = strings.Trim(folder, "/") + "/"

	return &Client{
		api:    api,
		bucket: cfg.Bucket,
		folder: folder,
		key:    folder + file,
		log:    log.With("remote", "s3", "bucket", cfg.Bucket),
	}
}

// LocateOrCreateFolder ensures the folder marker object exists and returns
// the folder prefix.
func (c *Client) LocateOrCreateFolder(ctx context.Context) (string, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.folder),
	})
	if err == nil {
		return c.folder, nil
	}
	if !isNotFound(err) {
		return "", mapError("head folder", err)
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.folder),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return "", mapError("create folder", err)
	}

	c.log.Info(ctx, "created remote folder", "folder", c.folder)
	return c.folder, nil
}

// LocateFile heads the sync object. It returns nil when the object is
// missing.
func (c *Client) LocateFile(ctx context.Context) (*remote.FileDescriptor, error) {
	if _, err := c.LocateOrCreateFolder(ctx); err != nil {
		return nil, err
	}

	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("head file", err)
	}

	desc := &remote.FileDescriptor{FileID: c.key}
	if out.LastModified != nil {
		desc.ModifiedTime = out.LastModified.UTC()
	}
	return desc, nil
}

// ReadFile fetches the object with key fileID and decodes it.
func (c *Client) ReadFile(ctx context.Context, fileID string) ([]models.Prompt, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return nil, mapError("get file", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read file: %w", common.ErrRemoteSyncFailure, err)
	}
	return remote.DecodePrompts(body)
}

// WriteFile puts prompts under the sync key, replacing any earlier body.
func (c *Client) WriteFile(ctx context.Context, prompts []models.Prompt) error {
	if _, err := c.LocateOrCreateFolder(ctx); err != nil {
		return err
	}

	body, err := remote.EncodePrompts(prompts)
	if err != nil {
		return err
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(common.MimeTypeJSON),
	})
	if err != nil {
		return mapError("put file", err)
	}

	c.log.Debug(ctx, "remote file written", "prompts", len(prompts))
	return nil
}

var authErrorCodes = map[string]struct{}{
	"AccessDenied":          {},
	"Forbidden":             {},
	"InvalidAccessKeyId":    {},
	"SignatureDoesNotMatch": {},
	"ExpiredToken":          {},
	"InvalidToken":          {},
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

func mapError(op string, err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		if _, ok := authErrorCodes[ae.ErrorCode()]; ok {
			return fmt.Errorf("%w: %s: %w", common.ErrRemoteAuthFailure, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", common.ErrRemoteSyncFailure, op, err)
}
