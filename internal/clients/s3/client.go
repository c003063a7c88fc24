// Package s3 uploads committed simulation outputs to S3-compatible object
// storage.
package s3

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
)

// uploadAPI is the part of manager.Uploader the client needs.
type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Client uploads files under a bucket prefix.
type Client struct {
	uploader uploadAPI
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewClient builds a client from the S3 settings. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg *config.S3Config, log zerolog.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, fmt.Errorf("s3 upload is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newClient(manager.NewUploader(client), cfg.Bucket, cfg.Prefix, log), nil
}

func newClient(uploader uploadAPI, bucket, prefix string, log zerolog.Logger) *Client {
	return &Client{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("client", "s3").Logger(),
	}
}

// Key returns the object key for a file of run runID.
func (c *Client) Key(runID, file string) string {
	return path.Join(strings.TrimSuffix(c.prefix, "/"), runID, filepath.Base(file))
}

// UploadFile uploads a local file and returns the object location.
func (c *Client) UploadFile(ctx context.Context, runID, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	key := c.Key(runID, file)
	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	out, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	c.log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Str("location", out.Location).
		Msg("Uploaded output")
	return out.Location, nil
}

// UploadFiles uploads each file and returns their locations in order.
func (c *Client) UploadFiles(ctx context.Context, runID string, files []string) ([]string, error) {
	locations := make([]string, 0, len(files))
	for _, file := range files {
		loc, err := c.UploadFile(ctx, runID, file)
		if err != nil {
			return locations, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
