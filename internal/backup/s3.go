// Package backup uploads database files to S3-compatible object storage.
// The ledger database is the irreplaceable one; state and cache can be
// rebuilt from it and the feed.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Config holds the object storage settings. Endpoint is set when
// targeting an S3-compatible store instead of AWS itself.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string // key prefix inside the bucket
}

// Checkpointer flushes a database's WAL so the file on disk is complete
// before upload.
type Checkpointer interface {
	WALCheckpoint(mode string) error
}

// Uploader pushes local files into the configured bucket.
type Uploader struct {
	cfg      Config
	uploader *manager.Uploader
	log      zerolog.Logger
}

// NewUploader builds the S3 client and transfer manager.
func NewUploader(ctx context.Context, cfg Config, log zerolog.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup bucket not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		cfg:      cfg,
		uploader: manager.NewUploader(client),
		log:      log.With().Str("component", "backup").Logger(),
	}, nil
}

// ObjectKey builds the destination key for a database file: the prefix,
// the file's base name and a UTC timestamp.
func ObjectKey(prefix, path string, now time.Time) string {
	base := filepath.Base(path)
	key := fmt.Sprintf("%s/%s.%s", base, base, now.UTC().Format("2006-01-02T15-04-05Z"))
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// UploadFile streams one local file to the bucket.
func (u *Uploader) UploadFile(ctx context.Context, path string, now time.Time) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	key := ObjectKey(u.cfg.Prefix, path, now)
	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	u.log.Info().Str("key", key).Str("bucket", u.cfg.Bucket).Msg("Uploaded backup")
	return key, nil
}

// BackupDatabase checkpoints a database and uploads its file.
func (u *Uploader) BackupDatabase(ctx context.Context, db Checkpointer, path string, now time.Time) (string, error) {
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		return "", fmt.Errorf("checkpoint before backup: %w", err)
	}
	return u.UploadFile(ctx, path, now)
}
