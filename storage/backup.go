package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// backupTimeLayout is ISO 8601 with milliseconds, before ':' and '.' are
// replaced to keep file names portable.
const backupTimeLayout = "2006-01-02T15:04:05.000Z"

// BackupName returns "<videoID>_<timestamp>.json" for t in UTC.
func BackupName(videoID string, t time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(backupTimeLayout))
	return videoID + "_" + stamp + ".json"
}

// DirBackup writes backups into a local directory.
type DirBackup struct {
	Dir string
}

func (d *DirBackup) Name() string { return "dir" }

// Save writes data to Dir/name atomically.
func (d *DirBackup) Save(_ context.Context, videoID, name string, data []byte) error {
	if err := writeFileAtomic(filepath.Join(d.Dir, name), data, false); err != nil {
		return &StorageError{Op: "backup", Entity: "record", ID: videoID, Err: err}
	}
	return nil
}

// S3PutObjectAPI is the subset of the S3 client S3Backup uses.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backup uploads backups to an S3 bucket under a key prefix.
type S3Backup struct {
	client S3PutObjectAPI
	bucket string
	prefix string
}

// NewS3Backup wraps an existing S3 client.
func NewS3Backup(client S3PutObjectAPI, bucket, prefix string) *S3Backup {
	return &S3Backup{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3BackupFromEnv builds an S3 client from the default AWS credential
// chain for region.
func NewS3BackupFromEnv(ctx context.Context, bucket, region, prefix string, usePathStyle bool) (*S3Backup, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket required", ErrInvalidInput)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return NewS3Backup(client, bucket, prefix), nil
}

func (b *S3Backup) Name() string { return "s3" }

// Key returns the object key for a backup file name.
func (b *S3Backup) Key(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// Save uploads data as s3://bucket/prefix/name.
func (b *S3Backup) Save(ctx context.Context, videoID, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.Key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			err = fmt.Errorf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return &StorageError{Op: "backup", Entity: "s3 object", ID: videoID, Err: err}
	}
	return nil
}
