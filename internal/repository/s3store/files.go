// Package s3store implements the file storage capability on Amazon S3 (or
// any S3-compatible endpoint).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/deppfellow/layered-api/internal/config"
	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/model"
)

// API is the part of the S3 client the store uses. *s3.Client satisfies it;
// tests substitute an in-memory fake.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// FileStore keeps objects under Prefix in one bucket.
type FileStore struct {
	api    API
	bucket string
	prefix string
}

// New returns a store using api.
func New(api API, bucket, prefix string) *FileStore {
	return &FileStore{api: api, bucket: bucket, prefix: prefix}
}

// NewFromConfig builds an S3 client from the default AWS credential chain
// and the storage.s3 config section.
func NewFromConfig(ctx context.Context, cfg config.S3Config) (*FileStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg.Bucket, cfg.Prefix), nil
}

func (s *FileStore) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// translate maps S3 API errors by their error code.
func translate(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.NewTimeoutError(op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return errs.NewNotFoundError("File not found")
		case "SlowDown", "Throttling", "ThrottlingException", "RequestTimeout",
			"ServiceUnavailable", "InternalError", "RequestTimeTooSkewed":
			return errs.NewUnavailableError(op, err)
		}
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) && statusErr.HTTPStatusCode() >= 500 {
		return errs.NewUnavailableError(op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return errs.NewUnavailableError(op, err)
	}

	return errs.NewInternalError(op, err)
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return translate("s3.put", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*model.File, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, translate("s3.get", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, translate("s3.get.read", err)
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &model.File{Key: key, ContentType: contentType, Data: data}, nil
}

// Delete removes the object. S3 deletes are silent for missing keys, so the
// object is checked first to report NotFound like the other adapters.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	objectKey := aws.String(s.objectKey(key))

	if _, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: objectKey}); err != nil {
		return translate("s3.delete.head", err)
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: objectKey}); err != nil {
		return translate("s3.delete", err)
	}
	return nil
}

// Ping checks the bucket is reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return translate("s3.ping", err)
	}
	return nil
}
