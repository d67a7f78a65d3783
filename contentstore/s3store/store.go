// Package s3store is the S3-backed blob backend.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"component-registry/config"
	"component-registry/contentstore"
)

// ErrIncompleteS3Config is returned when the S3 configuration is incomplete
var ErrIncompleteS3Config = errors.New("incomplete S3 configuration")

const (
	cacheControlMutable   = "no-store"
	cacheControlImmutable = "public, max-age=31536000, immutable"
)

// Store implements contentstore.Blob on an S3 bucket.
type Store struct {
	S3Client *s3.Client
	Timeout  time.Duration
	Bucket   string
}

// New creates a new s3-backed blob store from the application config.
func New() (*Store, error) {
	cfg := config.Cfg.Persistence.S3

	// check for required S3 configuration
	if strings.TrimSpace(cfg.AccessKey) == "" ||
		strings.TrimSpace(cfg.KeyID) == "" ||
		strings.TrimSpace(cfg.Endpoint) == "" ||
		strings.TrimSpace(cfg.Region) == "" ||
		strings.TrimSpace(cfg.Bucket) == "" ||
		strings.TrimSpace(cfg.Timeout) == "" {
		return nil, fmt.Errorf("%w", ErrIncompleteS3Config)
	}

	s3Client := s3.New(s3.Options{
		UsePathStyle: true,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Region:       cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.AccessKey, ""),
		),
	})

	timeoutDuration, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid S3 timeout value: %w", err)
	}

	return &Store{
		S3Client: s3Client,
		Timeout:  timeoutDuration,
		Bucket:   cfg.Bucket,
	}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string, cache contentstore.Cacheability) error {
	cacheControl := cacheControlMutable
	if cache == contentstore.CacheImmutable {
		cacheControl = cacheControlImmutable
	}

	uploader := manager.NewUploader(s.S3Client)

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	result, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		var mu manager.MultiUploadFailure
		if errors.As(err, &mu) {
			log.Error().
				Msg(fmt.Sprintf("multi-upload failure (upload_id: %s): %v", mu.UploadID(), mu))

			return fmt.Errorf("multi-upload failure (upload_id: %s): %w", mu.UploadID(), mu)
		}

		log.Error().Err(err).Msg("upload failure")

		return fmt.Errorf("upload failure: %w", err)
	}

	log.Debug().
		Str("location", result.Location).
		Str("key", key).
		Msg("uploaded object to s3 bucket")

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	object, err := s.S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, contentstore.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	var content []byte
	if object.Body != nil {
		defer func() {
			if cerr := object.Body.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("failed to close S3 object body")
			}
		}()
		content, err = io.ReadAll(object.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read object content: %w", err)
		}
	} else {
		content = []byte{}
	}

	return content, nil
}

func (s *Store) Head(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	_, err := s.S3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFoundErr *types.NotFound
		if errors.As(err, &notFoundErr) {
			return false, nil
		}

		return false, fmt.Errorf("failed to head object in S3: %w", err)
	}

	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	_, err := s.S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}

func (s *Store) List(ctx context.Context, prefix, cursor string, limit int) ([]string, string, bool, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(limit)) //nolint:gosec // page sizes are small
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	output, err := s.S3Client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to list objects in S3: %w", err)
	}

	keys := make([]string, 0, len(output.Contents))
	for _, obj := range output.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}

	truncated := aws.ToBool(output.IsTruncated)
	next := ""
	if truncated {
		next = aws.ToString(output.NextContinuationToken)
	}

	return keys, next, truncated, nil
}
