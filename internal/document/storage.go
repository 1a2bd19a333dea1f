package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/zombor/doc-classifier/internal/scanning"
)

// Storage defines the interface for archived image storage
type Storage interface {
	// Save saves a file and returns the path/key it was stored under
	Save(ctx context.Context, filename string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(ctx context.Context, filename string, data []byte) (string, error) {
	fullPath := filepath.Join(l.basePath, filepath.Base(filename))
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filepath.Base(filename), nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Base(path)))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := os.Remove(filepath.Join(l.basePath, filepath.Base(path))); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// s3API is the subset of the S3 client used by S3Storage
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage implements the Storage interface on an S3 bucket
type S3Storage struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Storage creates an S3-backed Storage. endpoint is optional and
// switches to path-style addressing for S3-compatible servers.
func NewS3Storage(awsCfg aws.Config, bucket, prefix, endpoint string) (*S3Storage, error) {
	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return newS3StorageWithClient(s3.NewFromConfig(awsCfg, opts...), bucket, prefix)
}

func newS3StorageWithClient(client s3API, bucket, prefix string) (*S3Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	return &S3Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

// Save uploads a file and returns its object key
func (s *S3Storage) Save(ctx context.Context, filename string, data []byte) (string, error) {
	key := path.Join(s.prefix, filename)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(scanning.DetectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return key, nil
}

// Get downloads an object by key
func (s *S3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 download: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 download read: %w", err)
	}
	return data, nil
}

// Delete removes an object by key
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}
