package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/creativeops/thumbselect/internal/config"
)

// Storage provides blob storage for asset binaries and thumbnails
type Storage struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// New creates a new storage client
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.BucketName)
	}

	return &Storage{
		client:  client,
		bucket:  cfg.BucketName,
		baseURL: baseURL,
	}, nil
}

// Upload stores a blob and returns its retrieval URL. The caller supplies
// an object name unique enough to avoid silent overwrites.
func (s *Storage) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return s.ObjectURL(objectName), nil
}

// UploadFile stores a local file and returns its retrieval URL
func (s *Storage) UploadFile(ctx context.Context, objectName, filePath string) (string, error) {
	_, err := s.client.FPutObject(ctx, s.bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: ContentTypeForPath(filePath),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return s.ObjectURL(objectName), nil
}

// Delete removes the object behind a retrieval URL. Also accepts a bare
// object key. Cache-busting query tokens are ignored.
func (s *Storage) Delete(ctx context.Context, rawURL string) error {
	key, err := s.objectKey(rawURL)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// ObjectURL returns the public retrieval URL for an object
func (s *Storage) ObjectURL(objectName string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, objectName)
}

// objectKey extracts the object key from a retrieval URL produced by
// ObjectURL, dropping any query string.
func (s *Storage) objectKey(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "://") {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			rawURL = rawURL[:i]
		}
		return strings.TrimPrefix(rawURL, "/"), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse object URL: %w", err)
	}

	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, s.bucket+"/")
	if key == "" {
		return "", fmt.Errorf("no object key in URL %q", rawURL)
	}

	return key, nil
}

// ContentTypeForPath returns the content type based on file extension
func ContentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
