// Package storage keeps generated documents in S3-compatible object storage.
package storage

import (
	"context"
	"time"
)

// PresignedURL is a time-limited download link.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StorageService is the object store as seen by the budgets module.
type StorageService interface {
	// UploadFile stores content under folder and returns the generated key.
	UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, content []byte) (string, error)

	// GenerateDownloadURL creates a presigned URL for downloading a file.
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)

	DeleteObject(ctx context.Context, bucket, fileKey string) error

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}
