package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignedURLTTL is the lifetime of download links.
const PresignedURLTTL = 15 * time.Minute

// MinIOService implements StorageService using MinIO.
type MinIOService struct {
	client      *minio.Client
	maxFileSize int64
}

func NewMinIOService(cfg Config) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{client: client, maxFileSize: DefaultMaxFileSize}, nil
}

func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func (s *MinIOService) GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error) {
	expiresAt := time.Now().Add(PresignedURLTTL)

	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="%s"`, path.Base(fileKey)))

	presigned, err := s.client.PresignedGetObject(ctx, bucket, fileKey, PresignedURLTTL, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return &PresignedURL{URL: presigned.String(), FileKey: fileKey, ExpiresAt: expiresAt}, nil
}

func (s *MinIOService) DeleteObject(ctx context.Context, bucket, fileKey string) error {
	if err := s.client.RemoveObject(ctx, bucket, fileKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", fileKey, err)
	}
	return nil
}

func (s *MinIOService) UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, content []byte) (string, error) {
	if err := ValidateContentType(contentType); err != nil {
		return "", err
	}
	if err := validateFileSize(int64(len(content)), s.maxFileSize); err != nil {
		return "", err
	}

	fileKey := objectKey(folder, fileName, uuid.New())
	_, err := s.client.PutObject(ctx, bucket, fileKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file %s: %w", fileKey, err)
	}
	return fileKey, nil
}

// objectKey builds "<folder>/<base>_<8 hex><ext>" so uploads never overwrite.
func objectKey(folder, fileName string, id uuid.UUID) string {
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(path.Base(fileName), ext)
	return path.Join(folder, fmt.Sprintf("%s_%s%s", base, id.String()[:8], ext))
}

var _ StorageService = (*MinIOService)(nil)
