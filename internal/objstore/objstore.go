// Package objstore uploads document payloads to S3-compatible object
// storage. The case store only keeps metadata; bytes land here.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores a document payload and returns where it ended up.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (UploadResult, error)
}

// UploadResult locates an uploaded payload.
type UploadResult struct {
	Key string
	URL string
}

// Config holds the S3-compatible endpoint settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL prefixes returned URLs, e.g. a CDN in front of the
	// bucket. Defaults to the endpoint itself.
	PublicBaseURL string
}

// MinioUploader uploads via the S3 API.
type MinioUploader struct {
	client *minio.Client
	config Config
}

func NewMinio(config Config) (*MinioUploader, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return &MinioUploader{client: client, config: config}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, data []byte, filename, contentType string) (UploadResult, error) {
	key := uuid.NewString() + "-" + path.Base(filename)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.client.PutObject(ctx, u.config.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", filename, err)
	}

	base := u.config.PublicBaseURL
	if base == "" {
		scheme := "http"
		if u.config.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, u.config.Endpoint, u.config.Bucket)
	}
	return UploadResult{Key: key, URL: base + "/" + key}, nil
}
