// Package storage uploads staged files to S3-compatible object storage and
// hands back a durable identifier plus a public download URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"horse.fit/polyglot/internal/config"
	"horse.fit/polyglot/internal/globaltime"
)

// ErrStorageUnavailable signals that the backend was never successfully
// initialized. The condition is permanent for the process lifetime.
var ErrStorageUnavailable = errors.New("object storage is not available")

// Object identifies one uploaded file.
type Object struct {
	RemoteID    string
	DownloadURL string
	Filename    string
}

// Uploader is a constructor-injected handle on one bucket.
type Uploader struct {
	client *minio.Client
	bucket string
	// publicBaseURL prefixes download URLs, e.g. https://s3.host/bucket.
	publicBaseURL string
}

// NewUploader builds the uploader or fails at construction time when the
// backend is not fully configured. Callers may treat the error as a warning
// and run without file-job support.
func NewUploader(cfg *config.Config) (*Uploader, error) {
	if cfg == nil || !cfg.StorageConfigured() {
		return nil, ErrStorageUnavailable
	}

	client, err := minio.New(strings.TrimSpace(cfg.StorageEndpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.StorageKeyID, cfg.StorageSecretKey, ""),
		Secure: cfg.StorageUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize storage client: %w", err)
	}

	scheme := "https"
	if !cfg.StorageUseSSL {
		scheme = "http"
	}

	return &Uploader{
		client:        client,
		bucket:        strings.TrimSpace(cfg.StorageBucket),
		publicBaseURL: fmt.Sprintf("%s://%s/%s", scheme, strings.TrimSpace(cfg.StorageEndpoint), strings.TrimSpace(cfg.StorageBucket)),
	}, nil
}

// Upload pushes one local file under a fresh date-partitioned object key.
// Either a complete Object is returned or an error; no partial state leaks.
func (u *Uploader) Upload(ctx context.Context, localPath, languageLabel string) (Object, error) {
	if u == nil || u.client == nil {
		return Object{}, ErrStorageUnavailable
	}

	key := buildObjectKey(localPath, languageLabel, uuid.NewString(), globaltime.UTCDate())

	info, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}

	remoteID := strings.Trim(info.ETag, `"`)
	if remoteID == "" {
		remoteID = key
	}

	return Object{
		RemoteID:    remoteID,
		DownloadURL: u.publicBaseURL + "/" + key,
		Filename:    filepath.Base(key),
	}, nil
}

// buildObjectKey yields YYYY-MM-DD/<basename>_<language>_<uuid><ext>.
func buildObjectKey(localPath, languageLabel, fileUUID, date string) string {
	base := filepath.Base(localPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s/%s_%s_%s%s", date, name, languageLabel, fileUUID, ext)
}
