// Package storage keeps user avatars in a MinIO (S3 compatible) bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/iliyamo/taskboard/internal/config"
)

// presignTTL is the longest lifetime S3 signatures allow.
const presignTTL = 7 * 24 * time.Hour

var imageExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Avatars stores avatar images under users/<id>/<uuid><ext>.
type Avatars struct {
	cli       *minio.Client
	bucket    string
	publicURL string
}

// NewAvatars connects to MinIO and creates the bucket when missing.
func NewAvatars(ctx context.Context, cfg config.MinIO) (*Avatars, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio.New: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}
	return &Avatars{cli: cli, bucket: cfg.Bucket, publicURL: cfg.PublicURL}, nil
}

// objectName builds a collision free object key for a user's avatar.
func objectName(userID uint64, contentType string) string {
	ext, ok := imageExt[strings.ToLower(contentType)]
	if !ok {
		ext = ".img"
	}
	return fmt.Sprintf("users/%d/%s%s", userID, uuid.NewString(), ext)
}

// publicObjectURL joins the public base URL, bucket and object key.
func publicObjectURL(base, bucket, object string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + object
}

// PutAvatar uploads body and returns the URL clients should load it from:
// a public URL when a public base is configured, a presigned one otherwise.
func (a *Avatars) PutAvatar(ctx context.Context, userID uint64, contentType string, body io.Reader, size int64) (string, error) {
	object := objectName(userID, contentType)
	if _, err := a.cli.PutObject(ctx, a.bucket, object, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	if a.publicURL != "" {
		return publicObjectURL(a.publicURL, a.bucket, object), nil
	}
	u, err := a.cli.PresignedGetObject(ctx, a.bucket, object, presignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return u.String(), nil
}

// Ping checks that the bucket is reachable.
func (a *Avatars) Ping(ctx context.Context) error {
	_, err := a.cli.BucketExists(ctx, a.bucket)
	return err
}
