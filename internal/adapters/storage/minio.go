package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"chathub/internal/config"
)

const presignExpiry = 15 * time.Minute

// Client wraps MinIO for attachment storage. Uploads go straight from the
// browser through a presigned PUT; the chat core only ever carries the
// resulting object URL.
type Client struct {
	mc     *minio.Client
	bucket string
}

func NewClient(ctx context.Context, cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

// PresignedUpload returns a PUT URL the client uploads to and the final
// object URL it should reference in messages.
func (c *Client) PresignedUpload(ctx context.Context, filename string) (uploadURL, objectURL string, err error) {
	objectName := path.Join("attachments", uuid.New().String()+path.Ext(filename))

	put, err := c.mc.PresignedPutObject(ctx, c.bucket, objectName, presignExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presign upload: %w", err)
	}

	object := url.URL{
		Scheme: c.mc.EndpointURL().Scheme,
		Host:   c.mc.EndpointURL().Host,
		Path:   path.Join("/", c.bucket, objectName),
	}
	return put.String(), object.String(), nil
}
