package minio

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"rewards-controlplane/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("minio.client", fx.Provide(registerClient, NewObjectStore))

// ObjectStore keeps generated assets and hands back a URL clients can load.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type Params struct {
	fx.In
	Config *config.Config
	Client *minio.Client `optional:"true"`
}

func registerClient(c *config.Config) *minio.Client {
	if c.Minio.Endpoint == "" {
		zap.L().Info("minio endpoint not configured, object storage disabled")
		return nil
	}

	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		zap.L().Fatal("failed to create MinIO client", zap.Error(err))
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, c.Minio.BucketName)
	if err != nil {
		zap.L().Fatal("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Minio.BucketName, minio.MakeBucketOptions{}); err != nil {
			zap.L().Fatal("failed to create bucket", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		}
	}

	zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.String("bucket", c.Minio.BucketName))
	return client
}

type objectStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewObjectStore returns nil when no minio client is configured.
func NewObjectStore(p Params) ObjectStore {
	if p.Client == nil {
		return nil
	}

	publicURL := p.Config.Minio.PublicURL
	if publicURL == "" {
		scheme := "http"
		if p.Config.Minio.Secure {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, p.Config.Minio.Endpoint, p.Config.Minio.BucketName)
	}

	return &objectStore{
		client:    p.Client,
		bucket:    p.Config.Minio.BucketName,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *objectStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return s.publicURL + "/" + key, nil
}
