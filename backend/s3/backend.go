package s3

import (
	"context"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/data/errors"
)

// S3Backend stores content-addressed blobs in an S3 compatible bucket.
// Objects are immutable once written, so no locking is required beyond lifecycle.
type S3Backend struct {
	mu sync.RWMutex

	client     *minio.Client
	bucketName string
	prefix     string
}

func NewS3Backend(endpoint, bucketName, accessKey, secretKey string, useSsl bool) (*S3Backend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSsl,
	})
	if err != nil {
		return nil, err
	}

	return &S3Backend{
		client:     client,
		bucketName: bucketName,
		prefix:     "blobs/",
	}, nil
}

// Returns the identifier name defined for this backend
func (*S3Backend) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *S3Backend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	exists, err := sb.client.BucketExists(ctx, sb.bucketName)
	if err != nil {
		return err
	}

	if !exists {
		return errors.BackendUnsupported(data.ErrBackendOpen, "s3 bucket "+sb.bucketName)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *S3Backend) Close(ctx context.Context) error {
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *S3Backend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityBlob,
		},
	}
}

// objectKey spreads blobs over 256 prefixes by their first hash byte.
func (sb *S3Backend) objectKey(hash string) string {
	if len(hash) < 2 {
		return sb.prefix + hash
	}
	return sb.prefix + hash[:2] + "/" + hash
}
