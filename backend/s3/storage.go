package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/resdb/data"
)

func (sb *S3Backend) PutBlob(ctx context.Context, hash string, payload []byte) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	key := sb.objectKey(hash)

	// Content addressed: an existing object already holds these bytes
	if _, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{}); err == nil {
		return nil
	} else if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return err
	}

	_, err := sb.client.PutObject(ctx, sb.bucketName, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (sb *S3Backend) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	object, err := sb.client.GetObject(ctx, sb.bucketName, sb.objectKey(hash), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	payload, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, data.ErrNotExist
		}
		return nil, err
	}

	return payload, nil
}

func (sb *S3Backend) HasBlob(ctx context.Context, hash string) (bool, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	_, err := sb.client.StatObject(ctx, sb.bucketName, sb.objectKey(hash), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
