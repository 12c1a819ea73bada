package photostore

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type MinIOStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewMinIOStore(cfg Config) (*MinIOStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint, access key, secret key and bucket must be set")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init minio client")
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", cfg.Bucket)
	}
	if !exists {
		log.Printf("minio bucket %s missing, creating", cfg.Bucket)
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, errors.Wrapf(err, "create bucket %s", cfg.Bucket)
		}
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket, publicBase: cfg.PublicBaseURL}, nil
}

func (s *MinIOStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPhoto
	}
	contentType = normalizeContentType(contentType, data)
	key := objectKey(contentType)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", errors.Wrapf(err, "put object %s", key)
	}
	return publicRef(s.publicBase, "minio", s.bucket, key), nil
}

func (s *MinIOStore) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "data:") {
		return DecodeDataURL(ref)
	}
	key, ok := keyFromRef(ref, s.publicBase, "minio", s.bucket)
	if !ok {
		return nil, "", ErrUnknownRef
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", errors.Wrapf(err, "get object %s", key)
	}
	defer obj.Close()
	// GetObject is lazy; Stat issues the request so a missing key shows up here.
	info, err := obj.Stat()
	if err != nil {
		if isMissingObject(err) {
			return nil, "", errors.Wrapf(ErrUnknownRef, "object %s", key)
		}
		return nil, "", errors.Wrapf(err, "stat object %s", key)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", errors.Wrapf(err, "read object %s", key)
	}
	return data, normalizeContentType(info.ContentType, data), nil
}

func isMissingObject(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
