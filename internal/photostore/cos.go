package photostore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	cos "github.com/tencentyun/cos-go-sdk-v5"
)

type COSStore struct {
	client     *cos.Client
	bucket     string
	publicBase string
}

func NewCOSStore(cfg Config) (*COSStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" || strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
		return nil, errors.New("cos bucket, secret id and secret key must be set")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "ap-hongkong"
	}
	bucketURL, err := url.Parse(fmt.Sprintf("https://%s.cos.%s.myqcloud.com", bucket, region))
	if err != nil {
		return nil, errors.Wrap(err, "parse bucket url")
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  strings.TrimSpace(cfg.AccessKeyID),
			SecretKey: strings.TrimSpace(cfg.SecretAccessKey),
		},
	})
	return &COSStore{client: client, bucket: bucket, publicBase: cfg.PublicBaseURL}, nil
}

func (s *COSStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPhoto
	}
	contentType = normalizeContentType(contentType, data)
	key := objectKey(contentType)
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	}
	if _, err := s.client.Object.Put(ctx, key, bytes.NewReader(data), opt); err != nil {
		return "", errors.Wrapf(err, "put object %s", key)
	}
	return publicRef(s.publicBase, "cos", s.bucket, key), nil
}

func (s *COSStore) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "data:") {
		return DecodeDataURL(ref)
	}
	key, ok := keyFromRef(ref, s.publicBase, "cos", s.bucket)
	if !ok {
		return nil, "", ErrUnknownRef
	}
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, "", errors.Wrapf(err, "get object %s", key)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrapf(err, "read object %s", key)
	}
	return data, normalizeContentType(resp.Header.Get("Content-Type"), data), nil
}
