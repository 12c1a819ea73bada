// Package photostore keeps the photographed practice sheets and hands out
// the references recorded on each session.
package photostore

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrEmptyPhoto  = errors.New("photo is empty")
	ErrUnknownRef  = errors.New("photo reference not recognised")
	ErrUnsupported = errors.New("unsupported photo backend")
)

const (
	BackendInline = "inline"
	BackendMinIO  = "minio"
	BackendCOS    = "cos"
)

// Store saves photo bytes and resolves the returned reference back to them.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, string, error)
}

type Config struct {
	Backend string

	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	PublicBaseURL   string
}

func New(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendInline:
		return Inline{}, nil
	case BackendMinIO:
		return NewMinIOStore(cfg)
	case BackendCOS:
		return NewCOSStore(cfg)
	default:
		return nil, errors.Wrap(ErrUnsupported, cfg.Backend)
	}
}

// Inline keeps the photo inside the reference as a data URL, the same form
// browsers produce from a camera capture.
type Inline struct{}

func (Inline) Put(_ context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPhoto
	}
	return EncodeDataURL(data, contentType), nil
}

func (Inline) Get(_ context.Context, ref string) ([]byte, string, error) {
	return DecodeDataURL(ref)
}

func EncodeDataURL(data []byte, contentType string) string {
	return "data:" + normalizeContentType(contentType, data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL accepts a data URL or a bare base64 payload.
func DecodeDataURL(ref string) ([]byte, string, error) {
	ref = strings.TrimSpace(ref)
	contentType := ""
	payload := ref
	if strings.HasPrefix(ref, "data:") {
		comma := strings.Index(ref, ",")
		if comma < 0 {
			return nil, "", ErrUnknownRef
		}
		meta := strings.TrimPrefix(ref[:comma], "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", ErrUnknownRef
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		payload = ref[comma+1:]
	}
	if payload == "" {
		return nil, "", ErrEmptyPhoto
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errors.Wrap(ErrUnknownRef, err.Error())
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyPhoto
	}
	return data, normalizeContentType(contentType, data), nil
}

func normalizeContentType(contentType string, data []byte) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if contentType == "application/octet-stream" {
		return "image/jpeg"
	}
	return contentType
}

func objectKey(contentType string) string {
	return fmt.Sprintf("practice/%s/%s%s", time.Now().UTC().Format("2006/01/02"), uuid.NewString(), extension(contentType))
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

func publicRef(base string, scheme string, bucket string, key string) string {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		return base + "/" + key
	}
	return scheme + "://" + bucket + "/" + key
}

func keyFromRef(ref string, base string, scheme string, bucket string) (string, bool) {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" && strings.HasPrefix(ref, base+"/") {
		return strings.TrimPrefix(ref, base+"/"), true
	}
	prefix := scheme + "://" + bucket + "/"
	if strings.HasPrefix(ref, prefix) {
		return strings.TrimPrefix(ref, prefix), true
	}
	return "", false
}
