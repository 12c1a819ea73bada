package photostore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>practice/missing.png</Key><BucketName>photos</BucketName><Resource>/photos/practice/missing.png</Resource><RequestId>1</RequestId><HostId>1</HostId></Error>`

// newFakeMinIO serves one stored object under /photos/practice/kept.png and
// answers NoSuchKey for everything else in the bucket.
func newFakeMinIO(t *testing.T) *MinIOStore {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/photos/practice/kept.png" {
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Content-Length", strconv.Itoa(len(pngHeader)))
			w.Header().Set("ETag", `"kept"`)
			w.Header().Set("Last-Modified", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)
			if r.Method != http.MethodHead {
				_, _ = w.Write(pngHeader)
			}
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(noSuchKeyXML))
		}
	}))
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinIOStore{client: client, bucket: "photos"}
}

func TestMinIOGetMissingObjectIsUnknownRef(t *testing.T) {
	st := newFakeMinIO(t)

	_, _, err := st.Get(context.Background(), "minio://photos/practice/missing.png")
	assert.ErrorIs(t, err, ErrUnknownRef)

	_, _, err = st.Get(context.Background(), "minio://other-bucket/practice/kept.png")
	assert.ErrorIs(t, err, ErrUnknownRef)
}

func TestMinIOGetStoredObject(t *testing.T) {
	st := newFakeMinIO(t)

	data, contentType, err := st.Get(context.Background(), "minio://photos/practice/kept.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", contentType)
}
