package backend

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// BlobStore uploads product images into one public bucket.
type BlobStore struct {
	client *Client
	bucket string
	token  string
}

// Blobs returns a store for bucket. Uploads authenticate with token, the
// service key of the back office.
func (c *Client) Blobs(bucket, token string) *BlobStore {
	return &BlobStore{client: c, bucket: bucket, token: token}
}

func (b *BlobStore) Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	path = strings.TrimPrefix(path, "/")

	req := b.client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(body)
	if b.token != "" {
		req.SetAuthToken(b.token)
	}

	if _, err := b.client.do(req, http.MethodPost, "/storage/v1/object/"+b.bucket+"/"+path); err != nil {
		return "", err
	}
	return b.PublicURL(path), nil
}

func (b *BlobStore) PublicURL(path string) string {
	return strings.TrimSuffix(b.client.baseURL, "/") + "/storage/v1/object/public/" + b.bucket + "/" + strings.TrimPrefix(path, "/")
}
