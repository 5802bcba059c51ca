package port

import (
	"context"
	"io"
)

type BlobStorage interface {
	// Upload stores the object under path and returns its public URL
	Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error)
}
