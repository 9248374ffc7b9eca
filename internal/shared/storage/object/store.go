package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when nothing is stored under the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore keeps uploaded screenshots. Keys are opaque to callers and
// namespaced under a hash of the owner id.
type ObjectStore interface {
	Save(ctx context.Context, ownerID, fileName string, r io.Reader) (key string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
