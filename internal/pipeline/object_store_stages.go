package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/pixellab/internal/domain"
)

// ObjectReader is the slice of the storage client the fetcher needs.
type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string, maxBytes int64) ([]byte, error)
}

// ObjectStoreFetcher loads source images from the configured bucket.
type ObjectStoreFetcher struct {
	Storage  ObjectReader
	MaxBytes int64
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if !strings.EqualFold(req.SourceType, domain.SourceTypeObjectStore) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	if strings.TrimSpace(req.ObjectKey) == "" {
		return nil, errors.New("object key is required")
	}
	return f.Storage.ReadObject(ctx, req.ObjectKey, f.MaxBytes)
}
