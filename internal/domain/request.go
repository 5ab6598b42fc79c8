package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	SourceTypeUpload      = "upload"
	SourceTypeObjectStore = "object_store"
)

// ProcessObjectRequest asks for the catalog to run over an image already
// stored in the configured bucket.
type ProcessObjectRequest struct {
	ObjectKey string `json:"object_key"`
}

func (r ProcessObjectRequest) Validate() error {
	key := strings.TrimSpace(r.ObjectKey)
	if key == "" {
		return errors.New("object_key is required")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("object_key must be relative: %s", r.ObjectKey)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("object_key must not contain '..': %s", r.ObjectKey)
		}
	}
	return nil
}
