// Package storage keeps rubric files, uploaded audio and saved reports in a
// blob store: S3-compatible object storage in deployments, a directory
// during local runs.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// BlobStore is a flat key space. Get on a missing key returns an error
// matching fs.ErrNotExist.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// NewKey returns a unique key under prefix, e.g. uploads/<uuid>.wav.
func NewKey(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(prefix, uuid.New().String()+ext)
}

func PutJSON(ctx context.Context, b BlobStore, key string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Put(ctx, key, bytes.NewReader(data), "application/json")
}

func GetJSON(ctx context.Context, b BlobStore, key string, v any) error {
	rc, err := b.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
