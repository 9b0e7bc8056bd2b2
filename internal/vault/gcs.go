package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"

	"cloud.google.com/go/storage"
	"finledger/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GCSVault keeps documents as objects in a Cloud Storage bucket.
type GCSVault struct {
	client *storage.Client
	bucket string
	log    zerolog.Logger
}

// NewGCSVault creates a vault backed by bucket.
func NewGCSVault(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSVault, error) {
	const op = "NewGCSVault"

	if bucket == "" {
		return nil, fmt.Errorf("%s: bucket name is required", op)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create GCS client: %w", op, err)
	}
	return &GCSVault{
		client: client,
		bucket: bucket,
		log:    logger.WithComponent("vault").With().Str("bucket", bucket).Logger(),
	}, nil
}

// Close releases the storage client.
func (v *GCSVault) Close() error {
	return v.client.Close()
}

// Put uploads r and returns the object name.
func (v *GCSVault) Put(ctx context.Context, doc Document, r io.Reader) (string, error) {
	const op = "GCSVault.Put"

	key, err := doc.Key()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	w := v.client.Bucket(v.bucket).Object(key).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		w.ContentType = ct
	}
	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return "", fmt.Errorf("%s: failed to write to GCS: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%s: failed to close GCS writer: %w", op, err)
	}

	v.log.Info().
		Str("key", key).
		Int64("bytes", n).
		Msg("Document uploaded")
	return key, nil
}

// Open returns a reader over the object named ref.
func (v *GCSVault) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	const op = "GCSVault.Open"

	key, err := cleanRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reader, err := v.client.Bucket(v.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read from GCS: %w", op, err)
	}
	return reader, nil
}
